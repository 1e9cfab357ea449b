package models

import "math"

// MetersPerDegree is the flat scale factor used to turn a (longitude, latitude) delta into meters.
const MetersPerDegree = 111000.0

// Point is a GeoJSON point. Coordinates are stored as [longitude, latitude].
type Point struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// NewPoint builds a GeoJSON point from a longitude and latitude
func NewPoint(lon, lat float64) Point {
	return Point{Type: "Point", Coordinates: []float64{lon, lat}}
}

// Longitude returns the first coordinate
func (p Point) Longitude() float64 {
	if len(p.Coordinates) < 1 {
		return 0
	}
	return p.Coordinates[0]
}

// Latitude returns the second coordinate
func (p Point) Latitude() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

// Valid reports whether the point holds a longitude in [-180, 180] and a latitude in [-90, 90].
func (p Point) Valid() bool {
	if len(p.Coordinates) != 2 {
		return false
	}
	lon, lat := p.Coordinates[0], p.Coordinates[1]
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// PlanarDistanceMeters is the Euclidean distance between two points on the raw
// (longitude, latitude) plane scaled by MetersPerDegree. It is only a small-distance
// approximation and is not geodesically exact.
func PlanarDistanceMeters(a, b Point) float64 {
	return math.Hypot(a.Longitude()-b.Longitude(), a.Latitude()-b.Latitude()) * MetersPerDegree
}
