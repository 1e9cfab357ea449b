package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vehicle holds the structure for the vehicle collection in mongo
type Vehicle struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Details VehicleDetails     `json:"vehicle" bson:"vehicle"`
	Version int32              `json:"__v" bson:"__v"`
}

// VehicleDetails holds the structure for the inner vehicle structure as
// defined in the vehicle collection in mongo
type VehicleDetails struct {
	Plate          string             `json:"plate" bson:"plate"`
	Model          string             `json:"model" bson:"model"`
	CapacityKg     float64            `json:"capacityKg" bson:"capacityKg"`
	OrganizationID primitive.ObjectID `json:"organizationId" bson:"organizationId"`
	Active         bool               `json:"active" bson:"active"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updatedAt"`
}
