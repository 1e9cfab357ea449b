package models_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wastecollect/waste-dispatch-api/models"
)

func TestPlanarDistanceMeters(t *testing.T) {
	a := models.NewPoint(9.70, 4.05)
	b := models.NewPoint(9.705, 4.052)

	d := models.PlanarDistanceMeters(a, b)
	want := math.Hypot(0.005, 0.002) * 111000
	assert.InDelta(t, want, d, 0.001)
	assert.InDelta(t, 597.7, d, 1)
	assert.Equal(t, 0.0, models.PlanarDistanceMeters(a, a))
}

func TestPointValid(t *testing.T) {
	assert.True(t, models.NewPoint(9.7, 4.05).Valid())
	assert.True(t, models.NewPoint(-180, 90).Valid())
	assert.False(t, models.NewPoint(181, 0).Valid())
	assert.False(t, models.NewPoint(0, -91).Valid())
	assert.False(t, models.NewPoint(math.NaN(), 0).Valid())
	assert.False(t, models.Point{Type: "Point", Coordinates: []float64{1}}.Valid())
}

func TestParseRole(t *testing.T) {
	cases := map[string]models.Role{
		"collector": models.RoleCollector,
		"Collector": models.RoleCollector,
		"orgAdmin":  models.RoleOrgAdmin,
		"org_admin": models.RoleOrgAdmin,
		"admin":     models.RoleAdmin,
		"citizen":   models.RoleUser,
	}
	for raw, want := range cases {
		got, ok := models.ParseRole(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := models.ParseRole("driver")
	assert.False(t, ok)
}

func TestUserResolvedRoleFallsBackToUserType(t *testing.T) {
	u := models.User{Details: models.UserDetails{UserType: "collector"}}
	assert.True(t, u.IsCollector())

	u = models.User{Details: models.UserDetails{Role: "org_admin", UserType: "collector"}}
	assert.Equal(t, models.RoleOrgAdmin, u.ResolvedRole())

	assert.Equal(t, models.RoleUser, models.User{}.ResolvedRole())
}

func TestActorCanAdministerOrganization(t *testing.T) {
	assert.True(t, models.Actor{Role: models.RoleAdmin}.CanAdministerOrganization("org-1"))
	assert.True(t, models.Actor{Role: models.RoleOrgAdmin, OrganizationID: "org-1"}.CanAdministerOrganization("org-1"))
	assert.False(t, models.Actor{Role: models.RoleOrgAdmin, OrganizationID: "org-2"}.CanAdministerOrganization("org-1"))
	assert.False(t, models.Actor{Role: models.RoleCollector, OrganizationID: "org-1"}.CanAdministerOrganization("org-1"))
}
