package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User holds the structure for the user collection in mongo. Collectors are users
// whose resolved role is RoleCollector.
type User struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Details UserDetails        `json:"user" bson:"user"`
	Version int32              `json:"__v" bson:"__v"`
}

// UserDetails holds the structure for the inner user structure as defined in the user collection in mongo
type UserDetails struct {
	Name             string              `json:"name" bson:"name"`
	Email            string              `json:"email" bson:"email"`
	Role             string              `json:"role" bson:"role"`
	UserType         string              `json:"-" bson:"userType,omitempty"` // Deprecated, use Role
	OrganizationID   *primitive.ObjectID `json:"organizationId,omitempty" bson:"organizationId,omitempty"`
	OnDuty           bool                `json:"onDuty" bson:"onDuty"`
	Location         *Point              `json:"location,omitempty" bson:"location,omitempty"`
	LocationAccuracy float64             `json:"locationAccuracy" bson:"locationAccuracy"`
	LastLocationAt   *time.Time          `json:"lastLocationAt,omitempty" bson:"lastLocationAt,omitempty"`
	CreatedAt        time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// ResolvedRole returns the user's role, falling back to the legacy userType field.
func (u User) ResolvedRole() Role {
	if r, ok := ParseRole(u.Details.Role); ok {
		return r
	}
	if r, ok := ParseRole(u.Details.UserType); ok {
		return r
	}
	return RoleUser
}

// IsCollector reports whether the user acts as a field collector
func (u User) IsCollector() bool {
	return u.ResolvedRole() == RoleCollector
}

// InOrganization reports whether the user belongs to the given organization
func (u User) InOrganization(orgID primitive.ObjectID) bool {
	return u.Details.OrganizationID != nil && *u.Details.OrganizationID == orgID
}
