package models

import "strings"

// Role is the single resolved role of an authenticated actor or stored user.
type Role string

// Known roles
const (
	RoleUser      Role = "user"
	RoleCollector Role = "collector"
	RoleOrgAdmin  Role = "org_admin"
	RoleAdmin     Role = "admin"
)

// ParseRole resolves a raw role string. Legacy spellings found in older user documents
// ("userType" values such as "Collector" or "orgAdmin") map onto the same roles.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user", "citizen", "requester":
		return RoleUser, true
	case "collector":
		return RoleCollector, true
	case "org_admin", "orgadmin", "organization_admin":
		return RoleOrgAdmin, true
	case "admin", "superadmin":
		return RoleAdmin, true
	}
	return "", false
}

// Actor is the authenticated caller of a mutating operation.
type Actor struct {
	ID             string `json:"id"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// IsAdmin reports whether the actor has platform wide admin rights
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAdministerOrganization reports whether the actor may manage the given organization
func (a Actor) CanAdministerOrganization(orgID string) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == RoleOrgAdmin && a.OrganizationID != "" && a.OrganizationID == orgID
}
