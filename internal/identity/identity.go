// Package identity defines the actor capability passed into every engine
// entry point and the JWT boundary that produces it.
package identity

// Role names recognized by the authorization checks.
const (
	RoleMember = "member"
	RoleGM     = "gm"
	RoleAdmin  = "admin"
)

// Actor identifies the acting user and the roles the identity provider
// asserted for them. Handlers never re-derive roles from storage.
type Actor struct {
	UserID string
	Roles  []string
}

// HasRole reports whether the actor holds the named role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsGM reports whether the actor may perform review and extension
// decisions. Admins are GMs everywhere.
func (a Actor) IsGM() bool {
	return a.HasRole(RoleGM) || a.HasRole(RoleAdmin)
}
