package permissions

import "github.com/google/uuid"

// Principal is the acting user as seen by permission checks.
type Principal struct {
	ID          uuid.UUID
	Username    string
	Active      bool
	Staff       bool
	Superuser   bool
	Permissions Set
}

// HasPermission checks a model level token. Superusers hold every token and
// inactive users none.
func (p Principal) HasPermission(permission string) bool {
	if !p.Active {
		return false
	}
	if p.Superuser {
		return true
	}
	return p.Permissions.Allowed(permission)
}

// Anonymous reports whether the principal is unauthenticated.
func (p Principal) Anonymous() bool {
	return p.ID == uuid.Nil
}
