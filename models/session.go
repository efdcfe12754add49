package models

// Role is the access level carried by a session record
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleReadOnly      Role = "read-only"
)

// IsValid reports whether r is one of the known roles
func (r Role) IsValid() bool {
	return r == RoleAdministrator || r == RoleReadOnly
}

// Label returns the human label shown next to the user name.
// The short form is used where space is tight (floating overlay).
func (r Role) Label(short bool) string {
	switch r {
	case RoleAdministrator:
		if short {
			return "Admin"
		}
		return "Administrator"
	case RoleReadOnly:
		return "Read-only"
	default:
		return string(r)
	}
}

// Session is the only persisted entity: who is signed in and with which role.
// Presence of a record means authenticated; absence means anonymous.
type Session struct {
	Name string `json:"name" validate:"required,max=200"`
	Role Role   `json:"role" validate:"required,oneof=administrator read-only"`
}

// IsAdministrator returns true for the privileged role
func (s *Session) IsAdministrator() bool {
	return s != nil && s.Role == RoleAdministrator
}

// IsReadOnly returns true for the restricted role
func (s *Session) IsReadOnly() bool {
	return s != nil && s.Role == RoleReadOnly
}
