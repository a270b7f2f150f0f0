package models

import "time"

// Role is a user's access level.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleAgent   Role = "AGENT"
	RoleViewer  Role = "VIEWER"
)

// Roles lists all assignable roles.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleAgent, RoleViewer}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleAgent, RoleViewer:
		return true
	}
	return false
}

// Capability checks. The server is the authority; the console repeats these
// as advisory UI gating only.

// CanViewUsers reports whether the role may list users.
func (r Role) CanViewUsers() bool {
	return r == RoleAdmin || r == RoleManager
}

// CanManageRoles reports whether the role may change another user's role.
func (r Role) CanManageRoles() bool {
	return r == RoleAdmin
}

// CanUpdateUsers reports whether the role may activate or deactivate users.
func (r Role) CanUpdateUsers() bool {
	return r == RoleAdmin || r == RoleManager
}

// CanWriteTemplates reports whether the role may mutate email templates.
func (r Role) CanWriteTemplates() bool {
	return r == RoleAdmin || r == RoleManager
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// APIToken is a bearer credential bound to a user. Only the SHA-256 hash of
// the token is stored.
type APIToken struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AuditEntry records a mutation for the audit log.
type AuditEntry struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	UserEmail  string    `json:"user_email"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
