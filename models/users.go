package models

import "time"

// Role is the access level attached to a user account.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin || r == RoleSuperadmin
}

// Privileged reports whether r may act on entities it does not own.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

// User is a stored account document. Usernames are kept lowercase so the
// unique index doubles as a case-insensitive uniqueness constraint. The
// password hash never leaves the service.
type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Username     string    `bson:"username" json:"username"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	Email        string    `bson:"email" json:"email"`
	Role         Role      `bson:"role" json:"role"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// UserRequest is the registration payload.
type UserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// UserPatch is a partial update payload. Nil fields are left untouched.
type UserPatch struct {
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	Email    *string `json:"email,omitempty"`
	Role     *Role   `json:"role,omitempty"`
}

// Empty reports whether the patch carries no fields at all.
func (p UserPatch) Empty() bool {
	return p.Username == nil && p.Password == nil && p.Email == nil && p.Role == nil
}
