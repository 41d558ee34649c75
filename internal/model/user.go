package model

import "time"

// User represents a row in the `users` table.  The core never mutates users;
// they are created by the registration flow and only read here.
//
// Role is the primary role name embedded into access tokens at login.  The
// authoritative role set of a user lives in `user_roles` and is loaded
// through the repository layer.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash (bcrypt)
	Role         string    // users.role, the token role hint
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
