package model

import "time"

// Role is a named bundle of permissions stored in the `roles` table.
// System roles are seeded by migrations and cannot be deleted.
type Role struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
}

// Permission is an atomic capability expressed as a (resource, action) pair.
type Permission struct {
	ID       uint64 `json:"id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Name returns the display form "resource:action".
func (p Permission) Name() string { return p.Resource + ":" + p.Action }

// Matches reports whether p grants exactly the given resource and action.
// Comparison is case-sensitive and has no wildcard semantics.
func (p Permission) Matches(resource, action string) bool {
	return p.Resource == resource && p.Action == action
}
