// Package queue defines RBAC audit events and moves them over RabbitMQ.
package queue

import "time"

// RoleChangedQueue is the durable queue carrying RoleChangedEvent payloads.
const RoleChangedQueue = "rbac.role_changed"

// Event kinds.
const (
	KindRoleAssigned      = "role_assigned"
	KindRoleRemoved       = "role_removed"
	KindRoleCreated       = "role_created"
	KindRoleDeleted       = "role_deleted"
	KindPermissionGranted = "permission_granted"
	KindPermissionRevoked = "permission_revoked"
)

// RoleChangedEvent is published after every successful RBAC mutation.  It
// carries enough context for auditing without querying the store.
type RoleChangedEvent struct {
	Kind      string    `json:"kind"`
	ActorID   uint64    `json:"actor_id"`
	SubjectID uint64    `json:"subject_id,omitempty"`
	Role      string    `json:"role"`
	Resource  string    `json:"resource,omitempty"`
	Action    string    `json:"action,omitempty"`
	At        time.Time `json:"at"`
}
