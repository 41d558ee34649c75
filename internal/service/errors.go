// Package service holds the authorization core: permission resolution with
// caching, the mutation handlers that keep the cache coherent, and the
// login/logout flow that issues and revokes credentials.
package service

import "errors"

// Mutation conflicts and lookups surfaced to callers.
var (
	ErrDuplicateAssignment = errors.New("role already assigned to user")
	ErrAssignmentNotFound  = errors.New("role is not assigned to user")
	ErrDuplicateName       = errors.New("role name already exists")
	ErrDuplicateGrant      = errors.New("permission already granted to role")
	ErrGrantNotFound       = errors.New("permission is not granted to role")
	ErrRoleNotFound        = errors.New("role not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrPermissionNotFound  = errors.New("permission not found")
	ErrSystemRole          = errors.New("system roles cannot be deleted")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)
