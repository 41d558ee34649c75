package service

import (
	"context"

	"github.com/iliyamo/authz-core/internal/model"
	"github.com/iliyamo/authz-core/internal/queue"
)

// Store is the slice of the user/role/permission store the permission
// service depends on.  Lookups return repository.ErrNotFound for missing
// rows and inserts repository.ErrDuplicate for unique-key violations.
type Store interface {
	FindRolesForSubject(ctx context.Context, subjectID uint64) ([]model.Role, error)
	FindPermissionsForRole(ctx context.Context, roleID uint64) ([]model.Permission, error)
	FindRoleByName(ctx context.Context, name string) (model.Role, error)
	FindUserByID(ctx context.Context, id uint64) (model.User, error)
	ListRoles(ctx context.Context) ([]model.Role, error)

	FindRoleAssignment(ctx context.Context, subjectID, roleID uint64) (bool, error)
	CreateRoleAssignment(ctx context.Context, subjectID, roleID uint64) error
	DeleteRoleAssignment(ctx context.Context, subjectID, roleID uint64) error
	FindSubjectsWithRole(ctx context.Context, roleID uint64) ([]uint64, error)

	CreateRole(ctx context.Context, name, description string, permissionIDs []uint64) (model.Role, error)
	DeleteRole(ctx context.Context, roleID uint64) error

	FindPermission(ctx context.Context, resource, action string) (model.Permission, error)
	FindRolePermissionGrant(ctx context.Context, roleID, permissionID uint64) (bool, error)
	CreateRolePermissionGrant(ctx context.Context, roleID, permissionID uint64) error
	DeleteRolePermissionGrant(ctx context.Context, roleID, permissionID uint64) error
}

// VerdictCache memoizes verdicts; see cache.PermissionCache.
type VerdictCache interface {
	Get(ctx context.Context, subjectID uint64, resource, action string) (verdict bool, ok bool)
	Put(ctx context.Context, subjectID uint64, resource, action string, verdict bool)
	InvalidateSubject(ctx context.Context, subjectID uint64) error
}

// EventPublisher receives audit events after successful mutations.
type EventPublisher interface {
	PublishRoleChanged(ctx context.Context, ev queue.RoleChangedEvent) error
}
