package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authz-core/internal/model"
	"github.com/iliyamo/authz-core/internal/queue"
	"github.com/iliyamo/authz-core/internal/repository"
)

// PermissionRef names a permission by its (resource, action) pair.
type PermissionRef struct {
	Resource string `json:"resource" validate:"required,max=64,excludes=:"`
	Action   string `json:"action" validate:"required,max=64,excludes=:"`
}

// CreateRoleInput describes a new role and the permissions it starts with.
type CreateRoleInput struct {
	Name        string
	Description string
	Permissions []PermissionRef
}

// Every mutation below writes to the store first and invalidates cached
// verdicts second.  The two steps are not atomic: an invalidation failure
// is logged and never rolls back the write.

// AssignRole gives subjectID the named role.
func (s *PermissionService) AssignRole(ctx context.Context, actorID, subjectID uint64, roleName string) error {
	role, err := s.roleByName(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.requireUser(ctx, subjectID); err != nil {
		return err
	}
	held, err := s.store.FindRoleAssignment(ctx, subjectID, role.ID)
	if err != nil {
		return fmt.Errorf("check assignment: %w", err)
	}
	if held {
		return ErrDuplicateAssignment
	}
	if err := s.store.CreateRoleAssignment(ctx, subjectID, role.ID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrDuplicateAssignment
		}
		return fmt.Errorf("create assignment: %w", err)
	}

	s.invalidate(ctx, subjectID)
	s.publish(ctx, queue.RoleChangedEvent{Kind: queue.KindRoleAssigned, ActorID: actorID, SubjectID: subjectID, Role: role.Name})
	return nil
}

// RemoveRole takes the named role away from subjectID.
func (s *PermissionService) RemoveRole(ctx context.Context, actorID, subjectID uint64, roleName string) error {
	role, err := s.roleByName(ctx, roleName)
	if err != nil {
		return err
	}
	held, err := s.store.FindRoleAssignment(ctx, subjectID, role.ID)
	if err != nil {
		return fmt.Errorf("check assignment: %w", err)
	}
	if !held {
		return ErrAssignmentNotFound
	}
	if err := s.store.DeleteRoleAssignment(ctx, subjectID, role.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAssignmentNotFound
		}
		return fmt.Errorf("delete assignment: %w", err)
	}

	s.invalidate(ctx, subjectID)
	s.publish(ctx, queue.RoleChangedEvent{Kind: queue.KindRoleRemoved, ActorID: actorID, SubjectID: subjectID, Role: role.Name})
	return nil
}

// CreateRole inserts a role with an optional initial permission set.  No
// subject holds a fresh role, so nothing needs invalidating.
func (s *PermissionService) CreateRole(ctx context.Context, actorID uint64, in CreateRoleInput) (model.Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Role{}, fmt.Errorf("%w: role name required", ErrInvalidInput)
	}
	if _, err := s.store.FindRoleByName(ctx, name); err == nil {
		return model.Role{}, ErrDuplicateName
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.Role{}, fmt.Errorf("check role name: %w", err)
	}

	ids := make([]uint64, 0, len(in.Permissions))
	seen := make(map[uint64]bool, len(in.Permissions))
	for _, ref := range in.Permissions {
		p, err := s.permission(ctx, ref.Resource, ref.Action)
		if err != nil {
			return model.Role{}, err
		}
		if !seen[p.ID] {
			seen[p.ID] = true
			ids = append(ids, p.ID)
		}
	}

	role, err := s.store.CreateRole(ctx, name, strings.TrimSpace(in.Description), ids)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Role{}, ErrDuplicateName
		}
		return model.Role{}, fmt.Errorf("create role: %w", err)
	}
	s.publish(ctx, queue.RoleChangedEvent{Kind: queue.KindRoleCreated, ActorID: actorID, Role: role.Name})
	return role, nil
}

// DeleteRole removes a non-system role.  Its holders lose the role, which
// is a direct change of their assignments, so they are always invalidated.
func (s *PermissionService) DeleteRole(ctx context.Context, actorID uint64, roleName string) error {
	role, err := s.roleByName(ctx, roleName)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}
	holders, err := s.store.FindSubjectsWithRole(ctx, role.ID)
	if err != nil {
		return fmt.Errorf("list role holders: %w", err)
	}
	if err := s.store.DeleteRole(ctx, role.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("delete role: %w", err)
	}
	for _, id := range holders {
		s.invalidate(ctx, id)
	}
	s.publish(ctx, queue.RoleChangedEvent{Kind: queue.KindRoleDeleted, ActorID: actorID, Role: role.Name})
	return nil
}

// GrantPermission adds (resource, action) to the named role.
func (s *PermissionService) GrantPermission(ctx context.Context, actorID uint64, roleName, resource, action string) error {
	role, err := s.roleByName(ctx, roleName)
	if err != nil {
		return err
	}
	p, err := s.permission(ctx, resource, action)
	if err != nil {
		return err
	}
	granted, err := s.store.FindRolePermissionGrant(ctx, role.ID, p.ID)
	if err != nil {
		return fmt.Errorf("check grant: %w", err)
	}
	if granted {
		return ErrDuplicateGrant
	}
	if err := s.store.CreateRolePermissionGrant(ctx, role.ID, p.ID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrDuplicateGrant
		}
		return fmt.Errorf("create grant: %w", err)
	}

	s.invalidateHolders(ctx, role)
	s.publish(ctx, queue.RoleChangedEvent{Kind: queue.KindPermissionGranted, ActorID: actorID, Role: role.Name, Resource: p.Resource, Action: p.Action})
	return nil
}

// RevokePermission removes (resource, action) from the named role.
func (s *PermissionService) RevokePermission(ctx context.Context, actorID uint64, roleName, resource, action string) error {
	role, err := s.roleByName(ctx, roleName)
	if err != nil {
		return err
	}
	p, err := s.permission(ctx, resource, action)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRolePermissionGrant(ctx, role.ID, p.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrGrantNotFound
		}
		return fmt.Errorf("delete grant: %w", err)
	}

	s.invalidateHolders(ctx, role)
	s.publish(ctx, queue.RoleChangedEvent{Kind: queue.KindPermissionRevoked, ActorID: actorID, Role: role.Name, Resource: p.Resource, Action: p.Action})
	return nil
}

func (s *PermissionService) roleByName(ctx context.Context, name string) (model.Role, error) {
	role, err := s.store.FindRoleByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Role{}, ErrRoleNotFound
		}
		return model.Role{}, fmt.Errorf("load role: %w", err)
	}
	return role, nil
}

func (s *PermissionService) requireUser(ctx context.Context, id uint64) error {
	if _, err := s.store.FindUserByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	return nil
}

// ValidRef reports whether (resource, action) can name a permission.  ':'
// separates the parts of a cache key and is not allowed in either.
func ValidRef(resource, action string) error {
	if resource == "" || action == "" {
		return fmt.Errorf("%w: resource and action are required", ErrInvalidInput)
	}
	if strings.Contains(resource, ":") || strings.Contains(action, ":") {
		return fmt.Errorf("%w: resource and action must not contain ':'", ErrInvalidInput)
	}
	return nil
}

func (s *PermissionService) permission(ctx context.Context, resource, action string) (model.Permission, error) {
	if err := ValidRef(resource, action); err != nil {
		return model.Permission{}, err
	}
	p, err := s.store.FindPermission(ctx, resource, action)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Permission{}, fmt.Errorf("%w: %s:%s", ErrPermissionNotFound, resource, action)
		}
		return model.Permission{}, fmt.Errorf("load permission: %w", err)
	}
	return p, nil
}

func (s *PermissionService) invalidate(ctx context.Context, subjectID uint64) {
	if err := s.cache.InvalidateSubject(ctx, subjectID); err != nil {
		s.log.WithFields(logrus.Fields{"subject_id": subjectID, "error": err}).
			Warn("cache invalidation failed, stale verdicts may persist until ttl")
	}
}

// invalidateHolders fans a role's permission change out to every subject
// holding it.  Without fan-out the change becomes visible as entries expire.
func (s *PermissionService) invalidateHolders(ctx context.Context, role model.Role) {
	if !s.fanout {
		return
	}
	holders, err := s.store.FindSubjectsWithRole(ctx, role.ID)
	if err != nil {
		s.log.WithFields(logrus.Fields{"role": role.Name, "error": err}).
			Warn("could not list role holders for invalidation")
		return
	}
	for _, id := range holders {
		s.invalidate(ctx, id)
	}
}

// publish delivers an audit event on a context detached from the request
// so a client disconnect does not drop it.
func (s *PermissionService) publish(ctx context.Context, ev queue.RoleChangedEvent) {
	if s.publisher == nil {
		return
	}
	ev.At = s.now().UTC()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.PublishRoleChanged(ctx, ev); err != nil {
		s.log.WithFields(logrus.Fields{"kind": ev.Kind, "error": err}).Warn("audit event not published")
	}
}
