package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authz-core/internal/metrics"
	"github.com/iliyamo/authz-core/internal/model"
	"github.com/iliyamo/authz-core/internal/repository"
)

// PermissionService answers authorization questions and performs the RBAC
// mutations that change their answers.
type PermissionService struct {
	store     Store
	cache     VerdictCache
	publisher EventPublisher
	metrics   *metrics.Decisions
	log       *logrus.Logger
	fanout    bool
	now       func() time.Time
}

// Option configures a PermissionService.
type Option func(*PermissionService)

// WithPublisher attaches an audit event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(s *PermissionService) { s.publisher = p }
}

// WithMetrics records every verdict on d.
func WithMetrics(d *metrics.Decisions) Option {
	return func(s *PermissionService) { s.metrics = d }
}

// WithFanout controls whether grant/revoke on a role invalidates the cache
// of every subject holding that role.  With fan-out off those subjects may
// observe the old verdict until their cache entries expire.
func WithFanout(enabled bool) Option {
	return func(s *PermissionService) { s.fanout = enabled }
}

// NewPermissionService wires the service.  Fan-out invalidation is on by
// default.
func NewPermissionService(store Store, cache VerdictCache, log *logrus.Logger, opts ...Option) *PermissionService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &PermissionService{store: store, cache: cache, log: log, fanout: true, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasPermission reports whether subjectID may perform action on resource.
// Cached verdicts are served directly; on a miss the verdict is resolved
// from the store and cached.  Verdicts produced by a store failure are
// denials and are not cached, so a transient outage cannot pin a false
// answer for a whole TTL window.
func (s *PermissionService) HasPermission(ctx context.Context, subjectID uint64, resource, action string) bool {
	if verdict, ok := s.cache.Get(ctx, subjectID, resource, action); ok {
		s.metrics.Verdict(metrics.SourceCache, verdict)
		return verdict
	}
	start := s.now()
	verdict, err := s.resolve(ctx, subjectID, resource, action)
	s.metrics.ObserveResolve(s.now().Sub(start))
	if err != nil {
		s.metrics.Verdict(metrics.SourceError, false)
		s.log.WithFields(logrus.Fields{
			"subject_id": subjectID,
			"resource":   resource,
			"action":     action,
			"error":      err,
		}).Error("permission resolution failed, denying")
		return false
	}
	s.metrics.Verdict(metrics.SourceStore, verdict)
	s.cache.Put(ctx, subjectID, resource, action, verdict)
	return verdict
}

// Resolve computes the authoritative verdict without touching the cache.
// It fails closed: any store error yields false.
func (s *PermissionService) Resolve(ctx context.Context, subjectID uint64, resource, action string) bool {
	verdict, err := s.resolve(ctx, subjectID, resource, action)
	if err != nil {
		s.log.WithFields(logrus.Fields{"subject_id": subjectID, "error": err}).Error("permission resolution failed, denying")
		return false
	}
	return verdict
}

// resolve walks the subject's roles and each role's permissions, stopping
// at the first exact (resource, action) match.
func (s *PermissionService) resolve(ctx context.Context, subjectID uint64, resource, action string) (bool, error) {
	roles, err := s.store.FindRolesForSubject(ctx, subjectID)
	if err != nil {
		return false, fmt.Errorf("load roles: %w", err)
	}
	for _, role := range roles {
		perms, err := s.store.FindPermissionsForRole(ctx, role.ID)
		if err != nil {
			return false, fmt.Errorf("load permissions of role %q: %w", role.Name, err)
		}
		for _, p := range perms {
			if p.Matches(resource, action) {
				return true, nil
			}
		}
	}
	return false, nil
}

// Profile returns a user together with the roles assigned in the store.
func (s *PermissionService) Profile(ctx context.Context, userID uint64) (model.User, []model.Role, error) {
	u, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, nil, ErrUserNotFound
		}
		return model.User{}, nil, fmt.Errorf("load user: %w", err)
	}
	roles, err := s.store.FindRolesForSubject(ctx, userID)
	if err != nil {
		return model.User{}, nil, fmt.Errorf("load roles: %w", err)
	}
	return u, roles, nil
}

// ListRoles returns every role.
func (s *PermissionService) ListRoles(ctx context.Context) ([]model.Role, error) {
	return s.store.ListRoles(ctx)
}
