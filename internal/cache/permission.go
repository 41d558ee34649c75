package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const permissionPrefix = "permission"

// PermissionKey returns the cache key of one verdict:
// permission:{subjectId}:{resource}:{action}.
func PermissionKey(subjectID uint64, resource, action string) string {
	return fmt.Sprintf("%s:%d:%s:%s", permissionPrefix, subjectID, resource, action)
}

// SubjectPattern matches every verdict cached for subjectID.
func SubjectPattern(subjectID uint64) string {
	return fmt.Sprintf("%s:%d:*", permissionPrefix, subjectID)
}

// PermissionCache memoizes authorization verdicts.  It is never a source of
// truth: every failure degrades to "no cached decision".
type PermissionCache struct {
	store Store
	ttl   time.Duration
	log   *logrus.Logger
}

// NewPermissionCache builds a cache whose entries live for ttl.
func NewPermissionCache(store Store, ttl time.Duration, log *logrus.Logger) *PermissionCache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PermissionCache{store: store, ttl: ttl, log: log}
}

// cacheable reports whether the pair maps to an unambiguous key.  A ':'
// inside either part could collide with another pair's key.
func cacheable(resource, action string) bool {
	return !strings.Contains(resource, ":") && !strings.Contains(action, ":")
}

// Get returns the cached verdict.  ok=false means absent, not denied;
// store errors, undecodable values and uncacheable pairs are reported as
// absent.
func (c *PermissionCache) Get(ctx context.Context, subjectID uint64, resource, action string) (verdict bool, ok bool) {
	if !cacheable(resource, action) {
		return false, false
	}
	key := PermissionKey(subjectID, resource, action)
	v, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"subject_id": subjectID,
			"resource":   resource,
			"action":     action,
			"error":      err,
		}).Warn("permission cache read failed, resolving from store")
		return false, false
	}
	if !found {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		c.log.WithField("key", key).Warn("permission cache holds undecodable value")
		return false, false
	}
	return b, true
}

// Put stores a verdict.  Failures are logged and swallowed; the decision
// already made for the current request stands.
func (c *PermissionCache) Put(ctx context.Context, subjectID uint64, resource, action string, verdict bool) {
	if !cacheable(resource, action) {
		return
	}
	key := PermissionKey(subjectID, resource, action)
	if err := c.store.SetWithExpiry(ctx, key, strconv.FormatBool(verdict), c.ttl); err != nil {
		c.log.WithFields(logrus.Fields{
			"subject_id": subjectID,
			"resource":   resource,
			"action":     action,
			"error":      err,
		}).Warn("permission cache write failed")
	}
}

// InvalidateSubject drops every verdict cached for subjectID.
func (c *PermissionCache) InvalidateSubject(ctx context.Context, subjectID uint64) error {
	n, err := c.store.DeleteMatching(ctx, SubjectPattern(subjectID))
	if err != nil {
		return fmt.Errorf("cache: invalidate subject %d: %w", subjectID, err)
	}
	c.log.WithFields(logrus.Fields{"subject_id": subjectID, "keys": n}).Debug("permission cache invalidated")
	return nil
}
