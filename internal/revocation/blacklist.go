// Package revocation tracks explicitly revoked access tokens by their jti.
package revocation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authz-core/internal/cache"
)

const keyPrefix = "blacklist:"

// ErrUnavailable is returned by Checker when the blacklist cannot be read
// and the policy is fail-closed.
var ErrUnavailable = errors.New("revocation: blacklist unavailable")

// Key returns the blacklist key for a token ID.
func Key(tokenID string) string { return keyPrefix + tokenID }

// Blacklist stores revoked token IDs.  Entries expire together with the
// token they revoke.
type Blacklist struct {
	store cache.Store
}

// NewBlacklist returns a Blacklist backed by store.
func NewBlacklist(store cache.Store) *Blacklist {
	return &Blacklist{store: store}
}

// Revoke marks tokenID as revoked for ttl.  A ttl under one second is
// raised to one second so a token about to expire is still covered.
func (b *Blacklist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if strings.TrimSpace(tokenID) == "" {
		return errors.New("revocation: empty token id")
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return b.store.SetWithExpiry(ctx, Key(tokenID), "1", ttl)
}

// IsRevoked reports whether tokenID has been revoked.
func (b *Blacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, found, err := b.store.Get(ctx, Key(tokenID))
	if err != nil {
		return false, err
	}
	return found, nil
}

// Policy decides what happens when the blacklist cannot be consulted.
type Policy int

const (
	// FailOpen treats an unreachable blacklist as "not revoked".
	FailOpen Policy = iota
	// FailClosed rejects the request when the blacklist is unreachable.
	FailClosed
)

func (p Policy) String() string {
	if p == FailClosed {
		return "fail-closed"
	}
	return "fail-open"
}

// PolicyFromFailOpen maps the REVOCATION_FAIL_OPEN toggle onto a Policy.
func PolicyFromFailOpen(failOpen bool) Policy {
	if failOpen {
		return FailOpen
	}
	return FailClosed
}

// Lookup is the read side of a blacklist.
type Lookup interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Checker applies a failure Policy on top of a Lookup.
type Checker struct {
	list   Lookup
	policy Policy
	log    *logrus.Logger
}

// NewChecker returns a Checker using the given policy.
func NewChecker(list Lookup, policy Policy, log *logrus.Logger) *Checker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Checker{list: list, policy: policy, log: log}
}

// Revoked reports whether tokenID is revoked.  When the blacklist fails,
// FailOpen logs and returns (false, nil); FailClosed returns ErrUnavailable.
func (c *Checker) Revoked(ctx context.Context, tokenID string) (bool, error) {
	revoked, err := c.list.IsRevoked(ctx, tokenID)
	if err == nil {
		return revoked, nil
	}
	entry := c.log.WithFields(logrus.Fields{
		"token_id": tokenID,
		"policy":   c.policy.String(),
		"error":    err,
	})
	if c.policy == FailOpen {
		entry.Warn("revocation check degraded, allowing request")
		return false, nil
	}
	entry.Error("revocation check failed, rejecting request")
	return false, ErrUnavailable
}
