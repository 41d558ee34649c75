package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authz-core/internal/cache"
	"github.com/iliyamo/authz-core/internal/queue"
	"github.com/iliyamo/authz-core/internal/service/servicetest"
)

type recordingPublisher struct {
	mu       sync.Mutex
	events   []queue.RoleChangedEvent
	deadline time.Time
	err      error
}

func (p *recordingPublisher) PublishRoleChanged(ctx context.Context, ev queue.RoleChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	p.deadline, _ = ctx.Deadline()
	return p.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type harness struct {
	store *servicetest.MemStore
	mr    *miniredis.Miniredis
	cache *cache.PermissionCache
	pub   *recordingPublisher
	svc   *PermissionService
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	store := servicetest.NewMemStore()
	pc := cache.NewPermissionCache(cache.NewRedisStore(rdb), time.Hour, quietLogger())
	pub := &recordingPublisher{}
	opts = append([]Option{WithPublisher(pub)}, opts...)
	return &harness{
		store: store,
		mr:    mr,
		cache: pc,
		pub:   pub,
		svc:   NewPermissionService(store, pc, quietLogger(), opts...),
	}
}
