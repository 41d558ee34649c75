package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/authz-core/internal/cache"
	"github.com/iliyamo/authz-core/internal/queue"
)

const actor = uint64(1)

func TestAssignRoleInvalidatesCachedDenial(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.AddUser(2, "v@x.io", "general")
	mgr := h.store.AddRole("manager", false)
	p := h.store.AddPermission("reports", "approve")
	h.store.Grant(mgr.ID, p.ID)

	require.False(t, h.svc.HasPermission(ctx, 2, "reports", "approve"))
	require.True(t, h.mr.Exists(cache.PermissionKey(2, "reports", "approve")))

	require.NoError(t, h.svc.AssignRole(ctx, actor, 2, "manager"))
	assert.False(t, h.mr.Exists(cache.PermissionKey(2, "reports", "approve")))

	before := h.store.Queries()
	assert.True(t, h.svc.HasPermission(ctx, 2, "reports", "approve"))
	assert.Greater(t, h.store.Queries(), before, "verdict recomputed from the store")

	require.Len(t, h.pub.events, 1)
	ev := h.pub.events[0]
	assert.Equal(t, queue.KindRoleAssigned, ev.Kind)
	assert.Equal(t, uint64(2), ev.SubjectID)
	assert.Equal(t, actor, ev.ActorID)
	assert.False(t, ev.At.IsZero())
}

func TestAssignRoleDuplicateLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.store.AddRole("admin", true)
	assign := h.store.AddPermission("roles", "assign")
	h.store.Grant(admin.ID, assign.ID)
	h.store.AddUser(1, "u@x.io", "admin")
	h.store.Assign(1, admin.ID)

	mgr := h.store.AddRole("manager", false)
	h.store.AddUser(2, "v@x.io", "manager")
	h.store.Assign(2, mgr.ID)
	require.True(t, h.svc.HasPermission(ctx, 1, "roles", "assign"))
	h.cache.Put(ctx, 2, "reports", "read", true)

	err := h.svc.AssignRole(ctx, 1, 2, "manager")
	assert.ErrorIs(t, err, ErrDuplicateAssignment)

	roles, err := h.store.FindRolesForSubject(ctx, 2)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "manager", roles[0].Name)
	assert.True(t, h.mr.Exists(cache.PermissionKey(2, "reports", "read")), "cache untouched")
	assert.Empty(t, h.pub.events)
}

func TestAssignRoleLookups(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.AddRole("manager", false)
	h.store.AddUser(2, "v@x.io", "general")

	assert.ErrorIs(t, h.svc.AssignRole(ctx, actor, 2, "ghost"), ErrRoleNotFound)
	assert.ErrorIs(t, h.svc.AssignRole(ctx, actor, 404, "manager"), ErrUserNotFound)
}

func TestRemoveRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mgr := h.store.AddRole("manager", false)
	p := h.store.AddPermission("reports", "approve")
	h.store.Grant(mgr.ID, p.ID)
	h.store.AddUser(2, "v@x.io", "general")
	h.store.Assign(2, mgr.ID)

	require.True(t, h.svc.HasPermission(ctx, 2, "reports", "approve"))
	require.NoError(t, h.svc.RemoveRole(ctx, actor, 2, "manager"))
	assert.False(t, h.svc.HasPermission(ctx, 2, "reports", "approve"))

	assert.ErrorIs(t, h.svc.RemoveRole(ctx, actor, 2, "manager"), ErrAssignmentNotFound)
}

func TestMutationSurvivesCacheOutage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.AddRole("manager", false)
	h.store.AddUser(2, "v@x.io", "general")
	h.mr.Close()

	require.NoError(t, h.svc.AssignRole(ctx, actor, 2, "manager"))
	held, err := h.store.FindRoleAssignment(ctx, 2, h.mustRole(t, "manager"))
	require.NoError(t, err)
	assert.True(t, held, "store write is kept when invalidation fails")
}

func (h *harness) mustRole(t *testing.T, name string) uint64 {
	t.Helper()
	r, err := h.store.FindRoleByName(context.Background(), name)
	require.NoError(t, err)
	return r.ID
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	h := newHarness(t)
	h.pub.err = errors.New("broker down")
	h.store.AddRole("manager", false)
	h.store.AddUser(2, "v@x.io", "general")
	log, hook := logtest.NewNullLogger()
	h.svc.log = log

	start := time.Now()
	assert.NoError(t, h.svc.AssignRole(context.Background(), actor, 2, "manager"))

	require.False(t, h.pub.deadline.IsZero(), "publish runs under a deadline")
	assert.WithinDuration(t, start.Add(5*time.Second), h.pub.deadline, time.Second)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "audit event not published", hook.LastEntry().Message)
}

func TestCreateRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.AddPermission("documents", "read")
	h.store.AddPermission("documents", "write")

	role, err := h.svc.CreateRole(ctx, actor, CreateRoleInput{
		Name:        " editor ",
		Description: "Edits documents",
		Permissions: []PermissionRef{
			{Resource: "documents", Action: "read"},
			{Resource: "documents", Action: "write"},
			{Resource: "documents", Action: "write"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "editor", role.Name)
	assert.Len(t, h.store.Grants[role.ID], 2)

	_, err = h.svc.CreateRole(ctx, actor, CreateRoleInput{Name: "editor"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = h.svc.CreateRole(ctx, actor, CreateRoleInput{Name: "x", Permissions: []PermissionRef{{Resource: "nope", Action: "nope"}}})
	assert.ErrorIs(t, err, ErrPermissionNotFound)

	_, err = h.svc.CreateRole(ctx, actor, CreateRoleInput{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.AddRole("admin", true)
	temp := h.store.AddRole("temp", false)
	p := h.store.AddPermission("reports", "read")
	h.store.Grant(temp.ID, p.ID)
	h.store.Assign(3, temp.ID)
	require.True(t, h.svc.HasPermission(ctx, 3, "reports", "read"))

	assert.ErrorIs(t, h.svc.DeleteRole(ctx, actor, "admin"), ErrSystemRole)
	require.NoError(t, h.svc.DeleteRole(ctx, actor, "temp"))
	assert.False(t, h.svc.HasPermission(ctx, 3, "reports", "read"))
	assert.ErrorIs(t, h.svc.DeleteRole(ctx, actor, "temp"), ErrRoleNotFound)
}

func TestGrantPermissionFansOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.store.AddRole("editor", false)
	h.store.AddPermission("documents", "publish")
	h.store.Assign(5, r.ID)

	require.False(t, h.svc.HasPermission(ctx, 5, "documents", "publish"))
	require.NoError(t, h.svc.GrantPermission(ctx, actor, "editor", "documents", "publish"))
	assert.True(t, h.svc.HasPermission(ctx, 5, "documents", "publish"))

	assert.ErrorIs(t, h.svc.GrantPermission(ctx, actor, "editor", "documents", "publish"), ErrDuplicateGrant)

	require.NoError(t, h.svc.RevokePermission(ctx, actor, "editor", "documents", "publish"))
	assert.False(t, h.svc.HasPermission(ctx, 5, "documents", "publish"))
	assert.ErrorIs(t, h.svc.RevokePermission(ctx, actor, "editor", "documents", "publish"), ErrGrantNotFound)
}

func TestGrantWithoutFanoutKeepsStaleVerdict(t *testing.T) {
	h := newHarness(t, WithFanout(false))
	ctx := context.Background()
	r := h.store.AddRole("editor", false)
	h.store.AddPermission("documents", "publish")
	h.store.Assign(5, r.ID)

	require.False(t, h.svc.HasPermission(ctx, 5, "documents", "publish"))
	require.NoError(t, h.svc.GrantPermission(ctx, actor, "editor", "documents", "publish"))
	assert.False(t, h.svc.HasPermission(ctx, 5, "documents", "publish"), "served from cache until ttl")
	assert.True(t, h.svc.Resolve(ctx, 5, "documents", "publish"))
}

func TestColonInPermissionPartsIsInvalidInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.AddRole("editor", false)

	err := h.svc.GrantPermission(ctx, actor, "editor", "a:b", "c")
	assert.ErrorIs(t, err, ErrInvalidInput)
	err = h.svc.RevokePermission(ctx, actor, "editor", "a", "b:c")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = h.svc.CreateRole(ctx, actor, CreateRoleInput{Name: "x", Permissions: []PermissionRef{{Resource: "a:b", Action: "c"}}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.NoError(t, ValidRef("documents", "write"))
	assert.ErrorIs(t, ValidRef("", "write"), ErrInvalidInput)
	assert.Empty(t, h.pub.events)
}
