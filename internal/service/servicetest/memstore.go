// Package servicetest provides in-memory collaborators for tests of the
// authorization service and its HTTP surface.
package servicetest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/iliyamo/authz-core/internal/model"
	"github.com/iliyamo/authz-core/internal/repository"
)

// ErrDown is returned by resolver queries while MemStore.Down is set.
var ErrDown = errors.New("dial tcp: connection refused")

// MemStore is an in-memory user/role/permission store for tests.  It
// counts role lookups so callers can tell cache hits from resolutions, and
// fails every resolver query while Down is set.
type MemStore struct {
	mu          sync.Mutex
	Users       map[uint64]model.User
	Roles       map[uint64]model.Role
	Perms       map[uint64]model.Permission
	Assignments map[uint64]map[uint64]bool // user -> roles
	Grants      map[uint64]map[uint64]bool // role -> permissions
	nextID      uint64
	Down        bool
	roleQueries int
}

func NewMemStore() *MemStore {
	return &MemStore{
		Users:       map[uint64]model.User{},
		Roles:       map[uint64]model.Role{},
		Perms:       map[uint64]model.Permission{},
		Assignments: map[uint64]map[uint64]bool{},
		Grants:      map[uint64]map[uint64]bool{},
		nextID:      100,
	}
}

func (m *MemStore) AddUser(id uint64, email, role string) {
	m.Users[id] = model.User{ID: id, Email: email, Role: role, IsActive: true}
}

func (m *MemStore) AddRole(name string, system bool) model.Role {
	m.nextID++
	r := model.Role{ID: m.nextID, Name: name, IsSystem: system}
	m.Roles[r.ID] = r
	return r
}

func (m *MemStore) AddPermission(resource, action string) model.Permission {
	m.nextID++
	p := model.Permission{ID: m.nextID, Resource: resource, Action: action}
	m.Perms[p.ID] = p
	return p
}

func (m *MemStore) Grant(roleID, permID uint64) {
	if m.Grants[roleID] == nil {
		m.Grants[roleID] = map[uint64]bool{}
	}
	m.Grants[roleID][permID] = true
}

func (m *MemStore) Assign(userID, roleID uint64) {
	if m.Assignments[userID] == nil {
		m.Assignments[userID] = map[uint64]bool{}
	}
	m.Assignments[userID][roleID] = true
}

func (m *MemStore) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roleQueries
}

func (m *MemStore) FindRolesForSubject(_ context.Context, subjectID uint64) ([]model.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roleQueries++
	if m.Down {
		return nil, ErrDown
	}
	var out []model.Role
	for id := range m.Assignments[subjectID] {
		out = append(out, m.Roles[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) FindPermissionsForRole(_ context.Context, roleID uint64) ([]model.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Down {
		return nil, ErrDown
	}
	var out []model.Permission
	for id := range m.Grants[roleID] {
		out = append(out, m.Perms[id])
	}
	return out, nil
}

func (m *MemStore) FindRoleByName(_ context.Context, name string) (model.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Roles {
		if r.Name == name {
			return r, nil
		}
	}
	return model.Role{}, repository.ErrNotFound
}

func (m *MemStore) FindUserByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *MemStore) ListRoles(_ context.Context) ([]model.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Role, 0, len(m.Roles))
	for _, r := range m.Roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) FindRoleAssignment(_ context.Context, subjectID, roleID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Assignments[subjectID][roleID], nil
}

func (m *MemStore) CreateRoleAssignment(_ context.Context, subjectID, roleID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Assignments[subjectID][roleID] {
		return repository.ErrDuplicate
	}
	m.Assign(subjectID, roleID)
	return nil
}

func (m *MemStore) DeleteRoleAssignment(_ context.Context, subjectID, roleID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Assignments[subjectID][roleID] {
		return repository.ErrNotFound
	}
	delete(m.Assignments[subjectID], roleID)
	return nil
}

func (m *MemStore) FindSubjectsWithRole(_ context.Context, roleID uint64) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint64
	for uid, roles := range m.Assignments {
		if roles[roleID] {
			ids = append(ids, uid)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemStore) CreateRole(_ context.Context, name, description string, permissionIDs []uint64) (model.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Roles {
		if r.Name == name {
			return model.Role{}, repository.ErrDuplicate
		}
	}
	r := m.AddRole(name, false)
	r.Description = description
	m.Roles[r.ID] = r
	for _, pid := range permissionIDs {
		m.Grant(r.ID, pid)
	}
	return r, nil
}

func (m *MemStore) DeleteRole(_ context.Context, roleID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.Roles[roleID]
	if !ok || r.IsSystem {
		return repository.ErrNotFound
	}
	delete(m.Roles, roleID)
	delete(m.Grants, roleID)
	for _, roles := range m.Assignments {
		delete(roles, roleID)
	}
	return nil
}

func (m *MemStore) FindPermission(_ context.Context, resource, action string) (model.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Perms {
		if p.Matches(resource, action) {
			return p, nil
		}
	}
	return model.Permission{}, repository.ErrNotFound
}

func (m *MemStore) FindRolePermissionGrant(_ context.Context, roleID, permissionID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Grants[roleID][permissionID], nil
}

func (m *MemStore) CreateRolePermissionGrant(_ context.Context, roleID, permissionID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Grants[roleID][permissionID] {
		return repository.ErrDuplicate
	}
	m.Grant(roleID, permissionID)
	return nil
}

func (m *MemStore) DeleteRolePermissionGrant(_ context.Context, roleID, permissionID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Grants[roleID][permissionID] {
		return repository.ErrNotFound
	}
	delete(m.Grants[roleID], permissionID)
	return nil
}

func (m *MemStore) FindUserByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}
