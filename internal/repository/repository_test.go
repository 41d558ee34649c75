package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewStore(db), mock
}

func TestMapErr(t *testing.T) {
	assert.Nil(t, mapErr(nil))
	assert.ErrorIs(t, mapErr(sql.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, mapErr(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}), ErrDuplicate)
	other := errors.New("boom")
	assert.Equal(t, other, mapErr(other))
}

func TestFindUserByEmailNormalizes(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT id,email,password_hash,role,is_active,created_at,updated_at FROM users WHERE email=\?`).
		WithArgs("u@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "is_active", "created_at", "updated_at"}).
			AddRow(4, "u@example.com", "$2a$hash", "general", true, now, now))

	u, err := s.FindUserByEmail(context.Background(), "  U@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), u.ID)
	assert.Equal(t, "general", u.Role)
}

func TestFindUserByIDNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`FROM users WHERE id=\?`).WithArgs(uint64(9)).WillReturnError(sql.ErrNoRows)

	_, err := s.FindUserByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindRolesForSubject(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`FROM user_roles ur\s+JOIN roles r`).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "is_system", "created_at"}).
			AddRow(1, "admin", "Administrators", true, now).
			AddRow(3, "editor", nil, false, now))

	roles, err := s.FindRolesForSubject(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "admin", roles[0].Name)
	assert.True(t, roles[0].IsSystem)
	assert.Equal(t, "", roles[1].Description)
}

func TestFindPermissionsForRole(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`FROM role_permissions rp\s+JOIN permissions p`).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "resource", "action"}).
			AddRow(10, "documents", "write"))

	perms, err := s.FindPermissionsForRole(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "documents:write", perms[0].Name())
}

func TestFindRoleAssignment(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT 1 FROM user_roles`).WithArgs(uint64(1), uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(`SELECT 1 FROM user_roles`).WithArgs(uint64(1), uint64(3)).
		WillReturnError(sql.ErrNoRows)

	ok, err := s.FindRoleAssignment(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.FindRoleAssignment(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateRoleAssignmentDuplicate(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO user_roles`).WithArgs(uint64(1), uint64(2)).
		WillReturnError(&mysql.MySQLError{Number: 1062})

	err := s.CreateRoleAssignment(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestDeleteRoleAssignmentMissing(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`DELETE FROM user_roles`).WithArgs(uint64(1), uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteRoleAssignment(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRoleWithGrantsIsTransactional(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO roles`).WithArgs("editor", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec(`INSERT INTO role_permissions \(role_id, permission_id\) VALUES \(\?, \?\),\(\?, \?\)`).
		WithArgs(int64(5), uint64(10), int64(5), uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	role, err := s.CreateRole(context.Background(), "editor", "Edits docs", []uint64{10, 11})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), role.ID)
	assert.Equal(t, "editor", role.Name)
}

func TestCreateRoleDuplicateNameRollsBack(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO roles`).WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectRollback()

	_, err := s.CreateRole(context.Background(), "admin", "", nil)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestDeleteRoleSkipsSystemRoles(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`DELETE FROM roles WHERE id=\? AND is_system=FALSE`).WithArgs(uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.DeleteRole(context.Background(), 1), ErrNotFound)
}

func TestFindSubjectsWithRole(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT user_id FROM user_roles WHERE role_id=\?`).WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(1).AddRow(8))

	ids, err := s.FindSubjectsWithRole(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 8}, ids)
}
