package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/authz-core/internal/model"
)

// AssignmentRepo manages the user_roles join table.
type AssignmentRepo struct{ DB *sql.DB }

func NewAssignmentRepo(db *sql.DB) *AssignmentRepo { return &AssignmentRepo{DB: db} }

// FindRolesForSubject returns every role assigned to userID, ordered by name.
func (r *AssignmentRepo) FindRolesForSubject(ctx context.Context, userID uint64) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT r.id, r.name, r.description, r.is_system, r.created_at
		   FROM user_roles ur
		   JOIN roles r ON r.id = ur.role_id
		  WHERE ur.user_id = ?
		  ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []model.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// FindRoleAssignment reports whether userID currently holds roleID.
func (r *AssignmentRepo) FindRoleAssignment(ctx context.Context, userID, roleID uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM user_roles WHERE user_id=? AND role_id=? LIMIT 1", userID, roleID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateRoleAssignment inserts a user_roles row.  A concurrent duplicate
// surfaces as ErrDuplicate through the composite primary key.
func (r *AssignmentRepo) CreateRoleAssignment(ctx context.Context, userID, roleID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO user_roles (user_id, role_id) VALUES (?,?)", userID, roleID)
	return mapErr(err)
}

// DeleteRoleAssignment removes a user_roles row.
func (r *AssignmentRepo) DeleteRoleAssignment(ctx context.Context, userID, roleID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM user_roles WHERE user_id=? AND role_id=?", userID, roleID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// FindSubjectsWithRole lists the user IDs holding roleID.
func (r *AssignmentRepo) FindSubjectsWithRole(ctx context.Context, roleID uint64) ([]uint64, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT user_id FROM user_roles WHERE role_id=?", roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
