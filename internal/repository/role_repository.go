package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/authz-core/internal/model"
)

// RoleRepo persists roles, permissions and the role_permissions join.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

const roleColumns = "id,name,description,is_system,created_at"

func scanRole(row interface{ Scan(...any) error }) (model.Role, error) {
	var (
		r    model.Role
		desc sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Name, &desc, &r.IsSystem, &r.CreatedAt); err != nil {
		return model.Role{}, err
	}
	r.Description = desc.String
	return r, nil
}

// FindRoleByName returns the role with the given unique name.
func (r *RoleRepo) FindRoleByName(ctx context.Context, name string) (model.Role, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+roleColumns+" FROM roles WHERE name=? LIMIT 1", name)
	role, err := scanRole(row)
	return role, mapErr(err)
}

// ListRoles returns all roles ordered by name.
func (r *RoleRepo) ListRoles(ctx context.Context) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+roleColumns+" FROM roles ORDER BY name")
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

// CreateRole inserts a role and, in the same transaction, grants it every
// permission in permissionIDs.  Either everything is written or nothing.
func (r *RoleRepo) CreateRole(ctx context.Context, name, description string, permissionIDs []uint64) (model.Role, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Role{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var desc sql.NullString
	if description != "" {
		desc = sql.NullString{String: description, Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO roles (name, description, is_system) VALUES (?,?,FALSE)", name, desc)
	if err != nil {
		return model.Role{}, mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Role{}, err
	}

	if len(permissionIDs) > 0 {
		query := "INSERT INTO role_permissions (role_id, permission_id) VALUES "
		args := make([]interface{}, 0, len(permissionIDs)*2)
		for i, pid := range permissionIDs {
			if i > 0 {
				query += ","
			}
			query += "(?, ?)"
			args = append(args, id, pid)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return model.Role{}, fmt.Errorf("grant permissions: %w", mapErr(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Role{}, err
	}
	return model.Role{ID: uint64(id), Name: name, Description: description}, nil
}

// DeleteRole removes a non-system role.  user_roles and role_permissions
// rows go with it through ON DELETE CASCADE.
func (r *RoleRepo) DeleteRole(ctx context.Context, roleID uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM roles WHERE id=? AND is_system=FALSE", roleID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// FindPermission returns the permission for an exact (resource, action).
func (r *RoleRepo) FindPermission(ctx context.Context, resource, action string) (model.Permission, error) {
	var p model.Permission
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,resource,action FROM permissions WHERE resource=? AND action=? LIMIT 1",
		resource, action).Scan(&p.ID, &p.Resource, &p.Action)
	return p, mapErr(err)
}

// FindPermissionsForRole returns every permission granted to roleID.
func (r *RoleRepo) FindPermissionsForRole(ctx context.Context, roleID uint64) ([]model.Permission, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT p.id, p.resource, p.action
		   FROM role_permissions rp
		   JOIN permissions p ON p.id = rp.permission_id
		  WHERE rp.role_id = ?`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []model.Permission
	for rows.Next() {
		var p model.Permission
		if err := rows.Scan(&p.ID, &p.Resource, &p.Action); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// FindRolePermissionGrant reports whether roleID grants permissionID.
func (r *RoleRepo) FindRolePermissionGrant(ctx context.Context, roleID, permissionID uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM role_permissions WHERE role_id=? AND permission_id=? LIMIT 1",
		roleID, permissionID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateRolePermissionGrant inserts a role_permissions row.
func (r *RoleRepo) CreateRolePermissionGrant(ctx context.Context, roleID, permissionID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO role_permissions (role_id, permission_id) VALUES (?,?)", roleID, permissionID)
	return mapErr(err)
}

// DeleteRolePermissionGrant removes a role_permissions row.
func (r *RoleRepo) DeleteRolePermissionGrant(ctx context.Context, roleID, permissionID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM role_permissions WHERE role_id=? AND permission_id=?", roleID, permissionID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
