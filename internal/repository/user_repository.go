package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/authz-core/internal/model"
)

// UserRepo reads the 'users' table.  Users are created by registration,
// which lives outside this service.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,password_hash,role,is_active,created_at,updated_at"

// FindUserByID fetches a user by id.
func (r *UserRepo) FindUserByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, mapErr(err)
}

// FindUserByEmail fetches a user by normalized email.
func (r *UserRepo) FindUserByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, mapErr(err)
}
