package repository

import "database/sql"

// Store bundles the repositories into the single store the permission
// service consumes.
type Store struct {
	*UserRepo
	*RoleRepo
	*AssignmentRepo
}

// NewStore builds a Store over one connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{
		UserRepo:       NewUserRepo(db),
		RoleRepo:       NewRoleRepo(db),
		AssignmentRepo: NewAssignmentRepo(db),
	}
}
