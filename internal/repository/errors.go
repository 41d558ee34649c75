// Package repository implements the user/role/permission store on MySQL.
// Callers distinguish failure modes through the sentinels below; raw driver
// errors are wrapped and never leave the service layer.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("repository: not found")

// ErrDuplicate is returned when an insert violates a unique key, e.g. a
// role name that already exists or an assignment that is already present.
var ErrDuplicate = errors.New("repository: duplicate entry")

const mysqlDuplicateEntry = 1062

// mapErr converts driver errors into the package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return ErrDuplicate
	}
	return err
}
