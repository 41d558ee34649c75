package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Params locates the MySQL database holding users, roles and permissions.
type Params struct {
	User, Pass, Host, Port, Name string
}

// DSN renders p as a go-sql-driver DSN.  parseTime maps DATETIME to
// time.Time and loc=UTC keeps times consistent.
func (p Params) DSN() string {
	c := mysql.NewConfig()
	c.User = p.User
	c.Passwd = p.Pass
	c.Net = "tcp"
	c.Addr = p.Host + ":" + p.Port
	c.DBName = p.Name
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(ctx context.Context, p Params) (*sql.DB, error) {
	db, err := sql.Open("mysql", p.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: ping %s: %w", p.Host, err)
	}
	return db, nil
}
