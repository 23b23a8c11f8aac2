package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	defaultMaxOpenConns = 4
	defaultMaxIdleConns = 1
	defaultConnLifetime = 10 * time.Minute
	defaultPingTimeout  = 5 * time.Second
)

// ErrEmptyDSN is returned when no DSN is configured.
var ErrEmptyDSN = errors.New("db: empty DSN")

// NewPostgresDB creates a pgx/stdlib backed *sql.DB pool sized for a short-lived batch run and
// validates the connection.
func NewPostgresDB(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrEmptyDSN
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
