package dbmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type ScopedDb interface {
	// Conn returns a new connection to the database.
	Conn(ctx context.Context) (ScopedConn, error)
	// DB returns the underlying pool, for schema setup and tests.
	DB() *sqlx.DB
	// Stats returns the number of connection requests and returns.
	Stats() (requests, returns uint64)
	// Close closes the pool.
	Close() error
}

type ScopedConn interface {
	// AddScopes adds the given scopes to the connection.
	AddScopes(ctx context.Context, scopes map[string]string) error
	// AddScope adds the given scope with the given value to the connection.
	AddScope(ctx context.Context, scope, value string) error
	// DropScope drops a single scope from the connection.
	DropScope(ctx context.Context, scope string) error
	// DropAllScopes drops all scopes from the connection.
	DropAllScopes(ctx context.Context) error
	// Scope returns the value set for scope on this connection.
	Scope(scope string) (string, bool)
	// Conn returns the underlying connection of the ScopedConn.
	Conn() *sqlx.Conn
	// Close drops all scopes and returns the connection back to the pool.
	Close(ctx context.Context)
}

type Options struct {
	DSN              string
	MaxOpenConns     int
	StatementTimeout time.Duration
	ConnectRetries   uint
}

func NewScopedDb(ctx context.Context, dbtype string, opts Options, configuredScopes []string) (ScopedDb, error) {
	switch dbtype {
	case "postgresql":
		return NewPostgresqlDb(ctx, opts, configuredScopes)
	}
	return nil, fmt.Errorf("unsupported database type %q", dbtype)
}
