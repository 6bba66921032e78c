// Package dbmanager manages the PostgreSQL connection pool and hands out connections carrying
// per-request session variables (scopes).
package dbmanager

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

type postgresConn struct {
	conn             *sqlx.Conn
	cancel           context.CancelFunc
	scopes           map[string]string
	configuredScopes []string
	pool             *postgresPool
}

type postgresPool struct {
	configuredScopes []string
	statementTimeout time.Duration
	connRequests     atomic.Uint64
	connReturns      atomic.Uint64
	db               *sqlx.DB
}

// NewPostgresqlDb opens the pool and pings the server, retrying while it comes up.
func NewPostgresqlDb(ctx context.Context, opts Options, configuredScopes []string) (ScopedDb, error) {
	sqlDB, err := sqlx.Open("pgx", opts.DSN)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to open db")
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxOpenConns / 2)
	}

	attempts := opts.ConnectRetries
	if attempts == 0 {
		attempts = 1
	}
	err = retry.Do(
		func() error {
			return sqlDB.PingContext(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Warn().Err(err).Uint("attempt", n+1).Msg("database not reachable, retrying")
		}),
	)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to ping db")
		sqlDB.Close()
		return nil, err
	}

	timeout := opts.StatementTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &postgresPool{
		configuredScopes: configuredScopes,
		statementTimeout: timeout,
		db:               sqlDB,
	}, nil
}

// Conn returns a new connection from the pool with lock and statement timeouts applied and all
// configured scopes reset.
func (p *postgresPool) Conn(ctx context.Context) (ScopedConn, error) {
	ctx, cancel := context.WithCancel(ctx)

	conn, err := p.db.Connx(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to obtain connection")
		cancel()
		return nil, err
	}

	ms := p.statementTimeout.Milliseconds()
	for _, stmt := range []string{
		fmt.Sprintf("SET lock_timeout = %d", ms),
		fmt.Sprintf("SET statement_timeout = %d", ms),
		fmt.Sprintf("SET idle_in_transaction_session_timeout = %d", 4*ms),
	} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("stmt", stmt).Msg("failed to configure connection")
			conn.Close()
			cancel()
			return nil, err
		}
	}

	h := &postgresConn{
		configuredScopes: p.configuredScopes,
		scopes:           make(map[string]string),
		cancel:           cancel,
		pool:             p,
		conn:             conn,
	}

	// clean up the scopes, in case a previous user left them behind
	if err := h.DropAllScopes(ctx); err != nil {
		conn.Close()
		cancel()
		return nil, err
	}

	p.connRequests.Add(1)
	return h, nil
}

func (p *postgresPool) DB() *sqlx.DB {
	return p.db
}

// Stats returns the number of connection requests and returns made to the PostgreSQL database.
func (p *postgresPool) Stats() (requests, returns uint64) {
	return p.connRequests.Load(), p.connReturns.Load()
}

func (p *postgresPool) Close() error {
	return p.db.Close()
}

// Close cleans up the scopes and returns the connection back to the pool.
func (h *postgresConn) Close(ctx context.Context) {
	if h.conn == nil {
		return
	}
	if err := h.DropAllScopes(ctx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to drop scopes on close")
	}
	h.conn.Close()
	h.conn = nil
	if h.cancel != nil {
		h.cancel()
	}
	h.pool.connReturns.Add(1)
}

func (h *postgresConn) isConfiguredScope(scope string) bool {
	for _, s := range h.configuredScopes {
		if s == scope {
			return true
		}
	}
	return false
}

func (h *postgresConn) AddScopes(ctx context.Context, scopes map[string]string) error {
	for scope, value := range scopes {
		if err := h.AddScope(ctx, scope, value); err != nil {
			return err
		}
	}
	return nil
}

// AddScope sets a session variable on the connection. Unconfigured scopes are ignored.
func (h *postgresConn) AddScope(ctx context.Context, scope, value string) error {
	if h.conn == nil {
		return fmt.Errorf("connection closed")
	}
	if !h.isConfiguredScope(scope) {
		log.Ctx(ctx).Warn().Str("scope", scope).Msg("ignoring unconfigured scope")
		return nil
	}
	if _, err := h.conn.ExecContext(ctx, "SELECT set_config($1, $2, false)", scope, value); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("scope", scope).Msg("failed to set scope")
		return err
	}
	h.scopes[scope] = value
	return nil
}

func (h *postgresConn) Scope(scope string) (string, bool) {
	v, ok := h.scopes[scope]
	return v, ok
}

// DropScope resets a single scope on the connection.
func (h *postgresConn) DropScope(ctx context.Context, scope string) error {
	if h.conn == nil {
		return nil
	}
	if _, err := h.conn.ExecContext(ctx, "SELECT set_config($1, '', false)", scope); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("scope", scope).Msg("failed to reset scope")
		return err
	}
	delete(h.scopes, scope)
	return nil
}

// DropAllScopes drops all the configured scopes from the connection.
func (h *postgresConn) DropAllScopes(ctx context.Context) error {
	for _, scope := range h.configuredScopes {
		if err := h.DropScope(ctx, scope); err != nil {
			return err
		}
	}
	return nil
}

// Conn returns the underlying connection.
func (h *postgresConn) Conn() *sqlx.Conn {
	return h.conn
}
