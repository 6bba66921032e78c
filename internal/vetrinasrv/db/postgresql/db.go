// Package postgresql implements the Vetrina data managers on PostgreSQL.
package postgresql

import (
	"context"
	"math"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/dberror"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/dbmanager"
)

// Scope_UserId is the session variable carrying the user a connection acts for.
const Scope_UserId = "vetrina.curr_user_id"

var ErrMissingUser = dberror.ErrInvalidInput.New("missing user scope")

type manager struct {
	c dbmanager.ScopedConn
}

func (m *manager) conn() *sqlx.Conn {
	return m.c.Conn()
}

// scopedUser returns the user id the connection is scoped to.
func (m *manager) scopedUser(ctx context.Context) (int64, apperrors.Error) {
	v, ok := m.c.Scope(Scope_UserId)
	if !ok || v == "" {
		log.Ctx(ctx).Error().Msg("connection has no user scope")
		return 0, ErrMissingUser
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, ErrMissingUser.Err(err)
	}
	return id, nil
}

type productManager struct{ manager }
type orderManager struct{ manager }
type catalogManager struct{ manager }
type notificationManager struct{ manager }

type connectionManager struct {
	manager
}

func (cm *connectionManager) AddScopes(ctx context.Context, scopes map[string]string) error {
	return cm.c.AddScopes(ctx, scopes)
}

func (cm *connectionManager) AddScope(ctx context.Context, scope, value string) error {
	return cm.c.AddScope(ctx, scope, value)
}

func (cm *connectionManager) DropScope(ctx context.Context, scope string) error {
	return cm.c.DropScope(ctx, scope)
}

func (cm *connectionManager) DropAllScopes(ctx context.Context) error {
	return cm.c.DropAllScopes(ctx)
}

func (cm *connectionManager) Close(ctx context.Context) {
	cm.c.Close(ctx)
}

type Managers struct {
	Products      *productManager
	Orders        *orderManager
	Catalogs      *catalogManager
	Notifications *notificationManager
	Connection    *connectionManager
}

func NewVetrinaDb(c dbmanager.ScopedConn) Managers {
	m := manager{c: c}
	return Managers{
		Products:      &productManager{m},
		Orders:        &orderManager{m},
		Catalogs:      &catalogManager{m},
		Notifications: &notificationManager{m},
		Connection:    &connectionManager{m},
	}
}

// offset is the row offset of page. Pages past the last representable offset clamp to MaxInt64,
// which yields an empty page.
func offset(page, limit int64) int64 {
	if page < 1 || limit <= 0 {
		return 0
	}
	if page-1 > math.MaxInt64/limit {
		return math.MaxInt64
	}
	return (page - 1) * limit
}
