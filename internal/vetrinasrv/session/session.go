// Package session resolves the user a request acts for from the session cookie.
package session

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/httpx"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db"
	"github.com/vetrina/vetrina/pkg/api"
)

const CookieName = "session"

type ctxKeyType string

const (
	userIdKey ctxKeyType = "userId"
	roleKey   ctxKeyType = "role"
)

func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIdKey, id)
}

// UserID returns the id of the session user, or 0 outside of a session.
func UserID(ctx context.Context) int64 {
	id, _ := ctx.Value(userIdKey).(int64)
	return id
}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

// Role returns the role loaded by RequireAdmin or LoadRole, or "" when it was not loaded.
func Role(ctx context.Context) string {
	r, _ := ctx.Value(roleKey).(string)
	return r
}

func IsAdmin(ctx context.Context) bool {
	return Role(ctx) == api.RoleAdmin
}

// Middleware reads the session cookie and scopes the request's db connection, if any, to its user.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		cookie, err := r.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			log.Ctx(ctx).Debug().Msg("missing session cookie")
			httpx.ErrUnAuthorized("not authenticated").Send(w)
			return
		}
		userID, err := strconv.ParseInt(cookie.Value, 10, 64)
		if err != nil || userID <= 0 {
			log.Ctx(ctx).Debug().Str("session", cookie.Value).Msg("invalid session user id")
			httpx.ErrInvalidRequest("invalid user id").Send(w)
			return
		}
		// websocket routes run without a db connection
		if conn, ok := db.FromContext(ctx); ok {
			if err := conn.AddScope(ctx, db.Scope_UserId, cookie.Value); err != nil {
				log.Ctx(ctx).Error().Err(err).Msg("unable to scope connection")
				httpx.ErrApplicationError("unable to service request at this time").Send(w)
				return
			}
		}
		logger := log.Ctx(ctx).With().Int64("user_id", userID).Logger()
		ctx = logger.WithContext(WithUserID(ctx, userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoadRole stores the session user's role in the context. Unknown users are rejected.
func LoadRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if Role(ctx) != "" {
			next.ServeHTTP(w, r)
			return
		}
		u, err := db.DB(ctx).GetUser(ctx, UserID(ctx))
		if err != nil {
			log.Ctx(ctx).Debug().Err(err).Msg("unable to load session user")
			httpx.ErrUnAuthorized("not authenticated").Send(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithRole(ctx, u.Role)))
	})
}

// RequireAdmin rejects requests from non-admin users.
func RequireAdmin(next http.Handler) http.Handler {
	return LoadRole(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			httpx.ErrForbidden("admin role required").Send(w)
			return
		}
		next.ServeHTTP(w, r)
	}))
}
