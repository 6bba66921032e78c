package db

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/httpx"
)

// LoadScopedDBMiddleware attaches a scoped db connection to the request context and closes it after the
// request is served. A connection already in the context is reused.
func LoadScopedDBMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Value(ctxDbKey).(DB_); ok {
			next.ServeHTTP(w, r)
			return
		}
		ctx, err := ConnCtx(r.Context())
		if err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("unable to get db connection")
			httpx.ErrApplicationError("unable to service request at this time").Send(w)
			return
		}
		defer func() {
			if dbConn := DB(ctx); dbConn != nil {
				dbConn.Close(context.Background()) // the request context may already be canceled
			}
		}()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
