package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/common/httpx"
	"github.com/vetrina/vetrina/internal/common/logtrace"
)

var ErrPanic = apperrors.New("Unable to process request. Please try again later.").SetStatusCode(http.StatusInternalServerError)

// PanicHandler turns a panic into a 500. The request id, when known, is echoed so it can be matched to the logs.
func PanicHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				log.Ctx(r.Context()).Error().Bytes("stack", debug.Stack()).Msgf("Panic occurred: %v", err)
				rspErr := ErrPanic
				if id := logtrace.RequestIdFromContext(r.Context()); id != "" {
					rspErr = rspErr.Suffix("request " + id)
				}
				httpx.SendError(w, rspErr)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
