package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// IdParam parses the positive integer path parameter name. what names the resource in the error.
func IdParam(r *http.Request, name, what string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidId(what)
	}
	return id, nil
}

// QueryInt64 parses query parameter name, returning def when it is absent.
func QueryInt64(r *http.Request, name string, def int64) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, ErrInvalidRequest("invalid " + name + " parameter")
	}
	return n, nil
}
