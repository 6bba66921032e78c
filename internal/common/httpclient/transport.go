package httpclient

import (
	"net/http"
	"net/http/httptest"
)

// HandlerTransport serves requests directly from an http.Handler without a network listener.
type HandlerTransport struct {
	Handler http.Handler
}

func (t HandlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rr := httptest.NewRecorder()
	t.Handler.ServeHTTP(rr, req)
	return rr.Result(), nil
}
