package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/eventbus"
	"github.com/vetrina/vetrina/internal/common/httpx"
	"github.com/vetrina/vetrina/internal/common/logtrace"
	commonmiddleware "github.com/vetrina/vetrina/internal/common/middleware"
	"github.com/vetrina/vetrina/internal/vetrinasrv/catalogs"
	"github.com/vetrina/vetrina/internal/vetrinasrv/config"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db"
	"github.com/vetrina/vetrina/internal/vetrinasrv/notifications"
	"github.com/vetrina/vetrina/internal/vetrinasrv/orders"
	"github.com/vetrina/vetrina/internal/vetrinasrv/products"
	"github.com/vetrina/vetrina/internal/vetrinasrv/session"
	"github.com/vetrina/vetrina/internal/vetrinasrv/sizegroups"
)

const (
	ServerVersion = "Vetrina Server: 0.1.0"
	ApiVersion    = "v1"
)

type VetrinaServer struct {
	Router     *chi.Mux
	Dispatcher *notifications.Dispatcher
	hub        *notifications.Hub
}

// CreateNewServer wires the notification dispatcher and websocket hub to bus.
func CreateNewServer(bus *eventbus.EventBus) (*VetrinaServer, error) {
	if bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	cfg := config.Config()
	s := &VetrinaServer{
		Router:     chi.NewRouter(),
		Dispatcher: notifications.NewDispatcher(bus, cfg.PushTimeoutDuration()),
		hub:        notifications.NewHub(bus, cfg.WebsocketPingDuration(), cfg.AllowedOrigins),
	}
	return s, nil
}

func (s *VetrinaServer) MountHandlers() {
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	if config.Config().HandleCORS {
		s.Router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   config.Config().AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding"},
			ExposedHeaders:   []string{"Location", commonmiddleware.RequestIdHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	s.Router.Use(s.withDispatcher)
	s.Router.Get("/version", s.getVersion)
	s.Router.Route("/api", s.mountResourceHandlers)
	if logtrace.IsTraceEnabled() {
		fmt.Println("Routes in vetrina router")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			fmt.Printf("%s %s\n", method, route)
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			fmt.Printf("Logging err: %s\n", err.Error())
		}
	}
}

func (s *VetrinaServer) mountResourceHandlers(r chi.Router) {
	// the notification channel is long lived and must not hold a db connection
	r.With(session.Middleware).Get("/notifications/ws", s.hub.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(db.LoadScopedDBMiddleware)
		r.Use(session.Middleware)
		r.Route("/size-groups", sizegroups.Router)
		r.Route("/products", products.Router)
		r.Route("/orders", orders.Router)
		r.Route("/catalogs", catalogs.Router)
		r.Route("/notifications", notifications.Router)
	})
}

func (s *VetrinaServer) withDispatcher(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(notifications.WithDispatcher(r.Context(), s.Dispatcher)))
	})
}

type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *VetrinaServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion: ServerVersion,
		ApiVersion:    ApiVersion,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}
