package notifications

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/eventbus"
	"github.com/vetrina/vetrina/internal/common/httpx"
	"github.com/vetrina/vetrina/internal/vetrinasrv/session"
)

const (
	writeWait     = 10 * time.Second
	roomQueueSize = 16
)

// Hub upgrades notification channels and relays the events of each user's room.
type Hub struct {
	bus            *eventbus.EventBus
	pingInterval   time.Duration
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewHub returns a hub. With no allowed origins any origin may connect.
func NewHub(bus *eventbus.EventBus, pingInterval time.Duration, allowedOrigins []string) *Hub {
	h := &Hub{
		bus:            bus,
		pingInterval:   pingInterval,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 5 * time.Second,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.allowedOrigins, origin)
}

// ServeHTTP upgrades the session user's connection and streams its notifications as JSON frames
// until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := session.UserID(ctx)
	if userID == 0 {
		httpx.ErrUnAuthorized("not authenticated").Send(w)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		log.Ctx(ctx).Error().Err(err).Msg("failed to upgrade notification channel")
		return
	}
	connID, _ := gonanoid.New(10)
	ctx = log.Ctx(ctx).With().Str("channel_id", connID).Logger().WithContext(ctx)

	events, unsubscribe := h.bus.Subscribe(Room(userID), roomQueueSize)
	defer unsubscribe()
	log.Ctx(ctx).Info().Int64("user_id", userID).Msg("notification channel opened")

	closed := make(chan struct{})
	go h.readLoop(conn, closed)
	h.writeLoop(ctx, conn, events, closed)
}

// readLoop discards client frames; it exists to process control frames and notice the close.
func (h *Hub) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	if h.pingInterval > 0 {
		conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
		})
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan eventbus.Event, closed <-chan struct{}) {
	var ping <-chan time.Time
	if h.pingInterval > 0 {
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer gracefulClose(ctx, conn, websocket.CloseNormalClosure, "notification channel closed")

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev.Data); err != nil {
				log.Ctx(ctx).Info().Err(err).Msg("notification write failed")
				return
			}
		case <-ping:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Ctx(ctx).Debug().Err(err).Msg("ping failed")
				return
			}
		case <-closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

func gracefulClose(ctx context.Context, conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	_ = conn.Close()
	log.Ctx(ctx).Info().Msg("notification channel closed")
}
