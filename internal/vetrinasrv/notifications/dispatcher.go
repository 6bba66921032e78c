// Package notifications stores user notifications and pushes them to connected clients.
//
// The database row is authoritative. The push over the user's websocket room is best effort: a failed or
// missed push is logged and the notification stays available through the list and unread-count endpoints.
package notifications

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/common/eventbus"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
	"github.com/vetrina/vetrina/pkg/api"
)

// Event is a domain event to notify.
type Event struct {
	Type      string
	Icon      string
	Color     string
	BrandID   *int64
	BrandName *string
	Message   string
}

type style struct{ icon, color string }

var defaultStyles = map[string]style{
	api.NotificationNewCatalog:    {"book-open", "blue"},
	api.NotificationOrderStatus:   {"shopping-cart", "green"},
	api.NotificationCatalogUpdate: {"refresh", "orange"},
	api.NotificationSystem:        {"info", "gray"},
}

// Store persists notifications.
type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) apperrors.Error
	CreateNotificationForRole(ctx context.Context, role string, n *models.Notification) ([]models.Notification, apperrors.Error)
}

type Dispatcher struct {
	bus         *eventbus.EventBus
	pushTimeout time.Duration
	store       func(context.Context) Store
}

type Option func(*Dispatcher)

// WithStore makes the dispatcher write through s instead of the request's connection.
func WithStore(s Store) Option {
	return func(d *Dispatcher) {
		d.store = func(context.Context) Store { return s }
	}
}

func NewDispatcher(bus *eventbus.EventBus, pushTimeout time.Duration, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		bus:         bus,
		pushTimeout: pushTimeout,
		store:       func(ctx context.Context) Store { return db.DB(ctx) },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Room is the event bus topic of a user's realtime channel.
func Room(userID int64) string {
	return "user." + strconv.FormatInt(userID, 10)
}

// Notify stores ev as an unread notification of userID and pushes it to the user's room.
func (d *Dispatcher) Notify(ctx context.Context, userID int64, ev Event) (*api.Notification, error) {
	n := toModel(ev)
	n.UserID = userID
	if err := d.store(ctx).CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	rsp := ToAPI(n)
	d.push(ctx, rsp)
	return &rsp, nil
}

// NotifyClients stores ev for every client user and pushes each copy. It returns the number of users notified.
func (d *Dispatcher) NotifyClients(ctx context.Context, ev Event) (int, error) {
	rows, err := d.store(ctx).CreateNotificationForRole(ctx, api.RoleClient, toModel(ev))
	if err != nil {
		return 0, err
	}
	for i := range rows {
		d.push(ctx, ToAPI(&rows[i]))
	}
	log.Ctx(ctx).Info().Str("type", ev.Type).Int("users", len(rows)).Msg("notified clients")
	return len(rows), nil
}

func (d *Dispatcher) push(ctx context.Context, n api.Notification) {
	if d.bus == nil {
		return
	}
	delivered := d.bus.Publish(Room(n.UserID), n, d.pushTimeout)
	if delivered == 0 && d.bus.SubscriberCount(Room(n.UserID)) > 0 {
		log.Ctx(ctx).Warn().Int64("user_id", n.UserID).Int64("notification_id", n.ID).Msg("notification push not delivered")
		return
	}
	log.Ctx(ctx).Debug().Int64("user_id", n.UserID).Int("delivered", delivered).Msg("notification pushed")
}

func toModel(ev Event) *models.Notification {
	s := defaultStyles[ev.Type]
	n := &models.Notification{
		Type:    ev.Type,
		Icon:    ev.Icon,
		Color:   ev.Color,
		Message: ev.Message,
	}
	if n.Icon == "" {
		n.Icon = s.icon
	}
	if n.Color == "" {
		n.Color = s.color
	}
	if ev.BrandID != nil {
		n.BrandID = sql.NullInt64{Int64: *ev.BrandID, Valid: true}
	}
	if ev.BrandName != nil {
		n.BrandName = sql.NullString{String: *ev.BrandName, Valid: true}
	}
	return n
}

func ToAPI(n *models.Notification) api.Notification {
	rsp := api.Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Icon:      n.Icon,
		Color:     n.Color,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	if n.BrandID.Valid {
		b := n.BrandID.Int64
		rsp.BrandID = &b
	}
	if n.BrandName.Valid {
		s := n.BrandName.String
		rsp.BrandName = &s
	}
	return rsp
}

// OrderStatusEvent describes an order status change.
func OrderStatusEvent(orderID, brandID int64, status string) Event {
	ev := Event{
		Type:    api.NotificationOrderStatus,
		Message: fmt.Sprintf("Order #%d is now %s", orderID, status),
	}
	if brandID > 0 {
		ev.BrandID = &brandID
	}
	return ev
}

type ctxKeyType string

const dispatcherKey ctxKeyType = "dispatcher"

func WithDispatcher(ctx context.Context, d *Dispatcher) context.Context {
	return context.WithValue(ctx, dispatcherKey, d)
}

// FromContext returns the dispatcher installed by the server, or nil.
func FromContext(ctx context.Context) *Dispatcher {
	d, _ := ctx.Value(dispatcherKey).(*Dispatcher)
	return d
}
