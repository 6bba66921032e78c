package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	json "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/common/eventbus"
	commonmiddleware "github.com/vetrina/vetrina/internal/common/middleware"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
	"github.com/vetrina/vetrina/internal/vetrinasrv/notifications"
	"github.com/vetrina/vetrina/pkg/api"
)

type fakeDB struct {
	db.DB_
	scopes map[string]string
}

func (f *fakeDB) AddScope(ctx context.Context, scope, value string) error {
	f.scopes[scope] = value
	return nil
}

func (f *fakeDB) GetUser(ctx context.Context, id int64) (*models.User, apperrors.Error) {
	return &models.User{ID: id, Role: api.RoleClient}, nil
}

func (f *fakeDB) ListOrders(ctx context.Context, userID int64) ([]models.Order, apperrors.Error) {
	return []models.Order{{ID: 42, UserID: userID, Status: api.OrderStatusDraft}}, nil
}

func newServer(t *testing.T) (*VetrinaServer, *eventbus.EventBus) {
	t.Helper()
	bus := eventbus.New()
	t.Cleanup(bus.Shutdown)
	s, err := CreateNewServer(bus)
	require.NoError(t, err)
	s.MountHandlers()
	return s, bus
}

func execute(s *VetrinaServer, f *fakeDB, req *http.Request) *httptest.ResponseRecorder {
	ctx := db.WithDB(log.Logger.WithContext(req.Context()), f)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req.WithContext(ctx))
	return w
}

func TestVersion(t *testing.T) {
	s, _ := newServer(t)
	w := execute(s, &fakeDB{}, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(commonmiddleware.RequestIdHeader))
	var rsp GetVersionRsp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))
	assert.Equal(t, ApiVersion, rsp.ApiVersion)
}

func TestSessionIsRequired(t *testing.T) {
	s, _ := newServer(t)
	f := &fakeDB{scopes: map[string]string{}}

	w := execute(s, f, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
	w = execute(s, f, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "2"})
	w = execute(s, f, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "2", f.scopes[db.Scope_UserId])
	var rsp api.OrderListRsp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))
	require.Len(t, rsp.Orders, 1)
	assert.Equal(t, int64(2), rsp.Orders[0].UserID)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := execute(s, &fakeDB{}, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = execute(s, &fakeDB{}, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNotificationChannel(t *testing.T) {
	s, bus := newServer(t)
	srv := httptest.NewServer(s.Router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/notifications/ws"

	_, rsp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, rsp)
	assert.Equal(t, http.StatusUnauthorized, rsp.StatusCode)

	header := http.Header{}
	header.Set("Cookie", "session=2")
	header.Set("Origin", "http://localhost:3000")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return bus.SubscriberCount(notifications.Room(2)) == 1 }, time.Second, 10*time.Millisecond)
	delivered := bus.Publish(notifications.Room(2), api.Notification{ID: 1, UserID: 2, Type: api.NotificationSystem, Message: "hi"}, time.Second)
	assert.Equal(t, 1, delivered)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var n api.Notification
	require.NoError(t, conn.ReadJSON(&n))
	assert.Equal(t, "hi", n.Message)
}
