package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vetrina/vetrina/internal/common/httpclient"
	"github.com/vetrina/vetrina/pkg/api"
	"github.com/vetrina/vetrina/pkg/ordering"
)

// resetFlags restores every flag to its default so runs do not leak into each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// writeConfig writes a config for serverURL and returns its path.
func writeConfig(t *testing.T, serverURL string) string {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	c := &Config{Version: "1", ServerURL: serverURL, Session: "2", DraftFile: filepath.Join(dir, "drafts.db")}
	require.NoError(t, c.WriteConfig(file))
	return file
}

var groupSizes = map[string][]api.Size{
	"7": {{ID: 11, Name: "S"}, {ID: 12, Name: "M"}, {ID: 13, Name: "L"}},
	"8": {{ID: 21, Name: "1"}},
}

// fakeServer keeps the lines of order 42, brand 3.
type fakeServer struct {
	mu     sync.Mutex
	lines  []api.OrderLine
	posted []ordering.Row
	status string
	read   []string
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeServer) router() http.Handler {
	f.status = api.OrderStatusDraft
	r := chi.NewRouter()
	r.Get("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.OrderListRsp{Orders: []api.Order{{ID: 42, CatalogID: 5, BrandID: 3, Status: f.status}}})
	})
	r.Post("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, api.Order{ID: 43, CatalogID: 5, BrandID: 3, Status: api.OrderStatusDraft})
	})
	r.Get("/api/orders/{orderId}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "orderId") != "42" {
			writeJSON(w, http.StatusNotFound, map[string]any{"result": 0, "error": "order not found"})
			return
		}
		writeJSON(w, http.StatusOK, api.Order{ID: 42, CatalogID: 5, BrandID: 3, Status: f.status})
	})
	r.Put("/api/orders/{orderId}/status", func(w http.ResponseWriter, r *http.Request) {
		var req api.OrderStatusReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.status = req.Status
		writeJSON(w, http.StatusOK, api.Order{ID: 42, BrandID: 3, Status: f.status})
	})
	r.Get("/api/orders/{orderId}/products", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, api.OrderLinesRsp{Lines: f.lines})
	})
	r.Post("/api/orders/{orderId}/products", func(w http.ResponseWriter, r *http.Request) {
		var req api.SaveOrderProductsReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"result": 0, "error": "unable to parse request"})
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.posted = req.Products
		f.lines = nil
		saved := 0
		for _, row := range req.Products {
			if row.Quantity <= 0 {
				continue
			}
			saved++
			var sq []api.SizeQuantity
			for _, s := range groupSizes[fmt.Sprint(row.SizeGroupID)] {
				q := int64(0)
				if s.ID == row.SizeID {
					q = row.Quantity
				}
				sq = append(sq, api.SizeQuantity{SizeID: s.ID, SizeName: s.Name, Quantity: q})
			}
			f.lines = append(f.lines, api.OrderLine{ArticleCode: row.ArticleCode, VariantCode: row.VariantCode,
				SizeGroupID: row.SizeGroupID, SizeGroupName: "Letters", Price: row.Price, SizesQuantities: sq})
		}
		writeJSON(w, http.StatusOK, api.SaveRsp{Saved: saved, Skipped: []ordering.Skipped{}})
	})
	r.Get("/api/size-groups", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.SizeGroupsRsp{SizeGroups: []api.SizeGroup{{ID: 7, Name: "Letters"}, {ID: 8, Name: "Numbers"}}})
	})
	r.Get("/api/size-groups/{id}/sizes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.SizesRsp{Sizes: groupSizes[chi.URLParam(r, "id")]})
	})
	r.Get("/api/products/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("brand") != "3" {
			writeJSON(w, http.StatusOK, api.ProductSearchRsp{Products: []api.ProductCandidate{}})
			return
		}
		writeJSON(w, http.StatusOK, api.ProductSearchRsp{Products: []api.ProductCandidate{
			{ArticleCode: "AB-12", VariantCode: "001", SizeGroupID: 7, SizeGroupName: "Letters", BrandID: 3, Price: 10},
			{ArticleCode: "AB-12", VariantCode: "002", SizeGroupID: 8, SizeGroupName: "Numbers", BrandID: 3, Price: 12},
		}})
	})
	r.Get("/api/catalogs", func(w http.ResponseWriter, r *http.Request) {
		end := "2026-12-31"
		writeJSON(w, http.StatusOK, api.CatalogListRsp{Catalogs: []api.Catalog{
			{ID: 5, BrandName: "Acme", Type: "main", Season: "SS", Year: 2027, State: r.URL.Query().Get("state"), OrderEnd: &end},
		}})
	})
	r.Get("/api/notifications", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.NotificationListRsp{
			Notifications: []api.Notification{{ID: 9, Type: api.NotificationNewCatalog, Message: "New catalog: Acme main SS 2027"}},
			Pagination:    api.Pagination{Total: 1, Pages: 1, Current: 1},
		})
	})
	r.Get("/api/notifications/unread-count", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.CountRsp{Count: 4})
	})
	r.Put("/api/notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		f.read = append(f.read, chi.URLParam(r, "id"))
		writeJSON(w, http.StatusOK, api.StatusRsp{Success: true})
	})
	r.Put("/api/notifications/read-all", func(w http.ResponseWriter, r *http.Request) {
		f.read = append(f.read, "all")
		writeJSON(w, http.StatusOK, api.StatusRsp{Success: true})
	})
	return r
}

func setupServer(t *testing.T) (*fakeServer, string) {
	t.Helper()
	f := &fakeServer{}
	transport = httpclient.HandlerTransport{Handler: f.router()}
	t.Cleanup(func() { transport = nil })
	return f, writeConfig(t, "http://vetrina.test")
}

func TestVersionAndNormalizeNeedNoConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	out, err := run(t, "version", "--config", missing)
	require.NoError(t, err)
	assert.Contains(t, out, cliVersion)

	out, err = run(t, "normalize", "ab/12", "ab 12.3", "./", "--config", missing)
	require.NoError(t, err)
	assert.Regexp(t, `ab/12\s+AB-12\s`, out)
	assert.Contains(t, out, "AB-12-3")
	assert.Contains(t, out, "(invalid)")

	_, err = run(t, "orders", "list", "--config", missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vetrina config create")
}

func TestConfigCreateAndShow(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	_, err := run(t, "config", "create", "--server", "localhost:9000", "--session", "x", "--config", file)
	assert.Error(t, err)

	out, err := run(t, "config", "create", "--server", "localhost:9000", "--session", "5", "--config", file)
	require.NoError(t, err)
	assert.Contains(t, out, file)

	out, err = run(t, "config", "show", "--config", file)
	require.NoError(t, err)
	assert.Contains(t, out, "http://localhost:9000")
	assert.Contains(t, out, "Session: 5")
}

func TestOrderEditingFlow(t *testing.T) {
	f, cfg := setupServer(t)

	out, err := run(t, "order", "add", "42", "--article", "ab/12", "--variant", "001", "--group", "7", "--price", "10", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "S:0 M:0 L:0")
	assert.Contains(t, out, "Unsaved edits")

	out, err = run(t, "order", "qty", "42", "1", "s=2", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "S:2 M:0 L:0")
	assert.Contains(t, out, "Total: 20.00")

	_, err = run(t, "order", "qty", "42", "1", "XL=1", "--config", cfg)
	assert.Error(t, err)
	_, err = run(t, "order", "qty", "42", "3", "S=1", "--config", cfg)
	assert.Error(t, err)

	out, err = run(t, "order", "drafts", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	out, err = run(t, "orders", "list", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "draft (unsaved edits)")

	out, err = run(t, "order", "save", "42", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved 1 rows")
	require.Len(t, f.posted, 3)
	assert.Equal(t, "AB-12", f.posted[0].ArticleCode)
	assert.Equal(t, int64(3), f.posted[0].BrandID)

	out, err = run(t, "order", "drafts", "--config", cfg)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = run(t, "order", "show", "42", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "AB-12 *")
	assert.NotContains(t, out, "Unsaved edits")

	out, err = run(t, "orders", "submit", "42", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Order 42 is submitted")

	_, err = run(t, "order", "add", "42", "--config", cfg)
	assert.ErrorContains(t, err, "no longer a draft")
}

func TestOrderPickAndLocks(t *testing.T) {
	_, cfg := setupServer(t)

	_, err := run(t, "order", "add", "42", "--config", cfg)
	require.NoError(t, err)

	out, err := run(t, "order", "pick", "42", "1", "ab", "--config", cfg)
	assert.ErrorContains(t, err, "--choice 1..2")
	assert.Contains(t, out, "Numbers")

	out, err = run(t, "order", "pick", "42", "1", "ab", "--choice", "2", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "AB-12 *")
	assert.Contains(t, out, "1:0")

	_, err = run(t, "order", "set", "42", "1", "--article", "zz", "--config", cfg)
	assert.ErrorContains(t, err, "remove it")

	out, err = run(t, "order", "set", "42", "1", "--price", "8.5", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "8.50")

	out, err = run(t, "order", "discard", "42", "--config", cfg)
	require.NoError(t, err)
	assert.NotContains(t, out, "AB-12")

	_, err = run(t, "order", "show", "41", "--config", cfg)
	assert.ErrorContains(t, err, "order not found")
}

func TestSizeGroupChangeNeedsYes(t *testing.T) {
	_, cfg := setupServer(t)

	_, err := run(t, "order", "add", "42", "--article", "X1", "--variant", "A", "--group", "7", "--config", cfg)
	require.NoError(t, err)
	_, err = run(t, "order", "qty", "42", "1", "M=3", "--config", cfg)
	require.NoError(t, err)

	_, err = run(t, "order", "set", "42", "1", "--group", "8", "--config", cfg)
	assert.ErrorContains(t, err, "--yes")

	out, err := run(t, "order", "set", "42", "1", "--group", "8", "--yes", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Numbers")
	assert.Contains(t, out, "1:0")

	out, err = run(t, "order", "remove", "42", "1", "--config", cfg)
	require.NoError(t, err)
	assert.NotContains(t, out, "X1")
}

func TestSaveReportsSkippedLines(t *testing.T) {
	f, cfg := setupServer(t)

	_, err := run(t, "order", "add", "42", "--article", "X1", "--config", cfg)
	require.NoError(t, err)
	out, err := run(t, "order", "save", "42", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, out, "Line 1 not saved: missing variant code")
	assert.Nil(t, f.posted)
}

func TestProductsAndCatalogs(t *testing.T) {
	_, cfg := setupServer(t)

	out, err := run(t, "products", "search", "ab", "--brand", "3", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "002")

	out, err = run(t, "products", "search", "ab", "--json", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	out, err = run(t, "catalogs", "--state", "published", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "Published")
	assert.Contains(t, out, "2026-12-31")

	_, err = run(t, "products", "import", filepath.Join(t.TempDir(), "missing.xlsx"), "--config", cfg)
	assert.Error(t, err)

	out, err = run(t, "orders", "create", "--catalog", "5", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Created order 43")
}

func TestNotificationCommands(t *testing.T) {
	f, cfg := setupServer(t)

	out, err := run(t, "notifications", "list", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "New catalog: Acme main SS 2027")
	assert.Contains(t, out, "Page 1 of 1")

	out, err = run(t, "notif", "unread", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)

	_, err = run(t, "notifications", "read", "9", "--config", cfg)
	require.NoError(t, err)
	_, err = run(t, "notifications", "read-all", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"9", "all"}, f.read)

	_, err = run(t, "notifications", "read", "x", "--config", cfg)
	assert.Error(t, err)
}

func TestNotificationsWatch(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(httpclient.SessionCookie)
		if err != nil || c.Value != "2" || r.URL.Path != "/api/notifications/ws" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(api.Notification{ID: 1, UserID: 2, Type: api.NotificationOrderStatus, Message: "Order #42 is now submitted"})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_, _, _ = conn.ReadMessage()
	}))
	defer ts.Close()

	cfg := writeConfig(t, ts.URL)
	out, err := run(t, "notifications", "watch", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Order #42 is now submitted")

	// a different session is refused during the handshake
	other := &Config{Version: "1", ServerURL: ts.URL, Session: "3", DraftFile: filepath.Join(t.TempDir(), "drafts.db")}
	require.NoError(t, other.WriteConfig(cfg))
	_, err = run(t, "notifications", "watch", "--config", cfg)
	assert.ErrorContains(t, err, "401")
}
