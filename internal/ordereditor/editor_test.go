package ordereditor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/vetrina/vetrina/internal/common/httpclient"
	"github.com/vetrina/vetrina/internal/ordereditor/draftcache"
	"github.com/vetrina/vetrina/pkg/api"
	"github.com/vetrina/vetrina/pkg/ordering"
)

var _ Backend = (*httpclient.Client)(nil)

const (
	sizeS int64 = 11
	sizeM int64 = 12
	sizeL int64 = 13
	size1 int64 = 21
)

type fakeBackend struct {
	mu       sync.Mutex
	order    api.Order
	lines    []api.OrderLine
	saved    [][]ordering.Row
	cleared  int
	queries  []string
	failSave bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{order: api.Order{ID: 42, BrandID: 3, Status: api.OrderStatusDraft}}
}

func (f *fakeBackend) Order(ctx context.Context, orderID int64) (*api.Order, error) {
	if orderID != f.order.ID {
		return nil, &httpclient.HTTPError{StatusCode: http.StatusNotFound, Message: "order not found"}
	}
	o := f.order
	return &o, nil
}

func (f *fakeBackend) OrderLines(ctx context.Context, orderID int64) (*api.OrderLinesRsp, error) {
	return &api.OrderLinesRsp{Lines: f.lines}, nil
}

func (f *fakeBackend) Sizes(ctx context.Context, sizeGroupID int64) ([]api.Size, error) {
	switch sizeGroupID {
	case 7:
		return []api.Size{{ID: sizeS, Name: "S"}, {ID: sizeM, Name: "M"}, {ID: sizeL, Name: "L"}}, nil
	case 8:
		return []api.Size{{ID: size1, Name: "1"}}, nil
	}
	return []api.Size{}, nil
}

func (f *fakeBackend) SearchProducts(ctx context.Context, query string, brandID int64) ([]api.ProductCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return []api.ProductCandidate{{ArticleCode: "AB-12", VariantCode: "001", SizeGroupID: 7, SizeGroupName: "Letters", BrandID: brandID, Price: 10}}, nil
}

// SaveOrderRows stores ordered rows as one line per article and variant.
func (f *fakeBackend) SaveOrderRows(ctx context.Context, orderID int64, rows []ordering.Row) (*api.SaveRsp, error) {
	if f.failSave {
		return nil, &httpclient.HTTPError{StatusCode: http.StatusInternalServerError, Message: "save failed; order unchanged"}
	}
	f.saved = append(f.saved, rows)
	f.lines = nil
	saved := 0
	for _, r := range ordering.Ordered(rows) {
		saved++
		f.lines = append(f.lines, api.OrderLine{
			ArticleCode: r.ArticleCode, VariantCode: r.VariantCode, SizeGroupID: r.SizeGroupID, Price: r.Price,
			SizesQuantities: []api.SizeQuantity{{SizeID: r.SizeID, Quantity: r.Quantity}},
		})
	}
	return &api.SaveRsp{Saved: saved, Skipped: []ordering.Skipped{}}, nil
}

func (f *fakeBackend) SaveOrderLines(ctx context.Context, orderID, brandID int64, lines []ordering.DraftLine) (*api.SaveRsp, error) {
	f.cleared++
	f.lines = nil
	return &api.SaveRsp{Skipped: []ordering.Skipped{}}, nil
}

func newEditor(t *testing.T, backend Backend) (*Editor, *draftcache.Cache) {
	t.Helper()
	cache := draftcache.New(draftcache.NewMemoryStorage())
	e := New(backend, cache, WithSearchDelay(10*time.Millisecond))
	t.Cleanup(e.Close)
	return e, cache
}

func TestEditAndSaveScenario(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	e, cache := newEditor(t, b)
	require.NoError(t, e.Load(ctx, 42))
	assert.Empty(t, e.Lines())
	assert.False(t, e.Dirty())

	i, err := e.AddLine()
	require.NoError(t, err)
	require.NoError(t, e.SetArticle(i, "ab/12"))
	require.NoError(t, e.SetVariant(i, "001"))
	require.NoError(t, e.SelectSizeGroup(ctx, i, 7, "Letters", false))
	require.NoError(t, e.SetPrice(i, 10))
	require.NoError(t, e.SetQuantity(i, sizeS, 2))
	assert.Equal(t, 20.0, e.Total())
	assert.True(t, e.Dirty())

	draft, ok, err := cache.Load(42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[int64]int64{sizeS: 2, sizeM: 0, sizeL: 0}, draft[0].SizesQuantities)

	rsp, err := e.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rsp.Saved)
	assert.Empty(t, rsp.Skipped)

	require.Len(t, b.saved, 1)
	require.Len(t, b.saved[0], 3)
	assert.Equal(t, "AB-12", b.saved[0][0].ArticleCode)
	assert.Equal(t, int64(3), b.saved[0][0].BrandID)

	_, ok, err = cache.Load(42)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, e.Dirty())

	lines := e.Lines()
	require.Len(t, lines, 1)
	assert.True(t, lines[0].FromDatabase)
	assert.Equal(t, int64(2), lines[0].SizesQuantities[sizeS])
}

func TestLoadRestoresDraft(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	e, cache := newEditor(t, b)
	require.NoError(t, cache.Save(42, []ordering.DraftLine{{ArticleCode: "X", SizeGroupID: 8, SizesQuantities: map[int64]int64{size1: 5}}}))

	require.NoError(t, e.Load(ctx, 42))
	assert.True(t, e.Restored())
	assert.True(t, e.Dirty())
	require.Len(t, e.Lines(), 1)
	assert.Equal(t, "X", e.Lines()[0].ArticleCode)
	assert.Len(t, e.GroupSizes(8), 1)

	b.lines = []api.OrderLine{{ArticleCode: "P", VariantCode: "1", SizeGroupID: 8, SizesQuantities: []api.SizeQuantity{{SizeID: size1, Quantity: 1}}}}
	require.NoError(t, e.Discard(ctx))
	assert.False(t, e.Restored())
	assert.Equal(t, "P", e.Lines()[0].ArticleCode)
	_, ok, _ := cache.Load(42)
	assert.False(t, ok)
}

func TestSizeGroupChangeNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	e, _ := newEditor(t, newFakeBackend())
	require.NoError(t, e.Load(ctx, 42))
	i, _ := e.AddLine()
	require.NoError(t, e.SelectSizeGroup(ctx, i, 7, "Letters", false))
	require.NoError(t, e.SetQuantity(i, sizeM, 3))

	err := e.SelectSizeGroup(ctx, i, 8, "Numbers", false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Equal(t, int64(7), e.Lines()[i].SizeGroupID)

	require.NoError(t, e.SelectSizeGroup(ctx, i, 8, "Numbers", true))
	assert.Equal(t, map[int64]int64{size1: 0}, e.Lines()[i].SizesQuantities)

	assert.ErrorIs(t, e.SetQuantity(i, sizeM, 1), ErrUnknownSize)
	assert.ErrorIs(t, e.SetQuantity(i, size1, -1), ErrNegative)
	assert.ErrorIs(t, e.SetPrice(i, -2), ErrNegative)
	assert.ErrorIs(t, e.SetPrice(5, 1), ErrNoSuchLine)
}

func TestSuggestionLocksLine(t *testing.T) {
	ctx := context.Background()
	e, _ := newEditor(t, newFakeBackend())
	require.NoError(t, e.Load(ctx, 42))
	i, _ := e.AddLine()
	require.NoError(t, e.SetArticle(i, "ab"))

	require.NoError(t, e.ApplySuggestion(ctx, i, api.ProductCandidate{ArticleCode: "AB-12", VariantCode: "001", SizeGroupID: 7, SizeGroupName: "Letters", Price: 10}))
	l := e.Lines()[i]
	assert.True(t, l.FromDatabase)
	assert.Equal(t, "001", l.VariantCode)
	assert.Equal(t, 10.0, l.Price)
	assert.Equal(t, map[int64]int64{sizeS: 0, sizeM: 0, sizeL: 0}, l.SizesQuantities)

	assert.ErrorIs(t, e.SetArticle(i, "zz"), ErrLineLocked)
	assert.ErrorIs(t, e.SetVariant(i, "zz"), ErrLineLocked)
	assert.ErrorIs(t, e.SelectSizeGroup(ctx, i, 8, "Numbers", true), ErrLineLocked)
	require.NoError(t, e.SetQuantity(i, sizeL, 1))
	require.NoError(t, e.SetPrice(i, 9))

	require.NoError(t, e.RemoveLine(i))
	assert.Empty(t, e.Lines())
}

func TestSuggestionQuantitiesFollowSizeGroup(t *testing.T) {
	ctx := context.Background()
	e, _ := newEditor(t, newFakeBackend())
	require.NoError(t, e.Load(ctx, 42))

	same, _ := e.AddLine()
	require.NoError(t, e.SelectSizeGroup(ctx, same, 7, "Letters", false))
	require.NoError(t, e.SetQuantity(same, sizeS, 2))
	require.NoError(t, e.SetQuantity(same, sizeL, 4))
	require.NoError(t, e.ApplySuggestion(ctx, same, api.ProductCandidate{ArticleCode: "AB-12", VariantCode: "001", SizeGroupID: 7, SizeGroupName: "Letters", Price: 10}))
	assert.Equal(t, map[int64]int64{sizeS: 2, sizeM: 0, sizeL: 4}, e.Lines()[same].SizesQuantities)
	assert.Equal(t, 60.0, e.Total())

	other, _ := e.AddLine()
	require.NoError(t, e.SelectSizeGroup(ctx, other, 7, "Letters", false))
	require.NoError(t, e.SetQuantity(other, sizeM, 3))
	require.NoError(t, e.ApplySuggestion(ctx, other, api.ProductCandidate{ArticleCode: "CD-34", VariantCode: "002", SizeGroupID: 8, SizeGroupName: "Numbers", Price: 5}))
	l := e.Lines()[other]
	assert.Equal(t, int64(8), l.SizeGroupID)
	assert.Equal(t, map[int64]int64{size1: 0}, l.SizesQuantities)
	assert.Equal(t, 60.0, e.Total())
}

func TestSubmittedOrderIsReadOnly(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.order.Status = api.OrderStatusSubmitted
	e, _ := newEditor(t, b)

	_, err := e.AddLine()
	assert.ErrorIs(t, err, ErrNotLoaded)

	require.NoError(t, e.Load(ctx, 42))
	_, err = e.AddLine()
	assert.ErrorIs(t, err, ErrOrderNotDraft)
	_, err = e.Save(ctx)
	assert.ErrorIs(t, err, ErrOrderNotDraft)
}

func TestSaveKeepsDraftOnFailure(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.failSave = true
	e, cache := newEditor(t, b)
	require.NoError(t, e.Load(ctx, 42))
	i, _ := e.AddLine()
	require.NoError(t, e.ApplySuggestion(ctx, i, api.ProductCandidate{ArticleCode: "AB-12", VariantCode: "001", SizeGroupID: 7, Price: 10}))

	_, err := e.Save(ctx)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, httpclient.StatusCode(err))
	assert.True(t, e.Dirty())
	_, ok, _ := cache.Load(42)
	assert.True(t, ok)
}

func TestSaveReportsIncompleteLines(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	e, _ := newEditor(t, b)
	require.NoError(t, e.Load(ctx, 42))

	i, _ := e.AddLine()
	require.NoError(t, e.SetArticle(i, "only-article"))
	_, err := e.Save(ctx)
	assert.ErrorIs(t, err, ErrNothingToSave)

	j, _ := e.AddLine()
	require.NoError(t, e.ApplySuggestion(ctx, j, api.ProductCandidate{ArticleCode: "AB-12", VariantCode: "001", SizeGroupID: 7, Price: 10}))
	require.NoError(t, e.SetQuantity(j, sizeS, 1))
	rsp, err := e.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ordering.Skipped{{Index: 0, Reason: ordering.ReasonMissingVariant}}, rsp.Skipped)
}

func TestSavingNoLinesClearsOrder(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.lines = []api.OrderLine{{ArticleCode: "P", VariantCode: "1", SizeGroupID: 8, SizesQuantities: []api.SizeQuantity{{SizeID: size1, Quantity: 1}}}}
	e, _ := newEditor(t, b)
	require.NoError(t, e.Load(ctx, 42))
	require.NoError(t, e.RemoveLine(0))

	_, err := e.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, b.cleared)
	assert.Empty(t, e.Lines())
}

func TestSuggestRunsLatestQuery(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	e, _ := newEditor(t, b)
	require.NoError(t, e.Load(ctx, 42))

	got := make(chan []api.ProductCandidate, 3)
	deliver := func(c []api.ProductCandidate, err error) {
		assert.NoError(t, err)
		got <- c
	}
	e.Suggest(ctx, "a", deliver)
	e.Suggest(ctx, "ab", deliver)
	e.Suggest(ctx, "ab1", deliver)

	select {
	case c := <-got:
		require.Len(t, c, 1)
		assert.Equal(t, int64(3), c[0].BrandID)
	case <-time.After(time.Second):
		t.Fatal("no suggestions delivered")
	}
	time.Sleep(50 * time.Millisecond)
	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, []string{"ab1"}, b.queries)
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var mu sync.Mutex
	calls := 0
	d.Do(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	d.Stop()
	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}

func TestEditorOverHTTP(t *testing.T) {
	ctx := context.Background()
	var posted []byte
	r := chi.NewRouter()
	r.Get("/api/orders/{orderId}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":42,"brand_id":3,"status":"draft"}`))
	})
	r.Get("/api/orders/{orderId}/products", func(w http.ResponseWriter, r *http.Request) {
		if posted == nil {
			_, _ = w.Write([]byte(`{"lines":[],"total":0}`))
			return
		}
		_, _ = w.Write([]byte(`{"lines":[{"article_code":"AB-12","variant_code":"001","size_group_id":8,"size_group_name":"Numbers","price":4,"sizes_quantities":[{"size_id":21,"size_name":"1","quantity":5}]}],"total":20}`))
	})
	r.Get("/api/size-groups/{id}/sizes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sizes":[{"id":21,"name":"1"}]}`))
	})
	r.Post("/api/orders/{orderId}/products", func(w http.ResponseWriter, r *http.Request) {
		posted, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"saved":1,"skipped":[]}`))
	})
	client := httpclient.New(staticConfig{}, httpclient.WithTransport(httpclient.HandlerTransport{Handler: r}))
	e, _ := newEditor(t, client)

	require.NoError(t, e.Load(ctx, 42))
	i, err := e.AddLine()
	require.NoError(t, err)
	require.NoError(t, e.SetArticle(i, "ab 12"))
	require.NoError(t, e.SetVariant(i, "001"))
	require.NoError(t, e.SelectSizeGroup(ctx, i, 8, "Numbers", false))
	require.NoError(t, e.SetPrice(i, 4))
	require.NoError(t, e.SetQuantity(i, size1, 5))

	rsp, err := e.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rsp.Saved)

	rows := gjson.GetBytes(posted, "products")
	require.Len(t, rows.Array(), 1)
	assert.Equal(t, "AB-12", rows.Get("0.article_code").String())
	assert.Equal(t, int64(3), rows.Get("0.brand_id").Int())
	assert.Equal(t, int64(5), rows.Get("0.quantity").Int())
	assert.Equal(t, 20.0, e.Total())
}

type staticConfig struct{}

func (staticConfig) GetServerURL() string { return "http://vetrina.test" }
func (staticConfig) GetSession() string   { return "2" }

var errBoom = errors.New("boom")

type failingBackend struct {
	*fakeBackend
}

func (failingBackend) Sizes(ctx context.Context, sizeGroupID int64) ([]api.Size, error) {
	return nil, errBoom
}

func TestSizeLookupFailureLeavesLineUnchanged(t *testing.T) {
	ctx := context.Background()
	e, _ := newEditor(t, failingBackend{newFakeBackend()})
	require.NoError(t, e.Load(ctx, 42))
	i, _ := e.AddLine()
	assert.ErrorIs(t, e.SelectSizeGroup(ctx, i, 7, "Letters", false), errBoom)
	assert.Zero(t, e.Lines()[i].SizeGroupID)
}
