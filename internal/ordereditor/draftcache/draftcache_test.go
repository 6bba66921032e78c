package draftcache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/vetrina/vetrina/pkg/ordering"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func sampleLines() []ordering.DraftLine {
	return []ordering.DraftLine{{
		ArticleCode:     "AB-12",
		VariantCode:     "001",
		SizeGroupID:     7,
		SizesQuantities: map[int64]int64{11: 2, 12: 0},
		Price:           10,
	}}
}

func storages(t *testing.T) map[string]Storage {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "drafts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"sqlite": s,
	}
}

func TestSaveLoadClear(t *testing.T) {
	for name, storage := range storages(t) {
		t.Run(name, func(t *testing.T) {
			c := New(storage)

			_, ok, err := c.Load(42)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, c.Save(42, sampleLines()))
			require.NoError(t, c.Save(43, nil))

			lines, ok, err := c.Load(42)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, sampleLines(), lines)

			lines, ok, err = c.Load(43)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Empty(t, lines)

			ids, err := c.ModifiedOrders()
			require.NoError(t, err)
			assert.Equal(t, []int64{42, 43}, ids)

			require.NoError(t, c.Clear(42))
			_, ok, err = c.Load(42)
			require.NoError(t, err)
			assert.False(t, ok)

			ids, err = c.ModifiedOrders()
			require.NoError(t, err)
			assert.Equal(t, []int64{43}, ids)
		})
	}
}

func TestStoredLayout(t *testing.T) {
	storage := NewMemoryStorage()
	clk := &clock{now: time.UnixMilli(1700000000000)}
	c := New(storage, WithClock(clk.Now))

	require.NoError(t, c.Save(42, sampleLines()))
	require.NoError(t, c.Save(42, sampleLines()))

	raw, ok, err := storage.Get("order_42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), gjson.Get(raw, "timestamp").Int())
	assert.Equal(t, "AB-12", gjson.Get(raw, "lines.0.article_code").String())

	index, ok, err := storage.Get(IndexKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[42]`, index)
}

func TestDraftsExpireLazily(t *testing.T) {
	storage := NewMemoryStorage()
	clk := &clock{now: time.Now()}
	c := New(storage, WithClock(clk.Now))

	require.NoError(t, c.Save(1, sampleLines()))
	clk.Advance(12 * time.Hour)
	require.NoError(t, c.Save(2, sampleLines()))

	clk.Advance(12*time.Hour + time.Minute)
	// nothing is removed until the drafts are touched
	_, ok, _ := storage.Get(OrderKey(1))
	assert.True(t, ok)

	_, ok, err := c.Load(1)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = storage.Get(OrderKey(1))
	assert.False(t, ok)

	_, ok, err = c.Load(2)
	require.NoError(t, err)
	assert.True(t, ok)

	clk.Advance(12 * time.Hour)
	ids, err := c.ModifiedOrders()
	require.NoError(t, err)
	assert.Empty(t, ids)
	_, ok, _ = storage.Get(OrderKey(2))
	assert.False(t, ok)
	_, ok, _ = storage.Get(IndexKey)
	assert.False(t, ok)
}

func TestCorruptDraftIsDropped(t *testing.T) {
	storage := NewMemoryStorage()
	c := New(storage)

	require.NoError(t, storage.Set(OrderKey(5), `{"lines":[1,2],"timestamp":`+"9999999999999"+`}`))
	_, ok, err := c.Load(5)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.Set(OrderKey(6), `{"lines":[]}`))
	_, ok, err = c.Load(6)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.Set(IndexKey, `not json`))
	ids, err := c.ModifiedOrders()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSQLiteStoragePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, New(s).Save(9, sampleLines()))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	lines, ok, err := New(s).Load(9)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleLines(), lines)

	require.NoError(t, s.Set("k", "a"))
	require.NoError(t, s.Set("k", "b"))
	v, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	require.NoError(t, s.Remove("k"))
	_, ok, err = s.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}
