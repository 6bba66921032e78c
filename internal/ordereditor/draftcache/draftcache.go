// Package draftcache keeps unsaved order edits on the client between sessions.
//
// Each order's draft is stored under order_<id> as {"lines": [...], "timestamp": <unix millis>} and the
// ids of orders with drafts are listed under modified_orders_index. Drafts older than the expiry are
// dropped when they are next read; nothing sweeps them in the background.
package draftcache

import (
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/vetrina/vetrina/pkg/ordering"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	IndexKey      = "modified_orders_index"
	DefaultExpiry = 24 * time.Hour
)

// Storage is a string key/value store.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

type Cache struct {
	storage Storage
	expiry  time.Duration
	now     func() time.Time
}

type Option func(*Cache)

func WithExpiry(d time.Duration) Option {
	return func(c *Cache) {
		c.expiry = d
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(storage Storage, opts ...Option) *Cache {
	c := &Cache{
		storage: storage,
		expiry:  DefaultExpiry,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func OrderKey(orderID int64) string {
	return "order_" + strconv.FormatInt(orderID, 10)
}

// Load returns the draft of an order. An expired or unreadable draft is removed and reported as absent.
func (c *Cache) Load(orderID int64) ([]ordering.DraftLine, bool, error) {
	raw, ok, err := c.storage.Get(OrderKey(orderID))
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading draft of order %d", orderID)
	}
	if !ok {
		return nil, false, nil
	}
	if c.expired(raw) {
		return nil, false, c.Clear(orderID)
	}
	var lines []ordering.DraftLine
	if err := json.Unmarshal([]byte(gjson.Get(raw, "lines").Raw), &lines); err != nil {
		return nil, false, c.Clear(orderID)
	}
	return lines, true, nil
}

func (c *Cache) expired(raw string) bool {
	ts := gjson.Get(raw, "timestamp")
	if ts.Type != gjson.Number {
		return true
	}
	return c.now().Sub(time.UnixMilli(ts.Int())) > c.expiry
}

// Save stores lines as the draft of an order and stamps it with the current time.
func (c *Cache) Save(orderID int64, lines []ordering.DraftLine) error {
	if lines == nil {
		lines = []ordering.DraftLine{}
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return errors.Wrap(err, "encoding draft")
	}
	doc, err := sjson.SetRaw("", "lines", string(b))
	if err != nil {
		return errors.Wrap(err, "encoding draft")
	}
	if doc, err = sjson.Set(doc, "timestamp", c.now().UnixMilli()); err != nil {
		return errors.Wrap(err, "encoding draft")
	}
	if err := c.storage.Set(OrderKey(orderID), doc); err != nil {
		return errors.Wrapf(err, "writing draft of order %d", orderID)
	}
	return c.updateIndex(func(ids []int64) []int64 {
		for _, id := range ids {
			if id == orderID {
				return ids
			}
		}
		return append(ids, orderID)
	})
}

// Clear removes the draft of an order.
func (c *Cache) Clear(orderID int64) error {
	if err := c.storage.Remove(OrderKey(orderID)); err != nil {
		return errors.Wrapf(err, "removing draft of order %d", orderID)
	}
	return c.updateIndex(func(ids []int64) []int64 {
		out := ids[:0]
		for _, id := range ids {
			if id != orderID {
				out = append(out, id)
			}
		}
		return out
	})
}

// ModifiedOrders returns the ids of orders with a live draft, purging expired ones.
func (c *Cache) ModifiedOrders() ([]int64, error) {
	ids, err := c.index()
	if err != nil {
		return nil, err
	}
	live := []int64{}
	for _, id := range ids {
		raw, ok, err := c.storage.Get(OrderKey(id))
		if err != nil {
			return nil, errors.Wrapf(err, "reading draft of order %d", id)
		}
		if !ok || c.expired(raw) {
			if err := c.Clear(id); err != nil {
				return nil, err
			}
			continue
		}
		live = append(live, id)
	}
	return live, nil
}

func (c *Cache) index() ([]int64, error) {
	raw, ok, err := c.storage.Get(IndexKey)
	if err != nil {
		return nil, errors.Wrap(err, "reading draft index")
	}
	var ids []int64
	if !ok || json.Unmarshal([]byte(raw), &ids) != nil {
		return []int64{}, nil
	}
	return ids, nil
}

func (c *Cache) updateIndex(update func([]int64) []int64) error {
	ids, err := c.index()
	if err != nil {
		return err
	}
	ids = update(ids)
	if len(ids) == 0 {
		return c.storage.Remove(IndexKey)
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return errors.Wrap(err, "encoding draft index")
	}
	return c.storage.Set(IndexKey, string(b))
}
