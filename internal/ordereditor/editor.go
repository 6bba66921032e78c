// Package ordereditor is the client-side store behind order line editing.
//
// An Editor holds the lines of one order. Every mutation is written to the draft cache so unsaved work
// survives restarts; Save posts the expanded rows to the server, clears the draft and reloads the
// persisted lines.
package ordereditor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/ordereditor/draftcache"
	"github.com/vetrina/vetrina/pkg/api"
	"github.com/vetrina/vetrina/pkg/ordering"
	"github.com/vetrina/vetrina/pkg/sizes"
)

var (
	ErrNotLoaded            = errors.New("no order loaded")
	ErrOrderNotDraft        = errors.New("order is no longer a draft")
	ErrNoSuchLine           = errors.New("no such line")
	ErrLineLocked           = errors.New("line comes from the catalog; remove it to change article, variant or size group")
	ErrConfirmationRequired = errors.New("changing the size group discards the quantities entered")
	ErrUnknownSize          = errors.New("size is not part of the line's size group")
	ErrNegative             = errors.New("value must not be negative")
	ErrNothingToSave        = errors.New("no line is complete enough to save")
)

// DefaultSearchDelay is how long Suggest waits for typing to pause.
const DefaultSearchDelay = 300 * time.Millisecond

// Backend is the part of the API the editor talks to. *httpclient.Client implements it.
type Backend interface {
	Order(ctx context.Context, orderID int64) (*api.Order, error)
	OrderLines(ctx context.Context, orderID int64) (*api.OrderLinesRsp, error)
	Sizes(ctx context.Context, sizeGroupID int64) ([]api.Size, error)
	SearchProducts(ctx context.Context, query string, brandID int64) ([]api.ProductCandidate, error)
	SaveOrderRows(ctx context.Context, orderID int64, rows []ordering.Row) (*api.SaveRsp, error)
	SaveOrderLines(ctx context.Context, orderID, brandID int64, lines []ordering.DraftLine) (*api.SaveRsp, error)
}

type Editor struct {
	backend Backend
	cache   *draftcache.Cache
	search  *Debouncer

	mu       sync.Mutex
	order    *api.Order
	lines    []ordering.DraftLine
	groups   map[int64][]sizes.Size
	restored bool
	dirty    bool
}

type Option func(*Editor)

func WithSearchDelay(d time.Duration) Option {
	return func(e *Editor) {
		e.search = NewDebouncer(d)
	}
}

func New(backend Backend, cache *draftcache.Cache, opts ...Option) *Editor {
	e := &Editor{
		backend: backend,
		cache:   cache,
		search:  NewDebouncer(DefaultSearchDelay),
		groups:  make(map[int64][]sizes.Size),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Load fetches an order. A live draft of the order replaces the persisted lines.
func (e *Editor) Load(ctx context.Context, orderID int64) error {
	order, err := e.backend.Order(ctx, orderID)
	if err != nil {
		return err
	}
	lines, restored, err := e.cache.Load(orderID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64("order_id", orderID).Msg("ignoring unreadable draft")
		restored = false
	}
	if !restored {
		if lines, err = e.persistedLines(ctx, orderID); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.order = order
	e.lines = lines
	e.restored = restored
	e.dirty = restored
	e.groups = make(map[int64][]sizes.Size)
	for _, l := range lines {
		if l.SizeGroupID > 0 {
			if _, err := e.groupSizesLocked(ctx, l.SizeGroupID); err != nil {
				return err
			}
		}
	}
	if restored {
		log.Ctx(ctx).Info().Int64("order_id", orderID).Int("lines", len(lines)).Msg("restored unsaved draft")
	}
	return nil
}

func (e *Editor) persistedLines(ctx context.Context, orderID int64) ([]ordering.DraftLine, error) {
	rsp, err := e.backend.OrderLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	lines := make([]ordering.DraftLine, 0, len(rsp.Lines))
	for _, l := range rsp.Lines {
		lines = append(lines, l.DraftLine())
	}
	return lines, nil
}

// groupSizesLocked returns the sizes of a group, fetching them once.
func (e *Editor) groupSizesLocked(ctx context.Context, groupID int64) ([]sizes.Size, error) {
	if s, ok := e.groups[groupID]; ok {
		return s, nil
	}
	s, err := e.backend.Sizes(ctx, groupID)
	if err != nil {
		return nil, err
	}
	e.groups[groupID] = s
	return s, nil
}

func (e *Editor) Order() (api.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.order == nil {
		return api.Order{}, false
	}
	return *e.order, true
}

// Lines returns a copy of the current lines.
func (e *Editor) Lines() []ordering.DraftLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ordering.DraftLine, len(e.lines))
	for i, l := range e.lines {
		out[i] = copyLine(l)
	}
	return out
}

// GroupSizes returns the ordered sizes of a group already known to the editor.
func (e *Editor) GroupSizes(groupID int64) []sizes.Size {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.groups[groupID]
}

func (e *Editor) Total() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var total float64
	for _, l := range e.lines {
		total += ordering.LineTotal(l)
	}
	return total
}

// Restored reports whether the loaded lines came from a local draft.
func (e *Editor) Restored() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.restored
}

// Dirty reports whether there are edits the server has not seen.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// mutate runs fn on the lines of an editable order and persists the result as a draft.
func (e *Editor) mutate(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.order == nil {
		return ErrNotLoaded
	}
	if e.order.Status != api.OrderStatusDraft {
		return ErrOrderNotDraft
	}
	if err := fn(); err != nil {
		return err
	}
	e.dirty = true
	return e.cache.Save(e.order.ID, e.lines)
}

func (e *Editor) lineLocked(i int) (*ordering.DraftLine, error) {
	if i < 0 || i >= len(e.lines) {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchLine, i)
	}
	return &e.lines[i], nil
}

// AddLine appends an empty line and returns its index.
func (e *Editor) AddLine() (int, error) {
	var index int
	err := e.mutate(func() error {
		e.lines = append(e.lines, ordering.DraftLine{SizesQuantities: map[int64]int64{}})
		index = len(e.lines) - 1
		return nil
	})
	return index, err
}

func (e *Editor) SetArticle(i int, code string) error {
	return e.mutate(func() error {
		l, err := e.lineLocked(i)
		if err != nil {
			return err
		}
		if l.FromDatabase {
			return ErrLineLocked
		}
		l.ArticleCode = code
		return nil
	})
}

func (e *Editor) SetVariant(i int, code string) error {
	return e.mutate(func() error {
		l, err := e.lineLocked(i)
		if err != nil {
			return err
		}
		if l.FromDatabase {
			return ErrLineLocked
		}
		l.VariantCode = code
		return nil
	})
}

// ApplySuggestion fills a line from a search hit and locks its article, variant and size group.
// Quantities already entered are discarded unless the size group stays the same.
func (e *Editor) ApplySuggestion(ctx context.Context, i int, c api.ProductCandidate) error {
	return e.mutate(func() error {
		l, err := e.lineLocked(i)
		if err != nil {
			return err
		}
		if l.FromDatabase {
			return ErrLineLocked
		}
		groupSizes, err := e.groupSizesLocked(ctx, c.SizeGroupID)
		if err != nil {
			return err
		}
		quantities := ordering.ZeroMatrix(groupSizes)
		if l.SizeGroupID == c.SizeGroupID {
			for id := range quantities {
				quantities[id] = l.SizesQuantities[id]
			}
		}
		*l = ordering.DraftLine{
			ArticleCode:     c.ArticleCode,
			VariantCode:     c.VariantCode,
			SizeGroupID:     c.SizeGroupID,
			SizeGroupName:   c.SizeGroupName,
			SizesQuantities: quantities,
			Price:           c.Price,
			FromDatabase:    true,
		}
		return nil
	})
}

// SelectSizeGroup sets a line's size group and zeroes its quantities for every size of the group.
// When quantities would be lost the caller must pass confirm.
func (e *Editor) SelectSizeGroup(ctx context.Context, i int, groupID int64, groupName string, confirm bool) error {
	return e.mutate(func() error {
		l, err := e.lineLocked(i)
		if err != nil {
			return err
		}
		if l.FromDatabase {
			return ErrLineLocked
		}
		if l.HasQuantities() && !confirm {
			return ErrConfirmationRequired
		}
		groupSizes, err := e.groupSizesLocked(ctx, groupID)
		if err != nil {
			return err
		}
		l.SizeGroupID = groupID
		l.SizeGroupName = groupName
		l.SizesQuantities = ordering.ZeroMatrix(groupSizes)
		return nil
	})
}

func (e *Editor) SetQuantity(i int, sizeID, quantity int64) error {
	return e.mutate(func() error {
		l, err := e.lineLocked(i)
		if err != nil {
			return err
		}
		if quantity < 0 {
			return ErrNegative
		}
		if _, ok := l.SizesQuantities[sizeID]; !ok && !inGroup(e.groups[l.SizeGroupID], sizeID) {
			return ErrUnknownSize
		}
		if l.SizesQuantities == nil {
			l.SizesQuantities = make(map[int64]int64)
		}
		l.SizesQuantities[sizeID] = quantity
		return nil
	})
}

func inGroup(groupSizes []sizes.Size, sizeID int64) bool {
	for _, s := range groupSizes {
		if s.ID == sizeID {
			return true
		}
	}
	return false
}

func (e *Editor) SetPrice(i int, price float64) error {
	return e.mutate(func() error {
		l, err := e.lineLocked(i)
		if err != nil {
			return err
		}
		if price < 0 {
			return ErrNegative
		}
		l.Price = price
		return nil
	})
}

func (e *Editor) RemoveLine(i int) error {
	return e.mutate(func() error {
		if _, err := e.lineLocked(i); err != nil {
			return err
		}
		e.lines = append(e.lines[:i], e.lines[i+1:]...)
		return nil
	})
}

// Suggest searches products of the order's brand once typing pauses. Only the latest query is run;
// deliver is called from another goroutine.
func (e *Editor) Suggest(ctx context.Context, query string, deliver func([]api.ProductCandidate, error)) {
	e.mu.Lock()
	var brandID int64
	if e.order != nil {
		brandID = e.order.BrandID
	}
	e.mu.Unlock()
	e.search.Do(func() {
		deliver(e.backend.SearchProducts(ctx, query, brandID))
	})
}

// Close stops a pending search.
func (e *Editor) Close() {
	e.search.Stop()
}

// Save expands the lines and replaces the order's rows on the server. Incomplete lines are reported as
// skipped. On success the draft is cleared and the persisted lines reloaded; on failure the draft is kept.
func (e *Editor) Save(ctx context.Context) (*api.SaveRsp, error) {
	e.mu.Lock()
	if e.order == nil {
		e.mu.Unlock()
		return nil, ErrNotLoaded
	}
	order := *e.order
	lines := make([]ordering.DraftLine, len(e.lines))
	for i, l := range e.lines {
		lines[i] = copyLine(l)
	}
	groups := make(map[int64][]sizes.Size, len(e.groups))
	for id, s := range e.groups {
		groups[id] = s
	}
	e.mu.Unlock()

	if order.Status != api.OrderStatusDraft {
		return nil, ErrOrderNotDraft
	}

	var rsp *api.SaveRsp
	var err error
	if len(lines) == 0 {
		rsp, err = e.backend.SaveOrderLines(ctx, order.ID, order.BrandID, nil)
	} else {
		rows, skipped := ordering.Expand(lines, groups)
		if len(rows) == 0 {
			return &api.SaveRsp{Skipped: skipped}, ErrNothingToSave
		}
		rowLine := rowLines(lines, groups, skipped)
		rsp, err = e.backend.SaveOrderRows(ctx, order.ID, ordering.WithBrand(rows, order.BrandID))
		if err == nil {
			for _, s := range rsp.Skipped {
				if s.Index >= 0 && s.Index < len(rowLine) {
					skipped = appendSkip(skipped, ordering.Skipped{Index: rowLine[s.Index], Reason: s.Reason})
				}
			}
			rsp.Skipped = skipped
		}
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("order_id", order.ID).Msg("order save failed; draft kept")
		return nil, err
	}
	if rsp.Skipped == nil {
		rsp.Skipped = []ordering.Skipped{}
	}
	if err := e.cache.Clear(order.ID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64("order_id", order.ID).Msg("unable to clear draft")
	}
	if err := e.reload(ctx, order.ID); err != nil {
		return rsp, err
	}
	return rsp, nil
}

// rowLines maps every expanded row to the index of the line it came from.
func rowLines(lines []ordering.DraftLine, groups map[int64][]sizes.Size, skipped []ordering.Skipped) []int {
	skip := make(map[int]bool, len(skipped))
	for _, s := range skipped {
		skip[s.Index] = true
	}
	var out []int
	for i, l := range lines {
		if skip[i] {
			continue
		}
		for range groups[l.SizeGroupID] {
			out = append(out, i)
		}
	}
	return out
}

func appendSkip(skipped []ordering.Skipped, s ordering.Skipped) []ordering.Skipped {
	for _, x := range skipped {
		if x.Index == s.Index {
			return skipped
		}
	}
	return append(skipped, s)
}

// Discard drops the local draft and reloads the persisted lines.
func (e *Editor) Discard(ctx context.Context) error {
	e.mu.Lock()
	if e.order == nil {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	orderID := e.order.ID
	e.mu.Unlock()
	if err := e.cache.Clear(orderID); err != nil {
		return err
	}
	return e.reload(ctx, orderID)
}

func (e *Editor) reload(ctx context.Context, orderID int64) error {
	order, err := e.backend.Order(ctx, orderID)
	if err != nil {
		return err
	}
	lines, err := e.persistedLines(ctx, orderID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.order = order
	e.lines = lines
	e.restored = false
	e.dirty = false
	for _, l := range lines {
		if l.SizeGroupID > 0 {
			if _, err := e.groupSizesLocked(ctx, l.SizeGroupID); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyLine(l ordering.DraftLine) ordering.DraftLine {
	q := make(map[int64]int64, len(l.SizesQuantities))
	for k, v := range l.SizesQuantities {
		q[k] = v
	}
	l.SizesQuantities = q
	return l
}
