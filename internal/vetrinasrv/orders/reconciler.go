// Package orders persists order lines and serves orders.
//
// Saving an order replaces all of its rows in one transaction: every row is matched to a product
// (creating missing products), rows with no quantity are dropped, the old rows are deleted and the
// new ones inserted in bulk. Either the whole save commits or the previous rows stay untouched.
package orders

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/dberror"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
	"github.com/vetrina/vetrina/internal/vetrinasrv/products"
	"github.com/vetrina/vetrina/pkg/api"
	"github.com/vetrina/vetrina/pkg/ordering"
	"github.com/vetrina/vetrina/pkg/sizes"
)

var (
	ErrOrderNotFound = db.ErrOrderNotFound
	ErrOrderNotDraft = dberror.ErrAlreadyExists.Msg("order is no longer a draft")
	ErrNothingToSave = dberror.ErrInvalidInput.Msg("no valid order lines")
	ErrSaveFailed    = dberror.ErrTransaction.Msg("save failed; order unchanged")
)

// Store is the order persistence the reconciler needs.
type Store interface {
	GetOrder(ctx context.Context, orderID int64) (*models.Order, apperrors.Error)
	ListOrderProducts(ctx context.Context, orderID int64) ([]models.OrderProductDetail, apperrors.Error)
	BeginTx(ctx context.Context) (db.Tx, apperrors.Error)
}

// SizeResolver returns the sorted sizes of size groups.
type SizeResolver interface {
	ResolveGroups(ctx context.Context, sizeGroupIDs []int64) (map[int64][]sizes.Size, error)
}

type Reconciler struct {
	store Store
	sizes SizeResolver
}

func NewReconciler(store Store, sizes SizeResolver) *Reconciler {
	return &Reconciler{store: store, sizes: sizes}
}

// SaveRows replaces the rows of a draft order with rows. Invalid rows are skipped and reported.
// Rows of the same product are merged, summing quantities and keeping the first price.
// An empty rows slice clears the order.
func (r *Reconciler) SaveRows(ctx context.Context, orderID int64, rows []ordering.Row) (api.SaveRsp, error) {
	rsp := api.SaveRsp{Skipped: []ordering.Skipped{}}
	valid := make([]ordering.Row, 0, len(rows))
	for i, row := range rows {
		if err := ordering.ValidateRow(row); err != nil {
			log.Ctx(ctx).Warn().Int64("order_id", orderID).Int("row", i).Err(err).Msg("skipping order row")
			rsp.Skipped = append(rsp.Skipped, ordering.Skipped{Index: i, Reason: err.Error()})
			continue
		}
		valid = append(valid, row)
	}
	if len(rows) > 0 && len(valid) == 0 {
		return rsp, ErrNothingToSave
	}

	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return rsp, ErrSaveFailed.Err(err)
	}
	defer func() {
		if tx == nil {
			return
		}
		if err := tx.Rollback(); err != nil {
			log.Ctx(ctx).Error().Err(err).Int64("order_id", orderID).Msg("rollback failed")
			return
		}
		log.Ctx(ctx).Info().Int64("order_id", orderID).Msg("order save rolled back")
	}()

	order, err := tx.LockOrder(ctx, orderID)
	if err != nil {
		return rsp, saveError(err)
	}
	if order.Status != api.OrderStatusDraft {
		return rsp, ErrOrderNotDraft
	}

	var items []models.OrderProduct
	seen := make(map[int64]int)
	created := 0
	for _, row := range valid {
		productID, isNew, err := products.MatchOrCreate(ctx, tx, row.ArticleCode, row.VariantCode, row.SizeID, row.BrandID, row.Price)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("article_code", row.ArticleCode).Str("variant_code", row.VariantCode).
				Int64("size_id", row.SizeID).Msg("unable to match product")
			return rsp, saveError(err)
		}
		if isNew {
			created++
		}
		if row.Quantity <= 0 {
			continue
		}
		if i, ok := seen[productID]; ok {
			items[i].Quantity += row.Quantity
			continue
		}
		seen[productID] = len(items)
		items = append(items, models.OrderProduct{
			OrderID:   orderID,
			ProductID: productID,
			Quantity:  row.Quantity,
			Price:     row.Price,
		})
	}

	deleted, err := tx.DeleteOrderProducts(ctx, orderID)
	if err != nil {
		return rsp, saveError(err)
	}
	if err := tx.InsertOrderProducts(ctx, orderID, items); err != nil {
		return rsp, saveError(err)
	}
	if err := tx.TouchOrder(ctx, orderID); err != nil {
		return rsp, saveError(err)
	}
	if err := tx.Commit(); err != nil {
		return rsp, ErrSaveFailed.Err(err)
	}
	tx = nil

	log.Ctx(ctx).Info().Int64("order_id", orderID).Int64("deleted", deleted).Int("inserted", len(items)).
		Int("products_created", created).Int("skipped", len(rsp.Skipped)).Msg("order saved")
	rsp.Saved = len(items)
	return rsp, nil
}

// saveError keeps client errors as they are and reports anything else as a failed save.
func saveError(err error) error {
	if code := apperrors.StatusCodeOf(err); code >= http.StatusBadRequest && code < http.StatusInternalServerError {
		return err
	}
	return ErrSaveFailed.Err(err)
}

// SaveLines expands draft lines into rows of brandID and saves them. A zero brandID uses the brand of
// the order's catalog. Incomplete lines are skipped; when every line is skipped nothing is saved.
func (r *Reconciler) SaveLines(ctx context.Context, orderID, brandID int64, lines []ordering.DraftLine) (api.SaveRsp, error) {
	if brandID <= 0 {
		order, err := r.store.GetOrder(ctx, orderID)
		if err != nil {
			return api.SaveRsp{}, err
		}
		brandID = order.BrandID
	}

	groups, err := r.sizes.ResolveGroups(ctx, groupIDs(lines))
	if err != nil {
		return api.SaveRsp{}, err
	}
	rows, skipped := ordering.Expand(lines, groups)
	for _, s := range skipped {
		log.Ctx(ctx).Warn().Int64("order_id", orderID).Int("line", s.Index).Str("reason", s.Reason).Msg("skipping order line")
	}
	if len(lines) > 0 && len(rows) == 0 {
		return api.SaveRsp{Skipped: skipped}, ErrNothingToSave
	}

	rsp, err := r.SaveRows(ctx, orderID, ordering.WithBrand(rows, brandID))
	rsp.Skipped = append(skipped, rsp.Skipped...)
	if rsp.Skipped == nil {
		rsp.Skipped = []ordering.Skipped{}
	}
	return rsp, err
}

// LoadLines rebuilds the editable lines of an order. Rows are grouped by article, variant, size group
// and price in the order they were stored, and each line lists every size of its group with zero where nothing
// was ordered.
func (r *Reconciler) LoadLines(ctx context.Context, orderID int64) (api.OrderLinesRsp, error) {
	details, err := r.store.ListOrderProducts(ctx, orderID)
	if err != nil {
		return api.OrderLinesRsp{}, err
	}

	type lineKey struct {
		article, variant string
		group            int64
		price            float64
	}
	type lineState struct {
		line   api.OrderLine
		qty    map[int64]int64
		stored []sizes.Size
	}

	var states []*lineState
	index := make(map[lineKey]*lineState)
	var ids []int64
	seenGroup := make(map[int64]bool)
	total := 0.0
	for _, d := range details {
		k := lineKey{d.ArticleCode, d.VariantCode, d.SizeGroupID, d.Price}
		st, ok := index[k]
		if !ok {
			st = &lineState{
				line: api.OrderLine{
					ArticleCode:   d.ArticleCode,
					VariantCode:   d.VariantCode,
					SizeGroupID:   d.SizeGroupID,
					SizeGroupName: d.SizeGroupName,
					Price:         d.Price,
				},
				qty: make(map[int64]int64),
			}
			index[k] = st
			states = append(states, st)
			if !seenGroup[d.SizeGroupID] {
				seenGroup[d.SizeGroupID] = true
				ids = append(ids, d.SizeGroupID)
			}
		}
		if _, dup := st.qty[d.SizeID]; !dup {
			st.stored = append(st.stored, sizes.Size{ID: d.SizeID, Name: d.SizeName})
		}
		st.qty[d.SizeID] += d.Quantity
		total += float64(d.Quantity) * d.Price
	}

	groups := map[int64][]sizes.Size{}
	if len(ids) > 0 {
		resolved, err := r.sizes.ResolveGroups(ctx, ids)
		if err != nil {
			return api.OrderLinesRsp{}, err
		}
		groups = resolved
	}

	rsp := api.OrderLinesRsp{Lines: make([]api.OrderLine, 0, len(states)), Total: total}
	for _, st := range states {
		listed := make(map[int64]bool)
		for _, s := range groups[st.line.SizeGroupID] {
			listed[s.ID] = true
			st.line.SizesQuantities = append(st.line.SizesQuantities, api.SizeQuantity{SizeID: s.ID, SizeName: s.Name, Quantity: st.qty[s.ID]})
		}
		// sizes removed from the group since the order was saved
		for _, s := range st.stored {
			if !listed[s.ID] {
				st.line.SizesQuantities = append(st.line.SizesQuantities, api.SizeQuantity{SizeID: s.ID, SizeName: s.Name, Quantity: st.qty[s.ID]})
			}
		}
		rsp.Lines = append(rsp.Lines, st.line)
	}
	return rsp, nil
}

func groupIDs(lines []ordering.DraftLine) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, l := range lines {
		if l.SizeGroupID > 0 && !seen[l.SizeGroupID] {
			seen[l.SizeGroupID] = true
			ids = append(ids, l.SizeGroupID)
		}
	}
	return ids
}
