package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/dberror"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
)

// Tx groups the statements that must commit together: product matching during a save or an import,
// and the replacement of an order's rows.
type Tx struct {
	tx *sqlx.Tx
}

func (om *orderManager) BeginTx(ctx context.Context) (*Tx, apperrors.Error) {
	tx, err := om.conn().BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to start transaction")
		return nil, dberror.ErrTransaction.Err(err)
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// LockOrder loads an order and locks its row until the transaction ends.
func (t *Tx) LockOrder(ctx context.Context, orderID int64) (*models.Order, apperrors.Error) {
	var o models.Order
	err := t.tx.GetContext(ctx, &o,
		"SELECT id, user_id, catalog_id, status, created_at, updated_at FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		log.Ctx(ctx).Error().Err(err).Int64("order_id", orderID).Msg("failed to lock order")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return &o, nil
}

// MatchOrCreateProduct returns the id of the product matching the normalized (article, variant, size, brand)
// tuple of p, inserting an active product with p's price and no retail price when none exists.
// The boolean reports whether the product was created. Concurrent callers never create duplicates.
func (t *Tx) MatchOrCreateProduct(ctx context.Context, p *models.Product) (int64, bool, apperrors.Error) {
	const lookup = `
		SELECT id FROM products
		WHERE article_key = vetrina_code_key($1) AND variant_key = vetrina_code_key($2)
		  AND size_id = $3 AND brand_id = $4`
	const insert = `
		INSERT INTO products (article_code, variant_code, size_id, size_group_id, brand_id, price, retail_price, status)
		SELECT $1, $2, s.id, s.size_group_id, $4, $5, NULL, 'active' FROM sizes s WHERE s.id = $3
		ON CONFLICT (article_key, variant_key, size_id, brand_id) DO NOTHING
		RETURNING id`

	var id int64
	err := t.tx.GetContext(ctx, &id, lookup, p.ArticleCode, p.VariantCode, p.SizeID, p.BrandID)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Ctx(ctx).Error().Err(err).Msg("failed to look up product")
		return 0, false, dberror.ErrDatabase.Err(err)
	}

	err = t.tx.GetContext(ctx, &id, insert, p.ArticleCode, p.VariantCode, p.SizeID, p.BrandID, p.Price)
	if err == nil {
		log.Ctx(ctx).Info().Int64("product_id", id).Str("article_code", p.ArticleCode).
			Str("variant_code", p.VariantCode).Int64("size_id", p.SizeID).Msg("created product")
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Ctx(ctx).Error().Err(err).Msg("failed to insert product")
		return 0, false, dberror.FromPg(err)
	}

	// nothing inserted: either another writer won the race or the size does not exist
	err = t.tx.GetContext(ctx, &id, lookup, p.ArticleCode, p.VariantCode, p.SizeID, p.BrandID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, ErrSizeNotFound
		}
		return 0, false, dberror.ErrDatabase.Err(err)
	}
	return id, false, nil
}

// SetProductPrices updates the prices of an existing product.
func (t *Tx) SetProductPrices(ctx context.Context, productID int64, price float64, retail sql.NullFloat64) apperrors.Error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE products SET price = $2, retail_price = $3, updated_at = now() WHERE id = $1", productID, price, retail)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("product_id", productID).Msg("failed to update prices")
		return dberror.FromPg(err)
	}
	return nil
}

// DeleteOrderProducts removes every row of an order and returns how many were removed.
func (t *Tx) DeleteOrderProducts(ctx context.Context, orderID int64) (int64, apperrors.Error) {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM order_products WHERE order_id = $1", orderID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("order_id", orderID).Msg("failed to delete order products")
		return 0, dberror.ErrDatabase.Err(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// InsertOrderProducts inserts rows for orderID in a single statement.
func (t *Tx) InsertOrderProducts(ctx context.Context, orderID int64, rows []models.OrderProduct) apperrors.Error {
	if len(rows) == 0 {
		return nil
	}
	productIDs := make([]int64, len(rows))
	quantities := make([]int64, len(rows))
	prices := make([]float64, len(rows))
	for i, r := range rows {
		productIDs[i] = r.ProductID
		quantities[i] = r.Quantity
		prices[i] = r.Price
	}
	query := `
		INSERT INTO order_products (order_id, product_id, quantity, price)
		SELECT $1, t.product_id, t.quantity, t.price
		FROM unnest($2::bigint[], $3::int[], $4::numeric[]) AS t(product_id, quantity, price)`
	_, err := t.tx.ExecContext(ctx, query, orderID, pq.Array(productIDs), pq.Array(quantities), pq.Array(prices))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("order_id", orderID).Int("rows", len(rows)).Msg("failed to insert order products")
		return dberror.FromPg(err)
	}
	return nil
}

// TouchOrder bumps the order's update time.
func (t *Tx) TouchOrder(ctx context.Context, orderID int64) apperrors.Error {
	if _, err := t.tx.ExecContext(ctx, "UPDATE orders SET updated_at = now() WHERE id = $1", orderID); err != nil {
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}
