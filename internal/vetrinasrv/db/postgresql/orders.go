package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/dberror"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
)

var ErrOrderNotFound = dberror.ErrNotFound.Msg("order not found")

const orderSelect = `
	SELECT o.id, o.user_id, o.catalog_id, c.brand_id, o.status, o.created_at, o.updated_at,
	       COALESCE((SELECT sum(op.quantity * op.price) FROM order_products op WHERE op.order_id = o.id), 0) AS total
	FROM orders o
	JOIN catalogs c ON c.id = o.catalog_id`

func (om *orderManager) GetOrder(ctx context.Context, orderID int64) (*models.Order, apperrors.Error) {
	var o models.Order
	if err := om.conn().GetContext(ctx, &o, orderSelect+" WHERE o.id = $1", orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		log.Ctx(ctx).Error().Err(err).Int64("order_id", orderID).Msg("failed to get order")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return &o, nil
}

// ListOrders returns the orders of userID, or every order when userID is zero.
func (om *orderManager) ListOrders(ctx context.Context, userID int64) ([]models.Order, apperrors.Error) {
	orders := []models.Order{}
	err := om.conn().SelectContext(ctx, &orders, orderSelect+" WHERE $1 = 0 OR o.user_id = $1 ORDER BY o.created_at DESC", userID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list orders")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return orders, nil
}

// CreateOrder creates a draft order for the scoped user.
func (om *orderManager) CreateOrder(ctx context.Context, o *models.Order) apperrors.Error {
	userID, err := om.scopedUser(ctx)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO orders (user_id, catalog_id, status)
		VALUES ($1, $2, 'draft')
		RETURNING id, user_id, status, created_at, updated_at`
	errDb := om.conn().QueryRowxContext(ctx, query, userID, o.CatalogID).
		Scan(&o.ID, &o.UserID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errDb != nil {
		if dberror.IsForeignKeyViolation(errDb) {
			return dberror.ErrInvalidReference.Msg("catalog not found")
		}
		log.Ctx(ctx).Error().Err(errDb).Msg("failed to create order")
		return dberror.ErrDatabase.Err(errDb)
	}
	return nil
}

func (om *orderManager) UpdateOrderStatus(ctx context.Context, orderID int64, status string) apperrors.Error {
	res, err := om.conn().ExecContext(ctx,
		"UPDATE orders SET status = $2, updated_at = now() WHERE id = $1", orderID, status)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("order_id", orderID).Msg("failed to update order status")
		return dberror.FromPg(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ListOrderProducts returns the rows of an order with product and size details.
func (om *orderManager) ListOrderProducts(ctx context.Context, orderID int64) ([]models.OrderProductDetail, apperrors.Error) {
	query := `
		SELECT op.order_id, op.product_id, op.quantity, op.price,
		       p.article_code, p.variant_code, p.size_id, s.name AS size_name,
		       p.size_group_id, sg.name AS size_group_name
		FROM order_products op
		JOIN products p ON p.id = op.product_id
		JOIN sizes s ON s.id = p.size_id
		JOIN size_groups sg ON sg.id = p.size_group_id
		WHERE op.order_id = $1
		ORDER BY op.id`
	rows := []models.OrderProductDetail{}
	if err := om.conn().SelectContext(ctx, &rows, query, orderID); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("order_id", orderID).Msg("failed to list order products")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return rows, nil
}
