package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/dberror"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
)

var ErrCatalogNotFound = dberror.ErrNotFound.Msg("catalog not found")
var ErrCatalogStateChanged = dberror.ErrAlreadyExists.Msg("catalog state changed concurrently")

const catalogSelect = `
	SELECT c.id, c.brand_id, b.name AS brand_name, c.type, c.season, c.year,
	       c.delivery_start, c.delivery_end, c.order_start, c.order_end,
	       c.note, c.condition, c.cover_url, c.state, c.created_at, c.updated_at
	FROM catalogs c
	JOIN brands b ON b.id = c.brand_id`

// ListCatalogs returns catalogs in any of states, newest first. No states means all.
func (cm *catalogManager) ListCatalogs(ctx context.Context, states []string) ([]models.Catalog, apperrors.Error) {
	catalogs := []models.Catalog{}
	err := cm.conn().SelectContext(ctx, &catalogs,
		catalogSelect+" WHERE cardinality($1::text[]) = 0 OR c.state = ANY($1::text[]) ORDER BY c.year DESC, c.created_at DESC",
		pq.Array(states))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list catalogs")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return catalogs, nil
}

func (cm *catalogManager) GetCatalog(ctx context.Context, id int64) (*models.Catalog, apperrors.Error) {
	var c models.Catalog
	if err := cm.conn().GetContext(ctx, &c, catalogSelect+" WHERE c.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCatalogNotFound
		}
		log.Ctx(ctx).Error().Err(err).Int64("catalog_id", id).Msg("failed to get catalog")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return &c, nil
}

func (cm *catalogManager) CreateCatalog(ctx context.Context, c *models.Catalog) apperrors.Error {
	query := `
		INSERT INTO catalogs (brand_id, type, season, year, delivery_start, delivery_end, order_start, order_end,
		                      note, condition, cover_url, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'draft')
		RETURNING id, state, created_at, updated_at`
	err := cm.conn().QueryRowxContext(ctx, query, c.BrandID, c.Type, c.Season, c.Year,
		&c.DeliveryStart, &c.DeliveryEnd, &c.OrderStart, &c.OrderEnd, c.Note, c.Condition, c.CoverURL).
		Scan(&c.ID, &c.State, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if dberror.IsForeignKeyViolation(err) {
			return dberror.ErrInvalidReference.Msg("brand not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to create catalog")
		return dberror.FromPg(err)
	}
	return nil
}

// UpdateCatalog replaces the editable fields of a catalog. The state is not touched.
func (cm *catalogManager) UpdateCatalog(ctx context.Context, c *models.Catalog) apperrors.Error {
	query := `
		UPDATE catalogs SET brand_id = $2, type = $3, season = $4, year = $5,
		       delivery_start = $6, delivery_end = $7, order_start = $8, order_end = $9,
		       note = $10, condition = $11, cover_url = $12, updated_at = now()
		WHERE id = $1`
	res, err := cm.conn().ExecContext(ctx, query, c.ID, c.BrandID, c.Type, c.Season, c.Year,
		&c.DeliveryStart, &c.DeliveryEnd, &c.OrderStart, &c.OrderEnd, c.Note, c.Condition, c.CoverURL)
	if err != nil {
		if dberror.IsForeignKeyViolation(err) {
			return dberror.ErrInvalidReference.Msg("brand not found")
		}
		log.Ctx(ctx).Error().Err(err).Int64("catalog_id", c.ID).Msg("failed to update catalog")
		return dberror.FromPg(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCatalogNotFound
	}
	return nil
}

// SetCatalogState moves a catalog from one state to another. It fails when the catalog is no longer in from.
func (cm *catalogManager) SetCatalogState(ctx context.Context, id int64, from, to string) apperrors.Error {
	res, err := cm.conn().ExecContext(ctx,
		"UPDATE catalogs SET state = $3, updated_at = now() WHERE id = $1 AND state = $2", id, from, to)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("catalog_id", id).Msg("failed to set catalog state")
		return dberror.FromPg(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCatalogStateChanged
	}
	return nil
}
