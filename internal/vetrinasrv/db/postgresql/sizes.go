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

var ErrSizeGroupNotFound = dberror.ErrNotFound.Msg("size group not found")

// ListSizeGroups returns the size groups usable for brandID: its own groups and the shared ones.
// A zero brandID returns all groups.
func (pm *productManager) ListSizeGroups(ctx context.Context, brandID int64) ([]models.SizeGroup, apperrors.Error) {
	query := `
		SELECT id, name, brand_id FROM size_groups
		WHERE $1 = 0 OR brand_id = $1 OR brand_id IS NULL
		ORDER BY name, id`
	groups := []models.SizeGroup{}
	if err := pm.conn().SelectContext(ctx, &groups, query, brandID); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list size groups")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return groups, nil
}

// ListSizes returns the sizes of a group in storage order. An unknown group yields an empty list.
func (pm *productManager) ListSizes(ctx context.Context, sizeGroupID int64) ([]models.Size, apperrors.Error) {
	sizes := []models.Size{}
	err := pm.conn().SelectContext(ctx, &sizes,
		"SELECT id, size_group_id, name FROM sizes WHERE size_group_id = $1 ORDER BY id", sizeGroupID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("size_group_id", sizeGroupID).Msg("failed to list sizes")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return sizes, nil
}

// ListSizesByGroups returns the sizes of several groups keyed by group id.
func (pm *productManager) ListSizesByGroups(ctx context.Context, sizeGroupIDs []int64) (map[int64][]models.Size, apperrors.Error) {
	out := make(map[int64][]models.Size, len(sizeGroupIDs))
	if len(sizeGroupIDs) == 0 {
		return out, nil
	}
	sizes := []models.Size{}
	err := pm.conn().SelectContext(ctx, &sizes,
		"SELECT id, size_group_id, name FROM sizes WHERE size_group_id = ANY($1::bigint[]) ORDER BY size_group_id, id",
		pq.Array(sizeGroupIDs))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list sizes for groups")
		return nil, dberror.ErrDatabase.Err(err)
	}
	for _, s := range sizes {
		out[s.SizeGroupID] = append(out[s.SizeGroupID], s)
	}
	return out, nil
}

// ListSizesForProduct returns the sizes of a group with the id of the existing product for each size, if any.
func (pm *productManager) ListSizesForProduct(ctx context.Context, sizeGroupID int64, article, variant string, brandID int64) ([]models.Size, apperrors.Error) {
	query := `
		SELECT s.id, s.size_group_id, s.name, p.id AS product_id
		FROM sizes s
		LEFT JOIN products p
		  ON p.size_id = s.id
		 AND p.brand_id = $4
		 AND p.article_key = vetrina_code_key($2)
		 AND p.variant_key = vetrina_code_key($3)
		WHERE s.size_group_id = $1
		ORDER BY s.id`
	sizes := []models.Size{}
	if err := pm.conn().SelectContext(ctx, &sizes, query, sizeGroupID, article, variant, brandID); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("size_group_id", sizeGroupID).Msg("failed to list sizes for product")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return sizes, nil
}

// FindSize resolves a size by group and size name, case-insensitively, among the groups visible to brandID.
func (pm *productManager) FindSize(ctx context.Context, brandID int64, groupName, sizeName string) (*models.Size, apperrors.Error) {
	query := `
		SELECT s.id, s.size_group_id, s.name
		FROM sizes s
		JOIN size_groups sg ON sg.id = s.size_group_id
		WHERE lower(sg.name) = lower($2) AND lower(s.name) = lower($3)
		  AND (sg.brand_id = $1 OR sg.brand_id IS NULL)
		ORDER BY sg.brand_id NULLS LAST
		LIMIT 1`
	var s models.Size
	if err := pm.conn().GetContext(ctx, &s, query, brandID, groupName, sizeName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSizeNotFound
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to find size")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return &s, nil
}
