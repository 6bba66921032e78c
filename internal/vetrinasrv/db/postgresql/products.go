package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/dberror"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
)

const productColumns = `
	p.id, p.article_code, p.variant_code, p.size_id, s.name AS size_name,
	p.size_group_id, sg.name AS size_group_name, p.brand_id, p.price, p.retail_price,
	p.status, p.created_at, p.updated_at`

const productFrom = `
	FROM products p
	JOIN sizes s ON s.id = p.size_id
	JOIN size_groups sg ON sg.id = p.size_group_id`

var ErrProductNotFound = dberror.ErrNotFound.Msg("product not found")
var ErrSizeNotFound = dberror.ErrInvalidInput.Msg("size not found")

func (pm *productManager) GetProduct(ctx context.Context, id int64) (*models.Product, apperrors.Error) {
	var p models.Product
	err := pm.conn().GetContext(ctx, &p, "SELECT"+productColumns+productFrom+" WHERE p.id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		log.Ctx(ctx).Error().Err(err).Int64("product_id", id).Msg("failed to get product")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return &p, nil
}

// ListProducts returns one page of products matching f and the total number of matches.
func (pm *productManager) ListProducts(ctx context.Context, f models.ProductFilters) ([]models.Product, int64, apperrors.Error) {
	conditions := []string{}
	args := map[string]any{}
	if f.BrandID > 0 {
		conditions = append(conditions, "p.brand_id = :brand_id")
		args["brand_id"] = f.BrandID
	}
	if f.Status != "" {
		conditions = append(conditions, "p.status = :status")
		args["status"] = f.Status
	}
	if f.Search != "" {
		conditions = append(conditions,
			"(p.article_code ILIKE :search OR p.variant_code ILIKE :search OR p.article_key LIKE vetrina_code_key(:raw) || '%')")
		args["search"] = "%" + f.Search + "%"
		args["raw"] = f.Search
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	q, qargs, err := sqlx.Named("SELECT count(*)"+productFrom+where, args)
	if err != nil {
		return nil, 0, dberror.ErrDatabase.Err(err)
	}
	if err := pm.conn().GetContext(ctx, &total, pm.conn().Rebind(q), qargs...); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to count products")
		return nil, 0, dberror.ErrDatabase.Err(err)
	}

	args["limit"] = f.Limit
	args["offset"] = offset(f.Page, f.Limit)
	q, qargs, err = sqlx.Named("SELECT"+productColumns+productFrom+where+
		" ORDER BY p.article_code, p.variant_code, p.size_group_id, p.size_id LIMIT :limit OFFSET :offset", args)
	if err != nil {
		return nil, 0, dberror.ErrDatabase.Err(err)
	}
	products := []models.Product{}
	if err := pm.conn().SelectContext(ctx, &products, pm.conn().Rebind(q), qargs...); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list products")
		return nil, 0, dberror.ErrDatabase.Err(err)
	}
	return products, total, nil
}

// CreateProduct inserts p. The size group is taken from the size. A product whose normalized tuple
// already exists returns ErrAlreadyExists.
func (pm *productManager) CreateProduct(ctx context.Context, p *models.Product) apperrors.Error {
	query := `
		INSERT INTO products (article_code, variant_code, size_id, size_group_id, brand_id, price, retail_price, status)
		SELECT $1, $2, s.id, s.size_group_id, $4, $5, $6, $7 FROM sizes s WHERE s.id = $3
		RETURNING id, size_group_id, created_at, updated_at`
	err := pm.conn().QueryRowxContext(ctx, query, p.ArticleCode, p.VariantCode, p.SizeID, p.BrandID, p.Price,
		p.RetailPrice, p.Status).Scan(&p.ID, &p.SizeGroupID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSizeNotFound
		}
		if dberror.IsUniqueViolation(err) {
			log.Ctx(ctx).Info().Str("article_code", p.ArticleCode).Str("variant_code", p.VariantCode).Msg("product already exists")
			return dberror.ErrAlreadyExists.Msg("product already exists")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to create product")
		return dberror.FromPg(err)
	}
	return nil
}

// UpdateProduct applies the non-nil fields of u.
func (pm *productManager) UpdateProduct(ctx context.Context, id int64, u models.ProductUpdate) apperrors.Error {
	if u.Empty() {
		return nil
	}
	sets := []string{}
	args := map[string]any{"id": id}
	add := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = :%s", col, col))
		args[col] = v
	}
	if u.ArticleCode != nil {
		add("article_code", *u.ArticleCode)
	}
	if u.VariantCode != nil {
		add("variant_code", *u.VariantCode)
	}
	if u.SizeID != nil {
		add("size_id", *u.SizeID)
		sets = append(sets, "size_group_id = (SELECT size_group_id FROM sizes WHERE id = :size_id)")
	}
	if u.BrandID != nil {
		add("brand_id", *u.BrandID)
	}
	if u.Price != nil {
		add("price", *u.Price)
	}
	if u.ClearRetail {
		sets = append(sets, "retail_price = NULL")
	} else if u.RetailPrice != nil {
		add("retail_price", *u.RetailPrice)
	}
	if u.Status != nil {
		add("status", *u.Status)
	}
	sets = append(sets, "updated_at = now()")

	q, qargs, err := sqlx.Named("UPDATE products SET "+strings.Join(sets, ", ")+" WHERE id = :id", args)
	if err != nil {
		return dberror.ErrDatabase.Err(err)
	}
	res, err := pm.conn().ExecContext(ctx, pm.conn().Rebind(q), qargs...)
	if err != nil {
		if dberror.IsUniqueViolation(err) {
			return dberror.ErrAlreadyExists.Msg("product already exists")
		}
		log.Ctx(ctx).Error().Err(err).Int64("product_id", id).Msg("failed to update product")
		return dberror.FromPg(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DeleteProduct removes a product. Products referenced by orders cannot be deleted.
func (pm *productManager) DeleteProduct(ctx context.Context, id int64) apperrors.Error {
	res, err := pm.conn().ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		if dberror.IsForeignKeyViolation(err) {
			return dberror.ErrAlreadyExists.Msg("product is used by orders").Err(err)
		}
		log.Ctx(ctx).Error().Err(err).Int64("product_id", id).Msg("failed to delete product")
		return dberror.ErrDatabase.Err(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// SearchProducts returns candidates of brandID whose article or variant code contains query, grouped by
// article, variant and size group.
func (pm *productManager) SearchProducts(ctx context.Context, query string, brandID int64, limit int) ([]models.ProductCandidate, apperrors.Error) {
	q := `
		SELECT p.article_code, p.variant_code, p.size_group_id, sg.name AS size_group_name,
		       p.brand_id, max(p.price) AS price
		FROM products p
		JOIN size_groups sg ON sg.id = p.size_group_id
		WHERE p.status = 'active'
		  AND ($2 = 0 OR p.brand_id = $2)
		  AND (p.article_code ILIKE '%' || $1 || '%'
		       OR p.variant_code ILIKE '%' || $1 || '%'
		       OR p.article_key LIKE vetrina_code_key($1) || '%')
		GROUP BY p.article_code, p.variant_code, p.size_group_id, sg.name, p.brand_id
		ORDER BY p.article_code, p.variant_code
		LIMIT $3`
	candidates := []models.ProductCandidate{}
	if err := pm.conn().SelectContext(ctx, &candidates, q, query, brandID, limit); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("query", query).Msg("failed to search products")
		return nil, dberror.ErrDatabase.Err(err)
	}
	return candidates, nil
}
