// Package products serves the product catalog and matches order rows to concrete products.
package products

import (
	"context"
	"database/sql"

	"github.com/vetrina/vetrina/internal/common/apperrors"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/dberror"
	"github.com/vetrina/vetrina/internal/vetrinasrv/db/models"
	"github.com/vetrina/vetrina/pkg/api"
	"github.com/vetrina/vetrina/pkg/articlecode"
)

var ErrInvalidCode = dberror.ErrInvalidInput.Msg("article and variant codes must contain a letter or digit")

// Matcher resolves a product tuple to an id, creating the product when missing. Implemented by db.Tx.
type Matcher interface {
	MatchOrCreateProduct(ctx context.Context, p *models.Product) (int64, bool, apperrors.Error)
}

// MatchOrCreate normalizes the codes and returns the id of the product for (article, variant, size, brand),
// creating it active with price and no retail price when none exists. The boolean reports a creation.
// Calling it again for the same tuple, in any separator or case spelling, returns the same id.
func MatchOrCreate(ctx context.Context, m Matcher, article, variant string, sizeID, brandID int64, price float64) (int64, bool, error) {
	if !articlecode.Valid(article) || !articlecode.Valid(variant) {
		return 0, false, ErrInvalidCode
	}
	p := &models.Product{
		ArticleCode: articlecode.Normalize(article),
		VariantCode: articlecode.Normalize(variant),
		SizeID:      sizeID,
		BrandID:     brandID,
		Price:       price,
		Status:      api.ProductStatusActive,
	}
	id, created, err := m.MatchOrCreateProduct(ctx, p)
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}

// Searcher finds product candidates.
type Searcher interface {
	SearchProducts(ctx context.Context, query string, brandID int64, limit int) ([]models.ProductCandidate, apperrors.Error)
}

// Search returns candidates of brandID (any brand when zero) whose codes match query. A query that
// normalizes to nothing matches nothing.
func Search(ctx context.Context, s Searcher, query string, brandID int64, limit int) ([]api.ProductCandidate, error) {
	out := []api.ProductCandidate{}
	q := articlecode.Normalize(query)
	if q == "" {
		return out, nil
	}
	found, err := s.SearchProducts(ctx, q, brandID, limit)
	if err != nil {
		return nil, err
	}
	for _, c := range found {
		out = append(out, api.ProductCandidate{
			ArticleCode:   c.ArticleCode,
			VariantCode:   c.VariantCode,
			SizeGroupID:   c.SizeGroupID,
			SizeGroupName: c.SizeGroupName,
			BrandID:       c.BrandID,
			Price:         c.Price,
		})
	}
	return out, nil
}

func toAPI(p *models.Product) api.Product {
	return api.Product{
		ID:            p.ID,
		ArticleCode:   p.ArticleCode,
		VariantCode:   p.VariantCode,
		SizeID:        p.SizeID,
		SizeName:      p.SizeName,
		SizeGroupID:   p.SizeGroupID,
		SizeGroupName: p.SizeGroupName,
		BrandID:       p.BrandID,
		Price:         p.Price,
		RetailPrice:   nullFloat(p.RetailPrice),
		Status:        p.Status,
	}
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
