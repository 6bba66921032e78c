package models

import (
	"database/sql"
	"time"
)

/*
    Column     |     Type      | Nullable |        Default
---------------+---------------+----------+-----------------------
 id            | bigserial     | not null |
 article_code  | text          | not null |
 variant_code  | text          | not null |
 article_key   | text          |          | generated: vetrina_code_key(article_code)
 variant_key   | text          |          | generated: vetrina_code_key(variant_code)
 size_id       | bigint        | not null | references sizes
 size_group_id | bigint        | not null | references size_groups
 brand_id      | bigint        | not null | references brands
 price         | numeric(12,2) | not null | 0
 retail_price  | numeric(12,2) |          |
 status        | text          | not null | 'active'
 created_at    | timestamptz   | not null | now()
 updated_at    | timestamptz   | not null | now()
*/

// Product model definition
type Product struct {
	ID            int64           `db:"id"`
	ArticleCode   string          `db:"article_code"`
	VariantCode   string          `db:"variant_code"`
	SizeID        int64           `db:"size_id"`
	SizeName      string          `db:"size_name"`
	SizeGroupID   int64           `db:"size_group_id"`
	SizeGroupName string          `db:"size_group_name"`
	BrandID       int64           `db:"brand_id"`
	Price         float64         `db:"price"`
	RetailPrice   sql.NullFloat64 `db:"retail_price"`
	Status        string          `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// ProductFilters narrows a product listing. Zero values disable a filter.
type ProductFilters struct {
	Search  string
	Status  string
	BrandID int64
	Page    int64
	Limit   int64
}

// ProductUpdate carries the columns present in a partial update. Nil fields are left unchanged.
type ProductUpdate struct {
	ArticleCode *string
	VariantCode *string
	SizeID      *int64
	Price       *float64
	RetailPrice *float64
	ClearRetail bool
	Status      *string
	BrandID     *int64
}

func (u ProductUpdate) Empty() bool {
	return u.ArticleCode == nil && u.VariantCode == nil && u.SizeID == nil && u.Price == nil &&
		u.RetailPrice == nil && !u.ClearRetail && u.Status == nil && u.BrandID == nil
}

// ProductCandidate is a search hit grouped by article, variant and size group.
type ProductCandidate struct {
	ArticleCode   string  `db:"article_code"`
	VariantCode   string  `db:"variant_code"`
	SizeGroupID   int64   `db:"size_group_id"`
	SizeGroupName string  `db:"size_group_name"`
	BrandID       int64   `db:"brand_id"`
	Price         float64 `db:"price"`
}
