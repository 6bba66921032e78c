// Package api holds the JSON types exchanged between the Vetrina server and its clients.
package api

import (
	"time"

	"github.com/vetrina/vetrina/pkg/ordering"
	"github.com/vetrina/vetrina/pkg/sizes"
)

const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"

	OrderStatusDraft     = "draft"
	OrderStatusSubmitted = "submitted"

	CatalogStateDraft     = "draft"
	CatalogStatePublished = "published"
	CatalogStateArchived  = "archived"

	RoleAdmin  = "admin"
	RoleClient = "client"
)

type Pagination struct {
	Total   int64 `json:"total"`
	Pages   int64 `json:"pages"`
	Current int64 `json:"current"`
}

// NewPagination computes the page count for total items shown limit per page.
func NewPagination(total, page, limit int64) Pagination {
	if limit <= 0 {
		limit = 1
	}
	return Pagination{
		Total:   total,
		Pages:   (total + limit - 1) / limit,
		Current: page,
	}
}

type Size = sizes.Size

type SizeGroup struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	BrandID *int64 `json:"brand_id,omitempty"`
}

type SizeGroupsRsp struct {
	SizeGroups []SizeGroup `json:"size_groups"`
}

type SizesRsp struct {
	Sizes   []Size `json:"sizes"`
	Message string `json:"message,omitempty"`
}

const NoSizesAvailable = "no sizes available"

type Product struct {
	ID            int64    `json:"id"`
	ArticleCode   string   `json:"article_code"`
	VariantCode   string   `json:"variant_code"`
	SizeID        int64    `json:"size_id"`
	SizeName      string   `json:"size_name,omitempty"`
	SizeGroupID   int64    `json:"size_group_id"`
	SizeGroupName string   `json:"size_group_name,omitempty"`
	BrandID       int64    `json:"brand_id"`
	Price         float64  `json:"price"`
	RetailPrice   *float64 `json:"retail_price"`
	Status        string   `json:"status"`
}

type ProductCreateReq struct {
	ArticleCode string   `json:"article_code" validate:"required,articlecode"`
	VariantCode string   `json:"variant_code" validate:"required,articlecode"`
	SizeID      int64    `json:"size_id" validate:"required,gt=0"`
	BrandID     int64    `json:"brand_id" validate:"required,gt=0"`
	Price       float64  `json:"price" validate:"gte=0"`
	RetailPrice *float64 `json:"retail_price" validate:"omitempty,gte=0"`
	Status      string   `json:"status" validate:"omitempty,oneof=active inactive"`
}

type ProductListRsp struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

// ProductCandidate is one search hit, grouped by article, variant and size group.
type ProductCandidate struct {
	ArticleCode   string  `json:"article_code"`
	VariantCode   string  `json:"variant_code"`
	SizeGroupID   int64   `json:"size_group_id"`
	SizeGroupName string  `json:"size_group_name"`
	BrandID       int64   `json:"brand_id"`
	Price         float64 `json:"price"`
}

type ProductSearchRsp struct {
	Products []ProductCandidate `json:"products"`
}

type ImportSkip struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type ImportRsp struct {
	Created int          `json:"created"`
	Updated int          `json:"updated"`
	Skipped []ImportSkip `json:"skipped"`
}

type SizeQuantity struct {
	SizeID   int64  `json:"size_id"`
	SizeName string `json:"size_name"`
	Quantity int64  `json:"quantity"`
}

// OrderLine is a persisted order line as shown to the editor, with every size of its group present.
type OrderLine struct {
	ArticleCode     string         `json:"article_code"`
	VariantCode     string         `json:"variant_code"`
	SizeGroupID     int64          `json:"size_group_id"`
	SizeGroupName   string         `json:"size_group_name"`
	Price           float64        `json:"price"`
	SizesQuantities []SizeQuantity `json:"sizes_quantities"`
}

// DraftLine converts a persisted line into an editable one.
func (l OrderLine) DraftLine() ordering.DraftLine {
	m := make(map[int64]int64, len(l.SizesQuantities))
	for _, sq := range l.SizesQuantities {
		m[sq.SizeID] = sq.Quantity
	}
	return ordering.DraftLine{
		ArticleCode:     l.ArticleCode,
		VariantCode:     l.VariantCode,
		SizeGroupID:     l.SizeGroupID,
		SizeGroupName:   l.SizeGroupName,
		SizesQuantities: m,
		Price:           l.Price,
		FromDatabase:    true,
	}
}

type OrderLinesRsp struct {
	Lines []OrderLine `json:"lines"`
	Total float64     `json:"total"`
}

type SaveRsp struct {
	Saved   int                `json:"saved"`
	Skipped []ordering.Skipped `json:"skipped"`
}

type Order struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CatalogID int64     `json:"catalog_id"`
	BrandID   int64     `json:"brand_id"`
	Status    string    `json:"status"`
	Total     float64   `json:"total"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderCreateReq struct {
	CatalogID int64 `json:"catalog_id" validate:"required,gt=0"`
}

type OrderStatusReq struct {
	Status string `json:"status" validate:"required,oneof=draft submitted"`
}

type OrderListRsp struct {
	Orders []Order `json:"orders"`
}

type Catalog struct {
	ID            int64     `json:"id"`
	BrandID       int64     `json:"brand_id"`
	BrandName     string    `json:"brand_name,omitempty"`
	Type          string    `json:"type"`
	Season        string    `json:"season"`
	Year          int       `json:"year"`
	DeliveryStart *string   `json:"delivery_start"`
	DeliveryEnd   *string   `json:"delivery_end"`
	OrderStart    *string   `json:"order_start"`
	OrderEnd      *string   `json:"order_end"`
	Note          string    `json:"note"`
	Condition     string    `json:"condition"`
	CoverURL      string    `json:"cover_url"`
	State         string    `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
}

// CatalogReq creates or replaces a catalog. Dates are YYYY-MM-DD.
type CatalogReq struct {
	BrandID       int64   `json:"brand_id" validate:"required,gt=0"`
	Type          string  `json:"type" validate:"required"`
	Season        string  `json:"season" validate:"required"`
	Year          int     `json:"year" validate:"required,gte=2000,lte=2100"`
	DeliveryStart *string `json:"delivery_start" validate:"omitempty,datetime=2006-01-02"`
	DeliveryEnd   *string `json:"delivery_end" validate:"omitempty,datetime=2006-01-02"`
	OrderStart    *string `json:"order_start" validate:"omitempty,datetime=2006-01-02"`
	OrderEnd      *string `json:"order_end" validate:"omitempty,datetime=2006-01-02"`
	Note          string  `json:"note"`
	Condition     string  `json:"condition"`
	CoverURL      string  `json:"cover_url" validate:"omitempty,url"`
}

type CatalogStateReq struct {
	State string `json:"state" validate:"required,oneof=draft published archived"`
}

type CatalogListRsp struct {
	Catalogs []Catalog `json:"catalogs"`
}

const (
	NotificationNewCatalog    = "new_catalog"
	NotificationOrderStatus   = "order_status"
	NotificationCatalogUpdate = "catalog_update"
	NotificationSystem        = "system"
)

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	Icon      string    `json:"icon"`
	Color     string    `json:"color"`
	BrandID   *int64    `json:"brandId,omitempty"`
	BrandName *string   `json:"brandName,omitempty"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationCreateReq is validated against a JSON schema by the server. UserID defaults to the caller.
type NotificationCreateReq struct {
	UserID    *int64  `json:"userId,omitempty"`
	Type      string  `json:"type"`
	Icon      string  `json:"icon"`
	Color     string  `json:"color"`
	BrandID   *int64  `json:"brandId,omitempty"`
	BrandName *string `json:"brandName,omitempty"`
	Message   string  `json:"message"`
}

type NotificationListRsp struct {
	Notifications []Notification `json:"notifications"`
	Pagination    Pagination     `json:"pagination"`
}

type CountRsp struct {
	Count int64 `json:"count"`
}

type StatusRsp struct {
	Success bool `json:"success"`
}
