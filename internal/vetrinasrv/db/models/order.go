package models

import "time"

/*
 orders:
   id bigserial, user_id bigint not null, catalog_id bigint not null,
   status text not null default 'draft', created_at, updated_at

 order_products:
   id bigserial, order_id bigint not null (cascade), product_id bigint not null,
   quantity int not null check (quantity > 0), price numeric(12,2) not null,
   unique (order_id, product_id)
*/

type Order struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	CatalogID int64     `db:"catalog_id"`
	BrandID   int64     `db:"brand_id"`
	Status    string    `db:"status"`
	Total     float64   `db:"total"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// OrderProduct is one persisted row of an order.
type OrderProduct struct {
	OrderID   int64   `db:"order_id"`
	ProductID int64   `db:"product_id"`
	Quantity  int64   `db:"quantity"`
	Price     float64 `db:"price"`
}

// OrderProductDetail is an order row joined with its product and size.
type OrderProductDetail struct {
	OrderID       int64   `db:"order_id"`
	ProductID     int64   `db:"product_id"`
	Quantity      int64   `db:"quantity"`
	Price         float64 `db:"price"`
	ArticleCode   string  `db:"article_code"`
	VariantCode   string  `db:"variant_code"`
	SizeID        int64   `db:"size_id"`
	SizeName      string  `db:"size_name"`
	SizeGroupID   int64   `db:"size_group_id"`
	SizeGroupName string  `db:"size_group_name"`
}
