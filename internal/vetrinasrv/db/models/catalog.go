package models

import (
	"time"

	"github.com/jackc/pgtype"
)

/*
    Column      |    Type     | Nullable | Default
----------------+-------------+----------+---------
 id             | bigserial   | not null |
 brand_id       | bigint      | not null |
 type           | text        | not null |
 season         | text        | not null |
 year           | int         | not null |
 delivery_start | date        |          |
 delivery_end   | date        |          |
 order_start    | date        |          |
 order_end      | date        |          |
 note           | text        | not null | ''
 condition      | text        | not null | ''
 cover_url      | text        | not null | ''
 state          | text        | not null | 'draft'
 created_at     | timestamptz | not null | now()
 updated_at     | timestamptz | not null | now()
*/

// Catalog model definition
type Catalog struct {
	ID            int64       `db:"id"`
	BrandID       int64       `db:"brand_id"`
	BrandName     string      `db:"brand_name"`
	Type          string      `db:"type"`
	Season        string      `db:"season"`
	Year          int         `db:"year"`
	DeliveryStart pgtype.Date `db:"delivery_start"`
	DeliveryEnd   pgtype.Date `db:"delivery_end"`
	OrderStart    pgtype.Date `db:"order_start"`
	OrderEnd      pgtype.Date `db:"order_end"`
	Note          string      `db:"note"`
	Condition     string      `db:"condition"`
	CoverURL      string      `db:"cover_url"`
	State         string      `db:"state"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}
