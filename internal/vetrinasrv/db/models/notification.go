package models

import (
	"database/sql"
	"time"
)

/*
 notifications:
   id bigserial, user_id bigint not null, type text not null (enum check),
   icon text, color text, brand_id bigint null, brand_name text null,
   message text not null, read boolean not null default false, created_at timestamptz
*/

type Notification struct {
	ID        int64          `db:"id"`
	UserID    int64          `db:"user_id"`
	Type      string         `db:"type"`
	Icon      string         `db:"icon"`
	Color     string         `db:"color"`
	BrandID   sql.NullInt64  `db:"brand_id"`
	BrandName sql.NullString `db:"brand_name"`
	Message   string         `db:"message"`
	Read      bool           `db:"read"`
	CreatedAt time.Time      `db:"created_at"`
}
