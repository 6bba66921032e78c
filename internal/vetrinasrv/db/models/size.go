package models

import "database/sql"

/*
 size_groups: id bigserial, name text not null, brand_id bigint null
 sizes:       id bigserial, size_group_id bigint not null, name text not null, unique (size_group_id, name)
*/

type SizeGroup struct {
	ID      int64         `db:"id"`
	Name    string        `db:"name"`
	BrandID sql.NullInt64 `db:"brand_id"`
}

type Size struct {
	ID          int64         `db:"id"`
	SizeGroupID int64         `db:"size_group_id"`
	Name        string        `db:"name"`
	ProductID   sql.NullInt64 `db:"product_id"`
}
