package models

import "time"

type User struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	Company   string    `db:"company"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}
