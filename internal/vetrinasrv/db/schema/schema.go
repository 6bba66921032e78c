// Package schema carries the database schema of the Vetrina server.
package schema

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var SQL string

// Apply creates the schema objects that do not exist yet.
func Apply(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, SQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
