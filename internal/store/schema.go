package store

import (
	"context"
	_ "embed"
	"fmt"
)

// Schema is the DDL for every table in Tables. Statements are idempotent.
//
//go:embed schema.sql
var Schema string

// Migrate applies Schema.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
