package db

import (
	"context"
	_ "embed"
	"fmt"
)

// Schema is the full DDL for a fresh database. Every statement is idempotent.
//
//go:embed schema.sql
var Schema string

// ApplySchema runs Schema against conn. Without arguments pgx sends the
// script over the simple protocol, so it may hold several statements.
func ApplySchema(ctx context.Context, conn DBTX) error {
	if _, err := conn.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("platform/db: apply schema: %w", err)
	}
	return nil
}
