package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the idempotent schema.
func Migrate(ctx context.Context, db DBTX, logger *slog.Logger) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		logger.ErrorContext(ctx, "Schema migration failed", "error", err)
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.InfoContext(ctx, "Schema migration applied")
	return nil
}
