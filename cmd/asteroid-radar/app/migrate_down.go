package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/asteroid-radar/database"
)

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Migrate the database down",
		Long: `Migrate the database schema down by reverting every migration.
WARNING: This operation drops the asteroid cache. Use with caution.

Examples:
  asteroid-radar migrate down --config config.yaml --yes`,
		RunE: runMigrateDown,
	}
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	db, path, err := setupMigration(cmd)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	ok, err := confirm(cmd, fmt.Sprintf("WARNING: This will revert ALL migrations of %s and delete the cached asteroids. Continue?", path))
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("Migration cancelled")
		return fmt.Errorf("migration cancelled by user")
	}

	slog.Warn("Migrating down all steps - this will remove all schema!", "path", path)
	if err := database.MigrateDown(ctx, db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, err := database.Version(ctx, db)
	if err != nil {
		slog.Warn("Failed to get migration version", "error", err)
		return nil
	}
	slog.Info("Migration completed successfully", "version", version)
	return nil
}
