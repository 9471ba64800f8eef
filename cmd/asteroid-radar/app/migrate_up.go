package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/asteroid-radar/database"
)

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		Long: `Apply all pending database migrations to bring the schema up to date.
This command reads the database path from the config file and applies all
migrations that haven't been run yet.`,
		RunE: runMigrateUp,
	}
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	db, path, err := setupMigration(cmd)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	ok, err := confirm(cmd, fmt.Sprintf("About to apply migrations to %s. Continue?", path))
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("Migration cancelled by user")
		return nil
	}

	slog.Info("Applying database migrations...", "path", path)
	if err := database.MigrateUp(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := database.Version(ctx, db)
	if err != nil {
		slog.Warn("Unable to get migration version", "error", err)
		return nil
	}
	slog.Info("Migrations applied successfully", "version", version)
	return nil
}
