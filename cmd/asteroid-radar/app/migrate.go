package app

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	// registers the "sqlite" driver
	_ "modernc.org/sqlite"

	"github.com/stacklok/asteroid-radar/internal/store"
)

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long:  `Database migration tool for managing the SQLite schema version. Use with 'up' or 'down' subcommands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	migrateCmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	migrateCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := migrateCmd.MarkPersistentFlagRequired("config"); err != nil {
		panic(err)
	}

	// Add subcommands
	migrateCmd.AddCommand(newMigrateUpCmd())
	migrateCmd.AddCommand(newMigrateDownCmd())

	return migrateCmd
}

// setupMigration loads the configuration and opens the SQLite database it names
func setupMigration(cmd *cobra.Command) (*sql.DB, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}

	storeCfg := cfg.GetStore()
	if storeCfg.GetBackend() != store.BackendSQLite {
		return nil, "", fmt.Errorf("migrations only apply to the %s backend, configured backend is %s",
			store.BackendSQLite, storeCfg.GetBackend())
	}

	path := storeCfg.GetPath()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(commandContext(cmd)); err != nil {
		closeDatabase(db)
		return nil, "", fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, path, nil
}

func closeDatabase(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Error("Error closing database connection", "error", err)
	}
}

// confirm asks prompt on the command's output and reads a yes/no answer from its input
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return false, fmt.Errorf("failed to get yes flag: %w", err)
	}
	if yes {
		return true, nil
	}

	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (yes/no): ", prompt); err != nil {
		return false, err
	}
	response, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "yes" || response == "y", nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
