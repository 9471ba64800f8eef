package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	internalapp "github.com/stacklok/asteroid-radar/internal/app"
	"github.com/stacklok/asteroid-radar/internal/sync/coordinator"
)

func newRefreshCmd() *cobra.Command {
	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one refresh cycle and exit",
		Long: `Fetch the feed window starting today, store it and evict asteroids whose close
approach is in the past. The cycle result is printed as JSON.

The command exits with status 0 when the cycle completed and 1 otherwise.`,
		RunE: runRefresh,
	}
	addConfigFlag(refreshCmd)
	return refreshCmd
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	components, err := internalapp.NewComponents(ctx, internalapp.WithComponentsConfig(cfg))
	if err != nil {
		return err
	}
	defer components.Close()

	return refreshOnce(ctx, cmd, components.SyncCoordinator)
}

// refreshOnce runs a cycle, prints its result and fails unless the cycle completed
func refreshOnce(ctx context.Context, cmd *cobra.Command, coord coordinator.Coordinator) error {
	result, cycleErr := coord.RunCycle(ctx)

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format cycle result: %w", err)
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(output)); err != nil {
		return err
	}

	if result.Decision != coordinator.DecisionDone {
		if cycleErr == nil {
			cycleErr = errors.New(result.Message)
		}
		return fmt.Errorf("refresh did not complete (%s): %w", result.Decision, cycleErr)
	}
	return nil
}
