package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/stacklok/asteroid-radar/internal/app/storage"
	"github.com/stacklok/asteroid-radar/internal/asteroid"
	"github.com/stacklok/asteroid-radar/internal/store"
	"github.com/stacklok/asteroid-radar/pkg/versions"
)

func newListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached asteroids",
		Long: `List the asteroids held in the record store, filtered relative to today.
Without --filter the configured default filter is used.`,
		RunE: runList,
	}
	addConfigFlag(listCmd)
	listCmd.Flags().String("filter", "", "Filter to apply (today, week, all)")
	listCmd.Flags().String("date", "", "Reference date (YYYY-MM-DD), defaults to today in the configured time zone")
	listCmd.Flags().String("format", "table", "Output format (table, json)")
	return listCmd
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	filter := cfg.GetSync().GetDefaultFilter()
	if raw, _ := cmd.Flags().GetString("filter"); raw != "" {
		if filter, err = asteroid.ParseFilter(raw); err != nil {
			return err
		}
	}

	today := asteroid.DateOf(time.Now().In(cfg.GetSync().GetLocation()))
	if raw, _ := cmd.Flags().GetString("date"); raw != "" {
		if today, err = asteroid.ParseDate(raw); err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q: must be table or json", format)
	}

	factory, err := storage.NewStorageFactory(ctx, cfg, versions.Version)
	if err != nil {
		return err
	}
	defer factory.Cleanup()

	recordStore, err := factory.CreateRecordStore(ctx)
	if err != nil {
		return err
	}

	rows, err := listAsteroids(ctx, recordStore, filter, today)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	return renderTable(cmd.OutOrStdout(), rows)
}

// listAsteroids queries the store for the rows of filter relative to today in display order
func listAsteroids(ctx context.Context, recordStore store.RecordStore, filter asteroid.Filter, today asteroid.Date) ([]asteroid.Asteroid, error) {
	rows, err := recordStore.Query(ctx, filter.Predicate(today))
	if err != nil {
		return nil, fmt.Errorf("failed to query asteroids: %w", err)
	}
	asteroid.Sort(rows)
	return rows, nil
}

func renderTable(w io.Writer, rows []asteroid.Asteroid) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Codename", "Close approach", "Magnitude", "Diameter (km)", "Velocity (km/s)", "Distance (au)", "Hazardous")

	for _, a := range rows {
		hazardous := "no"
		if a.IsPotentiallyHazardous {
			hazardous = "yes"
		}
		if err := table.Append([]string{
			strconv.FormatInt(a.ID, 10),
			a.Codename,
			a.CloseApproachDate.String(),
			formatFloat(a.AbsoluteMagnitude),
			formatFloat(a.EstimatedDiameter),
			formatFloat(a.RelativeVelocity),
			formatFloat(a.DistanceFromEarth),
			hazardous,
		}); err != nil {
			return fmt.Errorf("failed to render asteroid %d: %w", a.ID, err)
		}
	}

	return table.Render()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}
