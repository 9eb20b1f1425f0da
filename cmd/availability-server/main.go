package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/carebook/availability/internal/config"
	"github.com/carebook/availability/internal/domain/scheduling"
	"github.com/carebook/availability/internal/platform/db"
	"github.com/carebook/availability/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "availability-server",
		Short:        "Doctor availability and slot scheduling API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(calendarCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var memory bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(memory)
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "Keep slots and records in memory instead of Postgres")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	var dir, schema string
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Migrations directory (default: the embedded migrations)")
	cmd.PersistentFlags().StringVar(&schema, "schema", "public", "Target schema")

	// openMigrator returns the migrator and a func that closes its pool.
	openMigrator := func(ctx context.Context) (*db.Migrator, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		if err := cfg.Validate(true); err != nil {
			return nil, nil, err
		}
		pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: 2, ApplicationName: "availability-migrate"})
		if err != nil {
			return nil, nil, err
		}
		var source fs.FS = migrations.FS
		if dir != "" {
			source = os.DirFS(dir)
		}
		m, err := db.NewMigrator(pool, source, schema)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return m, pool.Close, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, closePool, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := m.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) to schema %s.\n", count, schema)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, closePool, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := m.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func slotsCmd() *cobra.Command {
	var (
		date, start, end, tz string
		interval             int
	)
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print the candidate slots for a working window",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := scheduling.ParseDate(date)
			if err != nil {
				return err
			}
			from, err := scheduling.ParseTimeOfDay(start)
			if err != nil {
				return err
			}
			to, err := scheduling.ParseTimeOfDay(end)
			if err != nil {
				return err
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("--tz: %w", err)
			}
			printSlots(cmd.OutOrStdout(), scheduling.GenerateSlots(d, from, to, interval, loc))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", time.Now().Format("2006-01-02"), "Day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&start, "start", "09:00", "Window start (HH:MM)")
	cmd.Flags().StringVar(&end, "end", "17:00", "Window end (HH:MM)")
	cmd.Flags().IntVar(&interval, "interval", 30, "Slot length in minutes")
	cmd.Flags().StringVar(&tz, "tz", "UTC", "Time zone of the window")
	return cmd
}

func calendarCmd() *cobra.Command {
	var (
		year, month int
		selected    string
	)
	now := time.Now()
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Print the six-week grid of a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			if month < 1 || month > 12 {
				return fmt.Errorf("--month must be 1-12, got %d", month)
			}
			opts := scheduling.GridOptions{Today: scheduling.DateOf(time.Now())}
			if selected != "" {
				d, err := scheduling.ParseDate(selected)
				if err != nil {
					return fmt.Errorf("--selected: %w", err)
				}
				opts.Selected = &d
			}
			printCalendar(cmd.OutOrStdout(), year, time.Month(month),
				scheduling.BuildMonthGrid(year, time.Month(month), opts))
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", now.Year(), "Year")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "Month (1-12)")
	cmd.Flags().StringVar(&selected, "selected", "", "Day to highlight (YYYY-MM-DD)")
	return cmd
}

func printMigrationStatus(out io.Writer, statuses []db.MigrationStatus) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
	}
	w.Flush()
}
