// Command ingestctl is the operator CLI for the ingestion scheduler: create,
// start, pause, resume, stop, and delete per-season jobs, and inspect config
// and run state, without going through the out-of-scope lifecycle API.
//
// Usage:
//
//	ingestctl create --season 2026 --platform common-gen5 --days 0,1,2,3,4,5,6 --start 0 --end 24 --interval 10
//	ingestctl start --season 2026
//	ingestctl pause --season 2026
//	ingestctl resume --season 2026
//	ingestctl stop --season 2026
//	ingestctl delete --season 2026
//	ingestctl list
//	ingestctl runs --season 2026 --limit 20
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rinkvault/scheduler/internal/config"
	"github.com/rinkvault/scheduler/internal/db"
	"github.com/rinkvault/scheduler/internal/scheduler"
	"github.com/rinkvault/scheduler/internal/upstream"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "ingestctl",
		Short: "Operator CLI for the ingestion scheduler",
	}

	root.AddCommand(createCmd())
	root.AddCommand(startCmd())
	root.AddCommand(pauseCmd())
	root.AddCommand(resumeCmd())
	root.AddCommand(stopCmd())
	root.AddCommand(deleteCmd())
	root.AddCommand(listCmd())
	root.AddCommand(runsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func createCmd() *cobra.Command {
	var seasonID, platform, days string
	var startHour, endHour, intervalMinutes, intervalSeconds int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new, inactive season config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(ctx context.Context, m *scheduler.Manager) error {
				activeDays, err := parseDays(days)
				if err != nil {
					return err
				}
				cfg := scheduler.Config{
					SeasonID:        seasonID,
					Platform:        platform,
					ActiveDays:      activeDays,
					StartHour:       startHour,
					EndHour:         endHour,
					IntervalMinutes: intervalMinutes,
					IntervalSeconds: intervalSeconds,
				}
				created, err := m.CreateConfig(ctx, cfg)
				if err != nil {
					return err
				}
				logger.Info("config created", "season_id", created.SeasonID, "state", created.State())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&seasonID, "season", "", "Season id (required)")
	cmd.Flags().StringVar(&platform, "platform", "common-gen5", "Upstream platform tag")
	cmd.Flags().StringVar(&days, "days", "0,1,2,3,4,5,6", "Comma-separated active days, 0=Mon..6=Sun")
	cmd.Flags().IntVar(&startHour, "start", 0, "Window start hour (0-23)")
	cmd.Flags().IntVar(&endHour, "end", 24, "Window end hour (1-24, exclusive)")
	cmd.Flags().IntVar(&intervalMinutes, "interval", 10, "Tick interval minutes")
	cmd.Flags().IntVar(&intervalSeconds, "interval-seconds", 0, "Additional tick interval seconds")
	_ = cmd.MarkFlagRequired("season")
	return cmd
}

func startCmd() *cobra.Command {
	return seasonOnlyCmd("start", "Activate a season's scheduler job", func(ctx context.Context, m *scheduler.Manager, seasonID string) error {
		return m.StartJob(ctx, seasonID)
	})
}

func pauseCmd() *cobra.Command {
	return seasonOnlyCmd("pause", "Pause a running season's job", func(ctx context.Context, m *scheduler.Manager, seasonID string) error {
		return m.PauseJob(ctx, seasonID)
	})
}

func resumeCmd() *cobra.Command {
	return seasonOnlyCmd("resume", "Resume a paused season's job", func(ctx context.Context, m *scheduler.Manager, seasonID string) error {
		return m.ResumeJob(ctx, seasonID)
	})
}

func stopCmd() *cobra.Command {
	return seasonOnlyCmd("stop", "Stop a season's job, keeping its config", func(ctx context.Context, m *scheduler.Manager, seasonID string) error {
		return m.StopJob(ctx, seasonID)
	})
}

func deleteCmd() *cobra.Command {
	return seasonOnlyCmd("delete", "Delete a season's config and run history", func(ctx context.Context, m *scheduler.Manager, seasonID string) error {
		return m.DeleteConfig(ctx, seasonID)
	})
}

func seasonOnlyCmd(use, short string, fn func(ctx context.Context, m *scheduler.Manager, seasonID string) error) *cobra.Command {
	var seasonID string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(ctx context.Context, m *scheduler.Manager) error {
				if err := fn(ctx, m, seasonID); err != nil {
					return err
				}
				logger.Info(use+" succeeded", "season_id", seasonID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&seasonID, "season", "", "Season id (required)")
	_ = cmd.MarkFlagRequired("season")
	return cmd
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every season's scheduler state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(ctx context.Context, m *scheduler.Manager) error {
				summaries, err := m.ListConfigs(ctx)
				if err != nil {
					return err
				}
				for _, s := range summaries {
					lastRun := "never"
					if s.LastRunAt != nil {
						lastRun = s.LastRunAt.Format("2006-01-02T15:04:05Z07:00")
					}
					fmt.Printf("%-12s %-10s last_run=%-25s status=%s\n", s.SeasonID, s.State, lastRun, s.LastRunStatus)
				}
				return nil
			})
		},
	}
	return cmd
}

func runsCmd() *cobra.Command {
	var seasonID string
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs for a season",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(ctx context.Context, m *scheduler.Manager) error {
				runs, err := m.ListRuns(ctx, seasonID, limit)
				if err != nil {
					return err
				}
				for _, r := range runs {
					fmt.Printf("run=%-6d status=%-8s fetched=%-4d new=%-4d started=%s\n",
						r.ID, r.Status, r.MatchesFetched, r.MatchesNew, r.StartedAt.Format("2006-01-02T15:04:05Z07:00"))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&seasonID, "season", "", "Season id (required)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Max rows to show")
	_ = cmd.MarkFlagRequired("season")
	return cmd
}

func parseDays(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	days := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("invalid day index %q: must be 0-6 (0=Mon..6=Sun)", p)
		}
		days = append(days, n)
	}
	return days, nil
}

// withManager handles config loading, DB connection, manager construction,
// and context cancellation common to every subcommand.
func withManager(fn func(ctx context.Context, m *scheduler.Manager) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	client := upstream.NewClient(cfg, logger)
	manager := scheduler.NewManager(pool.Pool, client, cfg.ShutdownGrace, logger)

	return fn(ctx, manager)
}
