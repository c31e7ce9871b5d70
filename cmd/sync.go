package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"watchvault/internal/models"
	"watchvault/internal/tasks"
	"watchvault/internal/ui"
)

// SyncRun runs one sync sweep, or a single platform with --platform.
//
// A sweep always completes: individual platform failures are reported but do
// not abort the command. A single-platform run surfaces its failure as the
// command error.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	platform := cmd.String("platform")
	useUI := cmd.Bool("ui")
	useJSON := cmd.Bool("json")

	s, err := r.openStore(cmd.String("config"))
	if err != nil {
		return err
	}
	defer s.Close()

	if useUI && platform == "" {
		program := tea.NewProgram(ui.NewSyncModel(ctx, s.engine))
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run sync view: %w", err)
		}
		return nil
	}

	if platform != "" {
		job, err := s.engine.SyncPlatform(ctx, platform, nil)
		if err != nil {
			return err
		}
		return r.reportResults([]tasks.PlatformResult{{Platform: platform, Job: job}}, useJSON)
	}

	results := s.engine.SyncAll(ctx, nil)
	return r.reportResults(results, useJSON)
}

func (r *Runner) reportResults(results []tasks.PlatformResult, useJSON bool) error {
	if useJSON {
		rows := make([]map[string]any, 0, len(results))
		for _, result := range results {
			row := map[string]any{"platform": result.Platform, "skipped": result.Skipped}
			if result.Err != nil {
				row["error"] = result.Err.Error()
			}
			if result.Job != nil {
				row["status"] = result.Job.Status()
				row["mode"] = result.Job.Mode()
				row["items_success"] = result.Job.ItemsSuccess()
				row["items_failed"] = result.Job.ItemsFailed()
				row["message"] = result.Job.Message()
			}
			rows = append(rows, row)
		}
		return r.writeJSON(rows, true)
	}

	r.writePlainHeader("Sync Results")
	for _, result := range results {
		switch {
		case result.Skipped:
			r.writePlain("- %s: skipped (no valid credential)\n", result.Platform)
		case result.Err != nil:
			r.writePlain("✗ %s: %v\n", result.Platform, result.Err)
		default:
			r.writePlain("✓ %s [%s/%s]: %s\n",
				result.Platform, result.Job.Mode(), result.Job.Status(), result.Job.Message())
		}
	}
	return nil
}

// SyncSchedule runs recurring sweeps until interrupted.
func (r *Runner) SyncSchedule(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore(cmd.String("config"))
	if err != nil {
		return err
	}
	defer s.Close()

	hours := cmd.Int("every")
	if hours <= 0 {
		hours = s.config.Sync.ScheduleIntervalHours
	}
	interval := time.Duration(hours) * time.Hour

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := tasks.NewScheduler(s.engine, interval, r.logger)
	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// SyncStatus shows per-platform sync state derived from the job log.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	platform := cmd.String("platform")
	useJSON := cmd.Bool("json")

	s, err := r.openStore(cmd.String("config"))
	if err != nil {
		return err
	}
	defer s.Close()

	names := s.engine.Platforms()
	if platform != "" {
		names = []string{platform}
	}

	type statusRow struct {
		Platform     string     `json:"platform"`
		Items        int        `json:"items"`
		Running      bool       `json:"running"`
		SyncMode     string     `json:"last_mode,omitempty"`
		CompletedAt  *time.Time `json:"last_completed_at,omitempty"`
		LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
		LastFullAt   *time.Time `json:"last_full_at,omitempty"`
	}

	var rows []statusRow
	for _, name := range names {
		state, err := s.jobs.SyncStateFor(name)
		if err != nil {
			return fmt.Errorf("failed to read sync state for %s: %w", name, err)
		}
		count, err := s.items.Count(name)
		if err != nil {
			return fmt.Errorf("failed to count items for %s: %w", name, err)
		}
		running, err := s.jobs.HasRunning(name)
		if err != nil {
			return fmt.Errorf("failed to check running jobs for %s: %w", name, err)
		}

		rows = append(rows, statusRow{
			Platform:     name,
			Items:        count,
			Running:      running,
			SyncMode:     state.SyncMode,
			CompletedAt:  state.CompletedAt,
			LastSyncedAt: state.LastSyncedAt,
			LastFullAt:   state.LastFullAt,
		})
	}

	if useJSON {
		return r.writeJSON(rows, true)
	}

	r.writePlainHeader("Sync Status")
	for _, row := range rows {
		r.writePlain("%s: %d items", row.Platform, row.Items)
		if row.Running {
			r.writePlain(" [%s]", models.JobStatusRunning)
		}
		if row.CompletedAt == nil {
			r.writePlain(" (never synced)\n")
			continue
		}
		r.writePlain(", last %s sync %s", row.SyncMode, row.CompletedAt.Format(time.RFC3339))
		if row.LastSyncedAt != nil {
			r.writePlain(", newest item %s", row.LastSyncedAt.Format(time.RFC3339))
		}
		r.writePlain("\n")
	}
	return nil
}
