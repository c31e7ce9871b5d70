package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"watchvault/internal/shared"
)

// HistoryList prints stored watch history, newest watch first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	platform := cmd.String("platform")
	sinceArg := cmd.String("since")
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")

	criteria := map[string]any{"platform": platform, "limit": limit}
	if sinceArg != "" {
		since, err := parseSince(sinceArg)
		if err != nil {
			return err
		}
		criteria["since"] = since
	}

	s, err := r.openStore(cmd.String("config"))
	if err != nil {
		return err
	}
	defer s.Close()

	items, err := s.items.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if useJSON {
		rows := make([]map[string]any, 0, len(items))
		for _, item := range items {
			dto := item.Item()
			row := map[string]any{
				"platform":    dto.Platform,
				"external_id": dto.ExternalID,
				"title":       dto.Title,
				"watched_at":  dto.WatchedAt,
			}
			if dto.URL != "" {
				row["url"] = dto.URL
			}
			if dto.Progress != nil {
				row["progress"] = *dto.Progress
			}
			if dto.Rating != nil {
				row["rating"] = *dto.Rating
			}
			rows = append(rows, row)
		}
		return r.writeJSON(rows, true)
	}

	r.writePlainHeader("Watch History")
	if len(items) == 0 {
		r.writePlain("No items found.\n")
		return nil
	}

	for _, item := range items {
		dto := item.Item()
		r.writePlain("%s  %-10s %s\n",
			dto.WatchedAt.Format("2006-01-02 15:04"), dto.Platform, dto.Title)
	}
	r.writePlain("\n%d items\n", len(items))
	return nil
}

// parseSince accepts RFC3339 or a bare date.
func parseSince(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: since %q is not RFC3339 or YYYY-MM-DD", shared.ErrInvalidArgument, value)
}
