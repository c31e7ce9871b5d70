package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Platform string // Platform the update belongs to
	Phase    Phase  // Run phase
	Step     int    // Current step number within phase
	Total    int    // Total steps in this phase (0 when unknown)
	Message  string // Human-readable message for display
	Data     any    // Optional phase-specific data for advanced UIs
}

// Run phase enumeration
type Phase int

const (
	DecideMode Phase = iota
	FetchPages
	CheckExisting
	Persist
	Finalize
)

func (p Phase) String() string {
	switch p {
	case DecideMode:
		return "decide_mode"
	case FetchPages:
		return "fetch_pages"
	case CheckExisting:
		return "check_existing"
	case Persist:
		return "persist"
	case Finalize:
		return "finalize"
	default:
		return ""
	}
}

func decideModeUpdate(platform, mode string) ProgressUpdate {
	return ProgressUpdate{
		Platform: platform,
		Phase:    DecideMode,
		Step:     1,
		Total:    1,
		Message:  fmt.Sprintf("Starting %s sync...", mode),
	}
}

func fetchPageUpdate(platform string, page, maxPages, count int) ProgressUpdate {
	return ProgressUpdate{
		Platform: platform,
		Phase:    FetchPages,
		Step:     page,
		Total:    maxPages,
		Message:  fmt.Sprintf("[%d/%d] Fetched page (%d items)", page, maxPages, count),
	}
}

func earlyStopUpdate(platform string, page int) ProgressUpdate {
	return ProgressUpdate{
		Platform: platform,
		Phase:    FetchPages,
		Step:     page,
		Total:    page,
		Message:  "Reached already-ingested history, stopping early",
	}
}

func persistUpdate(platform string, step, total int) ProgressUpdate {
	return ProgressUpdate{
		Platform: platform,
		Phase:    Persist,
		Step:     step,
		Total:    total,
		Message:  fmt.Sprintf("[%d/%d] Saving items...", step, total),
	}
}

func finalizeUpdate(platform, status string, success, failed int) ProgressUpdate {
	return ProgressUpdate{
		Platform: platform,
		Phase:    Finalize,
		Step:     1,
		Total:    1,
		Message:  fmt.Sprintf("%s: %d saved, %d failed", status, success, failed),
	}
}
