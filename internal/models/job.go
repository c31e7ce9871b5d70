package models

import (
	"fmt"
	"time"
)

// Job statuses. A job is created RUNNING and mutated exactly once into a
// terminal state. Job rows are never deleted; they form the audit trail from
// which sync state is derived.
const (
	JobStatusRunning = "RUNNING"
	JobStatusSuccess = "SUCCESS"
	JobStatusPartial = "PARTIAL"
	JobStatusFailed  = "FAILED"
)

// Sync modes.
const (
	SyncModeFull        = "full"
	SyncModeIncremental = "incremental"
)

// SyncState is the per-platform view derived from the job log. It is never
// stored directly and never rolled back: only completed (SUCCESS or PARTIAL)
// jobs contribute to it.
type SyncState struct {
	Platform     string
	LastSyncedAt *time.Time // newest ingested item watchedAt, carried forward
	CompletedAt  *time.Time
	SyncMode     string
	LastFullAt   *time.Time // completion time of the most recent full run
}

// SyncJob is one append-only job log record.
type SyncJob struct {
	id           string
	sequence     int
	platform     string
	mode         string
	status       string
	itemsTotal   int
	itemsSuccess int
	itemsFailed  int
	message      string
	errorStack   string
	lastItemAt   *time.Time
	startedAt    time.Time
	completedAt  *time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

// NewSyncJob creates a RUNNING job for a platform in the given mode.
func NewSyncJob(sequence int, platform, mode string) *SyncJob {
	now := time.Now()
	return &SyncJob{
		sequence:  sequence,
		platform:  platform,
		mode:      mode,
		status:    JobStatusRunning,
		startedAt: now,
		createdAt: now,
		updatedAt: now,
	}
}

func (j *SyncJob) ID() string              { return j.id }
func (j *SyncJob) Sequence() int           { return j.sequence }
func (j *SyncJob) Platform() string        { return j.platform }
func (j *SyncJob) Mode() string            { return j.mode }
func (j *SyncJob) Status() string          { return j.status }
func (j *SyncJob) ItemsTotal() int         { return j.itemsTotal }
func (j *SyncJob) ItemsSuccess() int       { return j.itemsSuccess }
func (j *SyncJob) ItemsFailed() int        { return j.itemsFailed }
func (j *SyncJob) Message() string         { return j.message }
func (j *SyncJob) ErrorStack() string      { return j.errorStack }
func (j *SyncJob) LastItemAt() *time.Time  { return j.lastItemAt }
func (j *SyncJob) StartedAt() time.Time    { return j.startedAt }
func (j *SyncJob) CompletedAt() *time.Time { return j.completedAt }
func (j *SyncJob) CreatedAt() time.Time    { return j.createdAt }
func (j *SyncJob) UpdatedAt() time.Time    { return j.updatedAt }

func (j *SyncJob) SetID(id string)              { j.id = id }
func (j *SyncJob) SetStatus(s string)           { j.status = s }
func (j *SyncJob) SetItemsTotal(n int)          { j.itemsTotal = n }
func (j *SyncJob) SetItemsSuccess(n int)        { j.itemsSuccess = n }
func (j *SyncJob) SetItemsFailed(n int)         { j.itemsFailed = n }
func (j *SyncJob) SetMessage(m string)          { j.message = m }
func (j *SyncJob) SetErrorStack(s string)       { j.errorStack = s }
func (j *SyncJob) SetLastItemAt(t *time.Time)   { j.lastItemAt = t }
func (j *SyncJob) SetStartedAt(t time.Time)     { j.startedAt = t }
func (j *SyncJob) SetCompletedAt(t *time.Time)  { j.completedAt = t }
func (j *SyncJob) SetCreatedAt(t time.Time)     { j.createdAt = t }
func (j *SyncJob) SetUpdatedAt(t time.Time)     { j.updatedAt = t }

// Completed reports whether the job reached a data-bearing terminal state.
func (j *SyncJob) Completed() bool {
	return j.status == JobStatusSuccess || j.status == JobStatusPartial
}

// Validate checks platform, mode and status values.
func (j *SyncJob) Validate() error {
	if j.platform == "" {
		return fmt.Errorf("job platform is required")
	}
	switch j.mode {
	case SyncModeFull, SyncModeIncremental:
	default:
		return fmt.Errorf("invalid job mode: %s", j.mode)
	}
	switch j.status {
	case JobStatusRunning, JobStatusSuccess, JobStatusPartial, JobStatusFailed:
	default:
		return fmt.Errorf("invalid job status: %s", j.status)
	}
	return nil
}
