package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"watchvault/internal/models"
	"watchvault/internal/shared"
)

// JobRepository persists the append-only sync job log.
//
// Jobs are never deleted. Terminal status is written exactly once via Update;
// per-platform sync state is derived by reading completed jobs back.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new RUNNING job with generated ID and sequence
func (r *JobRepository) Create(job *models.SyncJob) error {
	sequence, err := NextSequence(r.db, "jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	job.SetID(id)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO jobs (
			id, sequence, platform, mode, status, items_total, items_success,
			items_failed, message, error_stack, last_item_at, started_at,
			completed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		job.Platform(),
		job.Mode(),
		job.Status(),
		job.ItemsTotal(),
		job.ItemsSuccess(),
		job.ItemsFailed(),
		nullString(job.Message()),
		nullString(job.ErrorStack()),
		job.LastItemAt(),
		job.StartedAt(),
		job.CompletedAt(),
		job.CreatedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// Get retrieves a job by ID
func (r *JobRepository) Get(id string) (*models.SyncJob, error) {
	row := r.db.QueryRow(selectJobs+" WHERE id = ?", id)
	job, err := scanJob(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found")
	}
	return job, err
}

// Update writes a job's terminal state back to the log
func (r *JobRepository) Update(job *models.SyncJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	job.SetUpdatedAt(now)

	query := `
		UPDATE jobs
		SET status = ?, items_total = ?, items_success = ?, items_failed = ?,
			message = ?, error_stack = ?, last_item_at = ?, completed_at = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		job.Status(),
		job.ItemsTotal(),
		job.ItemsSuccess(),
		job.ItemsFailed(),
		nullString(job.Message()),
		nullString(job.ErrorStack()),
		job.LastItemAt(),
		job.CompletedAt(),
		now,
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job not found: %s", job.ID())
	}

	return nil
}

// List retrieves jobs matching the given criteria, newest first
func (r *JobRepository) List(criteria map[string]any) ([]*models.SyncJob, error) {
	query := selectJobs + " WHERE 1 = 1"
	args := []any{}

	if platform, ok := criteria["platform"].(string); ok && platform != "" {
		query += " AND platform = ?"
		args = append(args, platform)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.SyncJob
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// HasRunning reports whether a RUNNING job exists for the platform. Used as
// the advisory guard against concurrent runs for the same platform.
func (r *JobRepository) HasRunning(platform string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM jobs WHERE platform = ? AND status = ?)",
		platform, models.JobStatusRunning,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check running jobs: %w", err)
	}
	return exists, nil
}

// SyncStateFor derives the platform's sync state from the job log.
// Only completed (SUCCESS or PARTIAL) jobs contribute; a fully failed run
// never moves the state.
func (r *JobRepository) SyncStateFor(platform string) (*models.SyncState, error) {
	state := &models.SyncState{Platform: platform}

	last, err := r.lastCompleted(platform, "")
	if err != nil {
		return nil, err
	}
	if last == nil {
		return state, nil
	}

	state.SyncMode = last.Mode()
	state.CompletedAt = last.CompletedAt()
	state.LastSyncedAt = last.LastItemAt()

	lastFull, err := r.lastCompleted(platform, models.SyncModeFull)
	if err != nil {
		return nil, err
	}
	if lastFull != nil {
		state.LastFullAt = lastFull.CompletedAt()
	}

	return state, nil
}

// lastCompleted returns the newest completed job for a platform, optionally
// restricted to one mode. Returns nil when none exists.
func (r *JobRepository) lastCompleted(platform, mode string) (*models.SyncJob, error) {
	query := selectJobs + " WHERE platform = ? AND status IN (?, ?)"
	args := []any{platform, models.JobStatusSuccess, models.JobStatusPartial}

	if mode != "" {
		query += " AND mode = ?"
		args = append(args, mode)
	}

	query += " ORDER BY sequence DESC LIMIT 1"

	row := r.db.QueryRow(query, args...)
	job, err := scanJob(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

const selectJobs = `
	SELECT id, sequence, platform, mode, status, items_total, items_success,
		items_failed, message, error_stack, last_item_at, started_at,
		completed_at, created_at, updated_at
	FROM jobs
`

// scanJob scans one jobs row via the given scan function.
func scanJob(scan func(dest ...any) error) (*models.SyncJob, error) {
	var (
		id           string
		sequence     int
		platform     string
		mode         string
		status       string
		itemsTotal   int
		itemsSuccess int
		itemsFailed  int
		message      sql.NullString
		errorStack   sql.NullString
		lastItemAt   sql.NullTime
		startedAt    time.Time
		completedAt  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := scan(
		&id, &sequence, &platform, &mode, &status, &itemsTotal, &itemsSuccess,
		&itemsFailed, &message, &errorStack, &lastItemAt, &startedAt,
		&completedAt, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job := models.NewSyncJob(sequence, platform, mode)
	job.SetID(id)
	job.SetStatus(status)
	job.SetItemsTotal(itemsTotal)
	job.SetItemsSuccess(itemsSuccess)
	job.SetItemsFailed(itemsFailed)
	job.SetStartedAt(startedAt)
	job.SetCreatedAt(createdAt)
	job.SetUpdatedAt(updatedAt)
	if message.Valid {
		job.SetMessage(message.String)
	}
	if errorStack.Valid {
		job.SetErrorStack(errorStack.String)
	}
	if lastItemAt.Valid {
		job.SetLastItemAt(&lastItemAt.Time)
	}
	if completedAt.Valid {
		job.SetCompletedAt(&completedAt.Time)
	}

	return job, nil
}

// nullString converts an empty string to NULL for storage.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
