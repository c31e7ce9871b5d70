package repositories

import (
	"testing"
	"time"

	"watchvault/internal/models"
)

func completeJob(t *testing.T, repo *JobRepository, job *models.SyncJob, status string, lastItemAt *time.Time) {
	t.Helper()
	completed := time.Now()
	job.SetStatus(status)
	job.SetLastItemAt(lastItemAt)
	job.SetCompletedAt(&completed)
	if err := repo.Update(job); err != nil {
		t.Fatalf("failed to complete job: %v", err)
	}
}

func TestJobRepository(t *testing.T) {
	t.Run("Create Starts Running", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewJobRepository(db)
		job := models.NewSyncJob(0, "bilibili", models.SyncModeFull)

		if err := repo.Create(job); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}
		if job.ID() == "" {
			t.Error("job ID should be set after creation")
		}

		retrieved, err := repo.Get(job.ID())
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}
		if retrieved.Status() != models.JobStatusRunning {
			t.Errorf("expected RUNNING status, got %s", retrieved.Status())
		}
	})

	t.Run("Update Writes Terminal State", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewJobRepository(db)
		job := models.NewSyncJob(0, "bilibili", models.SyncModeFull)
		if err := repo.Create(job); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}

		lastItem := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		job.SetItemsTotal(10)
		job.SetItemsSuccess(9)
		job.SetItemsFailed(1)
		job.SetMessage("2 pages fetched, 9 items saved, 1 failed")
		completeJob(t, repo, job, models.JobStatusPartial, &lastItem)

		retrieved, err := repo.Get(job.ID())
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}
		if retrieved.Status() != models.JobStatusPartial {
			t.Errorf("expected PARTIAL, got %s", retrieved.Status())
		}
		if retrieved.ItemsSuccess() != 9 || retrieved.ItemsFailed() != 1 {
			t.Errorf("expected counters 9/1, got %d/%d", retrieved.ItemsSuccess(), retrieved.ItemsFailed())
		}
		if retrieved.LastItemAt() == nil || !retrieved.LastItemAt().Equal(lastItem) {
			t.Errorf("expected last item timestamp to persist, got %v", retrieved.LastItemAt())
		}
		if retrieved.CompletedAt() == nil {
			t.Error("expected completed_at to be set")
		}
	})

	t.Run("HasRunning", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewJobRepository(db)

		running, err := repo.HasRunning("trakt")
		if err != nil {
			t.Fatalf("failed to check running: %v", err)
		}
		if running {
			t.Error("expected no running jobs on fresh database")
		}

		job := models.NewSyncJob(0, "trakt", models.SyncModeIncremental)
		if err := repo.Create(job); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}

		running, err = repo.HasRunning("trakt")
		if err != nil {
			t.Fatalf("failed to check running: %v", err)
		}
		if !running {
			t.Error("expected running job to be detected")
		}

		other, err := repo.HasRunning("steam")
		if err != nil {
			t.Fatalf("failed to check running: %v", err)
		}
		if other {
			t.Error("running guard must be scoped per platform")
		}

		completeJob(t, repo, job, models.JobStatusSuccess, nil)

		running, err = repo.HasRunning("trakt")
		if err != nil {
			t.Fatalf("failed to check running: %v", err)
		}
		if running {
			t.Error("expected no running jobs after completion")
		}
	})

	t.Run("SyncStateFor Empty", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewJobRepository(db)
		state, err := repo.SyncStateFor("bilibili")
		if err != nil {
			t.Fatalf("failed to read sync state: %v", err)
		}
		if state.CompletedAt != nil || state.LastSyncedAt != nil {
			t.Errorf("expected empty state for unsynced platform, got %+v", state)
		}
	})

	t.Run("SyncStateFor Derives From Completed Jobs", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewJobRepository(db)
		itemAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		full := models.NewSyncJob(0, "bilibili", models.SyncModeFull)
		if err := repo.Create(full); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}
		completeJob(t, repo, full, models.JobStatusSuccess, &itemAt)

		laterItemAt := itemAt.Add(2 * time.Hour)
		incr := models.NewSyncJob(0, "bilibili", models.SyncModeIncremental)
		if err := repo.Create(incr); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}
		completeJob(t, repo, incr, models.JobStatusPartial, &laterItemAt)

		state, err := repo.SyncStateFor("bilibili")
		if err != nil {
			t.Fatalf("failed to read sync state: %v", err)
		}

		if state.SyncMode != models.SyncModeIncremental {
			t.Errorf("expected last mode incremental, got %s", state.SyncMode)
		}
		if state.LastSyncedAt == nil || !state.LastSyncedAt.Equal(laterItemAt) {
			t.Errorf("expected last synced at %v, got %v", laterItemAt, state.LastSyncedAt)
		}
		if state.LastFullAt == nil {
			t.Error("expected last full timestamp from the full job")
		}
	})

	t.Run("Failed Jobs Never Move State", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewJobRepository(db)
		itemAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		ok := models.NewSyncJob(0, "steam", models.SyncModeFull)
		if err := repo.Create(ok); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}
		completeJob(t, repo, ok, models.JobStatusSuccess, &itemAt)

		failedItemAt := itemAt.Add(3 * time.Hour)
		failed := models.NewSyncJob(0, "steam", models.SyncModeIncremental)
		if err := repo.Create(failed); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}
		completeJob(t, repo, failed, models.JobStatusFailed, &failedItemAt)

		state, err := repo.SyncStateFor("steam")
		if err != nil {
			t.Fatalf("failed to read sync state: %v", err)
		}
		if state.SyncMode != models.SyncModeFull {
			t.Errorf("expected failed run to be ignored, got mode %s", state.SyncMode)
		}
		if state.LastSyncedAt == nil || !state.LastSyncedAt.Equal(itemAt) {
			t.Errorf("expected last synced at %v, got %v", itemAt, state.LastSyncedAt)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewJobRepository(db)
		for range 3 {
			job := models.NewSyncJob(0, "trakt", models.SyncModeFull)
			if err := repo.Create(job); err != nil {
				t.Fatalf("failed to create job: %v", err)
			}
			completeJob(t, repo, job, models.JobStatusSuccess, nil)
		}

		jobs, err := repo.List(map[string]any{"platform": "trakt", "limit": 2})
		if err != nil {
			t.Fatalf("failed to list jobs: %v", err)
		}
		if len(jobs) != 2 {
			t.Errorf("expected 2 jobs, got %d", len(jobs))
		}

		none, err := repo.List(map[string]any{"status": models.JobStatusFailed})
		if err != nil {
			t.Fatalf("failed to list jobs: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("expected no failed jobs, got %d", len(none))
		}
	})
}
