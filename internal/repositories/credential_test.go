package repositories

import (
	"errors"
	"testing"

	"watchvault/internal/models"
	"watchvault/internal/shared"
)

func TestCredentialRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)
		cred := models.NewCredential(0, "bilibili", "cookie", "iv:tag:ct", map[string]string{"note": "main account"})

		if err := repo.Create(cred); err != nil {
			t.Fatalf("failed to create credential: %v", err)
		}
		if cred.ID() == "" {
			t.Error("credential ID should be set after creation")
		}
	})

	t.Run("Create Rejects Invalid", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)
		cred := models.NewCredential(0, "", "cookie", "iv:tag:ct", nil)
		if err := repo.Create(cred); err == nil {
			t.Error("expected validation error for credential without platform")
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)
		cred := models.NewCredential(0, "trakt", "token", "iv:tag:ct", map[string]string{"client_id": "abc"})
		if err := repo.Create(cred); err != nil {
			t.Fatalf("failed to create credential: %v", err)
		}

		retrieved, err := repo.Get(cred.ID())
		if err != nil {
			t.Fatalf("failed to get credential: %v", err)
		}
		if retrieved.Platform() != "trakt" || retrieved.Type() != "token" {
			t.Errorf("unexpected credential: %s/%s", retrieved.Platform(), retrieved.Type())
		}
		if retrieved.Metadata()["client_id"] != "abc" {
			t.Errorf("expected metadata to roundtrip, got %v", retrieved.Metadata())
		}
	})

	t.Run("GetValid", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)

		if _, err := repo.GetValid("steam"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}

		old := models.NewCredential(0, "steam", "api_key", "iv:tag:old", nil)
		if err := repo.Create(old); err != nil {
			t.Fatalf("failed to create credential: %v", err)
		}
		newer := models.NewCredential(0, "steam", "api_key", "iv:tag:new", nil)
		if err := repo.Create(newer); err != nil {
			t.Fatalf("failed to create credential: %v", err)
		}

		got, err := repo.GetValid("steam")
		if err != nil {
			t.Fatalf("failed to get valid credential: %v", err)
		}
		if got.ID() != newer.ID() {
			t.Error("expected the most recent valid credential")
		}

		newer.SetIsValid(false)
		if err := repo.Update(newer); err != nil {
			t.Fatalf("failed to invalidate credential: %v", err)
		}

		got, err = repo.GetValid("steam")
		if err != nil {
			t.Fatalf("failed to get valid credential: %v", err)
		}
		if got.ID() != old.ID() {
			t.Error("expected invalidated credential to be skipped")
		}
	})

	t.Run("Soft Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)
		cred := models.NewCredential(0, "bilibili", "cookie", "iv:tag:ct", nil)
		if err := repo.Create(cred); err != nil {
			t.Fatalf("failed to create credential: %v", err)
		}

		if err := repo.Delete(cred.ID()); err != nil {
			t.Fatalf("failed to delete credential: %v", err)
		}

		if _, err := repo.Get(cred.ID()); err == nil {
			t.Error("expected error when getting deleted credential")
		}
		if _, err := repo.GetValid("bilibili"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("deleted credential must not satisfy GetValid, got %v", err)
		}
		if err := repo.Delete(cred.ID()); err == nil {
			t.Error("expected error when deleting twice")
		}

		// The row itself survives for audit.
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM credentials").Scan(&count); err != nil {
			t.Fatalf("failed to count rows: %v", err)
		}
		if count != 1 {
			t.Errorf("expected soft-deleted row to remain, got %d rows", count)
		}
	})

	t.Run("MarkUsed And MarkFailure", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)
		cred := models.NewCredential(0, "trakt", "token", "iv:tag:ct", nil)
		if err := repo.Create(cred); err != nil {
			t.Fatalf("failed to create credential: %v", err)
		}

		if err := repo.MarkUsed(cred); err != nil {
			t.Fatalf("failed to mark used: %v", err)
		}
		if err := repo.MarkFailure(cred); err != nil {
			t.Fatalf("failed to mark failure: %v", err)
		}

		retrieved, err := repo.Get(cred.ID())
		if err != nil {
			t.Fatalf("failed to get credential: %v", err)
		}
		if retrieved.UsageCount() != 1 {
			t.Errorf("expected usage count 1, got %d", retrieved.UsageCount())
		}
		if retrieved.FailureCount() != 1 {
			t.Errorf("expected failure count 1, got %d", retrieved.FailureCount())
		}
		if retrieved.LastUsedAt() == nil || retrieved.LastValidatedAt() == nil {
			t.Error("expected use timestamps to be recorded")
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db)
		for _, platform := range []string{"bilibili", "trakt"} {
			cred := models.NewCredential(0, platform, "token", "iv:tag:ct", nil)
			if err := repo.Create(cred); err != nil {
				t.Fatalf("failed to create credential: %v", err)
			}
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list credentials: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 credentials, got %d", len(all))
		}

		filtered, err := repo.List(map[string]any{"platform": "trakt"})
		if err != nil {
			t.Fatalf("failed to list credentials: %v", err)
		}
		if len(filtered) != 1 || filtered[0].Platform() != "trakt" {
			t.Errorf("expected only trakt credentials, got %d", len(filtered))
		}
	})
}
