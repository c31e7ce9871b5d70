// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"watchvault/internal/models"
	"watchvault/internal/platforms"
	"watchvault/internal/shared"
)

// MockAdapter is a test double for [platforms.Adapter]. Pages are served in
// order; a nil entry in Errs lets the corresponding page succeed.
type MockAdapter struct {
	PlatformName string
	Pages        []platforms.Page
	Errs         []error
	Delay        time.Duration
	FetchCalls   int
}

func (m *MockAdapter) Name() string {
	if m.PlatformName == "" {
		return "mock"
	}
	return m.PlatformName
}

func (m *MockAdapter) FetchPage(ctx context.Context, auth platforms.Auth, cursor platforms.Cursor) (*platforms.Page, error) {
	idx := m.FetchCalls
	m.FetchCalls++
	if idx < len(m.Errs) && m.Errs[idx] != nil {
		return nil, m.Errs[idx]
	}
	if idx >= len(m.Pages) {
		return &platforms.Page{Done: true}, nil
	}
	page := m.Pages[idx]
	return &page, nil
}

// Normalize passes through [models.WatchItem] values and fails on anything
// else, so tests can inject malformed records as plain strings.
func (m *MockAdapter) Normalize(raw platforms.RawItem) (models.WatchItem, error) {
	item, ok := raw.(models.WatchItem)
	if !ok {
		return models.WatchItem{}, errors.New("unrecognized record shape")
	}
	return item, nil
}

func (m *MockAdapter) StartCursor(since time.Time) platforms.Cursor {
	return platforms.Cursor{Page: 1, Since: since.Unix()}
}

func (m *MockAdapter) PageDelay() time.Duration {
	if m.Delay <= 0 {
		return time.Millisecond
	}
	return m.Delay
}

// RawItems wraps watch items for a mock page's Raw slice.
func RawItems(items ...models.WatchItem) []platforms.RawItem {
	raw := make([]platforms.RawItem, len(items))
	for i, item := range items {
		raw[i] = item
	}
	return raw
}

// Item builds a minimal valid watch item for a mock page.
func Item(platform, externalID string, watchedAt time.Time) models.WatchItem {
	return models.WatchItem{
		Platform:   platform,
		ExternalID: externalID,
		Title:      "title " + externalID,
		WatchedAt:  watchedAt,
	}
}

// MustOpenDB opens a migrated in-memory database scoped to the test.
func MustOpenDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}
