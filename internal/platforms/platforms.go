// package platforms defines interface Adapter for external history APIs
//
// bilibili (video), Trakt (movies/shows), Steam (games)
package platforms

import (
	"context"
	"time"

	"watchvault/internal/models"
)

// Auth carries the decrypted secret and platform-specific metadata an adapter
// needs to call its API. The secret never touches persistent storage in this
// form.
type Auth struct {
	Secret   string            // decrypted credential value (cookie, token, API key)
	Metadata map[string]string // platform-specific, e.g. external user ID
}

// Cursor is the pagination position for a fetch. Each adapter owns its own
// cursor semantics and uses only the fields it needs: Page for page-numbered
// APIs, Offset for offset-based ones, Max/ViewAt for timestamp cursors.
type Cursor struct {
	Page   int
	Offset int
	Max    int64
	ViewAt int64
	Since  int64 // unix lower bound for APIs that accept one server-side
}

// RawItem is one unnormalized history entry. Each adapter returns its own
// concrete type and type-switches on it in Normalize.
type RawItem any

// Page is the result of fetching one page of history.
type Page struct {
	Raw        []RawItem
	NextCursor Cursor
	Done       bool // authoritative end-of-history signal from the API
}

// Adapter is implemented once per external platform. FetchPage retrieves one
// page of raw history; Normalize is pure and converts a raw entry into the
// canonical WatchItem shape.
type Adapter interface {
	// Name returns the platform identifier (e.g. "bilibili").
	Name() string

	// FetchPage retrieves one page of raw history at the given cursor.
	FetchPage(ctx context.Context, auth Auth, cursor Cursor) (*Page, error)

	// Normalize converts a raw entry into a canonical WatchItem.
	Normalize(raw RawItem) (models.WatchItem, error)

	// StartCursor returns the initial cursor for a run whose lower time
	// bound is since. A zero since means full history.
	StartCursor(since time.Time) Cursor

	// PageDelay is the fixed delay between page requests. These are
	// third-party APIs without published rate limits; a conservative fixed
	// delay is the failure-avoidance strategy.
	PageDelay() time.Duration
}
