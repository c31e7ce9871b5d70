// Trakt implementation of [Adapter]
//
// History API per https://trakt.docs.apiary.io/#reference/sync/get-history
package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"watchvault/internal/models"
	"watchvault/internal/shared"
	"golang.org/x/oauth2"
)

const traktBaseURL = "https://api.trakt.tv"

type traktIDs struct {
	Trakt int64  `json:"trakt"`
	Slug  string `json:"slug"`
	IMDB  string `json:"imdb"`
}

type traktMovie struct {
	Title string   `json:"title"`
	Year  int      `json:"year"`
	IDs   traktIDs `json:"ids"`
}

type traktShow struct {
	Title string   `json:"title"`
	Year  int      `json:"year"`
	IDs   traktIDs `json:"ids"`
}

type traktEpisode struct {
	Season int      `json:"season"`
	Number int      `json:"number"`
	Title  string   `json:"title"`
	IDs    traktIDs `json:"ids"`
}

// TraktHistoryItem is one entry of the /sync/history feed.
type TraktHistoryItem struct {
	ID        int64         `json:"id"`
	WatchedAt time.Time     `json:"watched_at"`
	Action    string        `json:"action"`
	Type      string        `json:"type"` // movie or episode
	Movie     *traktMovie   `json:"movie,omitempty"`
	Show      *traktShow    `json:"show,omitempty"`
	Episode   *traktEpisode `json:"episode,omitempty"`
}

// TraktAdapter fetches Trakt watch history with OAuth2 bearer auth and a
// page-number cursor.
type TraktAdapter struct {
	baseURL  string
	clientID string
	pageSize int
	delay    time.Duration
	// base transport for the oauth2-wrapped client; nil means default
	transport http.RoundTripper
}

// TraktOpts contains configuration options for the Trakt adapter.
type TraktOpts struct {
	BaseURL   string
	ClientID  string
	PageSize  int
	Delay     time.Duration
	Transport http.RoundTripper
}

// NewTraktAdapter creates a Trakt adapter with the given options.
func NewTraktAdapter(opts TraktOpts) *TraktAdapter {
	if opts.BaseURL == "" {
		opts.BaseURL = traktBaseURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}
	return &TraktAdapter{
		baseURL:   opts.BaseURL,
		clientID:  opts.ClientID,
		pageSize:  opts.PageSize,
		delay:     opts.Delay,
		transport: opts.Transport,
	}
}

func (a *TraktAdapter) Name() string { return "trakt" }

func (a *TraktAdapter) PageDelay() time.Duration { return a.delay }

// StartCursor converts the lower time bound into the API's start_at
// parameter and begins at page 1.
func (a *TraktAdapter) StartCursor(since time.Time) Cursor {
	cursor := Cursor{Page: 1}
	if !since.IsZero() {
		cursor.Since = since.Unix()
	}
	return cursor
}

// FetchPage retrieves one page of watch history. auth.Secret is the OAuth2
// access token; the API client ID comes from credential metadata (falling
// back to the configured one).
func (a *TraktAdapter) FetchPage(ctx context.Context, auth Auth, cursor Cursor) (*Page, error) {
	if auth.Secret == "" {
		return nil, fmt.Errorf("%w: missing access token", shared.ErrMissingCredentials)
	}

	clientID := auth.Metadata["client_id"]
	if clientID == "" {
		clientID = a.clientID
	}
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing trakt client_id", shared.ErrMissingCredentials)
	}

	page := cursor.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(a.pageSize))
	if cursor.Since > 0 {
		params.Set("start_at", time.Unix(cursor.Since, 0).UTC().Format(time.RFC3339))
	}

	apiURL := a.baseURL + "/sync/history?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", "2")
	req.Header.Set("trakt-api-key", clientID)

	resp, err := a.client(ctx, auth.Secret).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAdapterFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: trakt API status %d", shared.ErrAdapterFetch, resp.StatusCode)
	}

	var items []TraktHistoryItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	pageCount, _ := strconv.Atoi(resp.Header.Get("X-Pagination-Page-Count"))

	result := &Page{
		NextCursor: Cursor{Page: page + 1, Since: cursor.Since},
		Done:       pageCount > 0 && page >= pageCount,
	}
	for _, item := range items {
		result.Raw = append(result.Raw, item)
	}

	return result, nil
}

// client wraps the bearer token into an HTTP client via oauth2.
func (a *TraktAdapter) client(ctx context.Context, token string) *http.Client {
	if a.transport != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: a.transport})
	}
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return oauth2.NewClient(ctx, source)
}

// Normalize converts a TraktHistoryItem into the canonical WatchItem.
func (a *TraktAdapter) Normalize(raw RawItem) (models.WatchItem, error) {
	entry, ok := raw.(TraktHistoryItem)
	if !ok {
		return models.WatchItem{}, fmt.Errorf("%w: unexpected raw type %T", shared.ErrInvalidInput, raw)
	}

	item := models.WatchItem{
		Platform:  a.Name(),
		WatchedAt: entry.WatchedAt,
		Metadata:  map[string]any{"action": entry.Action, "type": entry.Type},
	}

	switch entry.Type {
	case "movie":
		if entry.Movie == nil {
			return models.WatchItem{}, fmt.Errorf("%w: movie entry without movie body", shared.ErrInvalidInput)
		}
		item.ExternalID = fmt.Sprintf("movie-%d", entry.Movie.IDs.Trakt)
		item.Title = entry.Movie.Title
		item.URL = fmt.Sprintf("https://trakt.tv/movies/%s", entry.Movie.IDs.Slug)
		item.Metadata["year"] = entry.Movie.Year
		item.Metadata["imdb"] = entry.Movie.IDs.IMDB
	case "episode":
		if entry.Episode == nil || entry.Show == nil {
			return models.WatchItem{}, fmt.Errorf("%w: episode entry without show body", shared.ErrInvalidInput)
		}
		item.ExternalID = fmt.Sprintf("episode-%d", entry.Episode.IDs.Trakt)
		item.Title = fmt.Sprintf("%s S%02dE%02d %s", entry.Show.Title, entry.Episode.Season, entry.Episode.Number, entry.Episode.Title)
		item.URL = fmt.Sprintf("https://trakt.tv/shows/%s/seasons/%d/episodes/%d", entry.Show.IDs.Slug, entry.Episode.Season, entry.Episode.Number)
		item.Metadata["show"] = entry.Show.Title
	default:
		return models.WatchItem{}, fmt.Errorf("%w: unsupported history type %q", shared.ErrInvalidInput, entry.Type)
	}

	return item, nil
}
