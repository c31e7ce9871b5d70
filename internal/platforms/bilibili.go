// bilibili implementation of [Adapter]
//
// History cursor API per https://api.bilibili.com/x/web-interface/history/cursor
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
)

const bilibiliBaseURL = "https://api.bilibili.com"

// BilibiliCursor is the opaque paging cursor bilibili returns with each page.
type BilibiliCursor struct {
	Max    int64 `json:"max"`
	ViewAt int64 `json:"view_at"`
	PS     int   `json:"ps"`
}

type bilibiliHistoryRef struct {
	OID      int64  `json:"oid"`
	BVID     string `json:"bvid"`
	Business string `json:"business"`
}

// BilibiliHistoryItem is one entry of the watch history feed.
type BilibiliHistoryItem struct {
	Title      string             `json:"title"`
	Cover      string             `json:"cover"`
	URI        string             `json:"uri"`
	History    bilibiliHistoryRef `json:"history"`
	ViewAt     int64              `json:"view_at"`
	Progress   int64              `json:"progress"` // seconds watched, -1 when finished
	Duration   int64              `json:"duration"` // seconds
	AuthorName string             `json:"author_name"`
}

type bilibiliHistoryData struct {
	Cursor BilibiliCursor        `json:"cursor"`
	List   []BilibiliHistoryItem `json:"list"`
}

type bilibiliResponse struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Data    bilibiliHistoryData `json:"data"`
}

// BilibiliAdapter fetches bilibili watch history with SESSDATA cookie auth
// and a descending timestamp cursor.
type BilibiliAdapter struct {
	baseURL    string
	pageSize   int
	delay      time.Duration
	httpClient *http.Client
}

// BilibiliOpts contains configuration options for the bilibili adapter.
type BilibiliOpts struct {
	BaseURL    string
	PageSize   int
	Delay      time.Duration
	HTTPClient *http.Client
}

// NewBilibiliAdapter creates a bilibili adapter with the given options.
func NewBilibiliAdapter(opts BilibiliOpts) *BilibiliAdapter {
	if opts.BaseURL == "" {
		opts.BaseURL = bilibiliBaseURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 30
	}
	if opts.Delay <= 0 {
		opts.Delay = 2 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &BilibiliAdapter{
		baseURL:    opts.BaseURL,
		pageSize:   opts.PageSize,
		delay:      opts.Delay,
		httpClient: opts.HTTPClient,
	}
}

func (a *BilibiliAdapter) Name() string { return "bilibili" }

func (a *BilibiliAdapter) PageDelay() time.Duration { return a.delay }

// StartCursor returns the newest-first starting position. The history API
// always pages backwards from the present; the lower bound is enforced by
// the caller's filtering, not the cursor.
func (a *BilibiliAdapter) StartCursor(since time.Time) Cursor {
	return Cursor{}
}

// FetchPage retrieves one page of watch history. auth.Secret is the SESSDATA
// cookie value.
func (a *BilibiliAdapter) FetchPage(ctx context.Context, auth Auth, cursor Cursor) (*Page, error) {
	if auth.Secret == "" {
		return nil, fmt.Errorf("%w: missing SESSDATA", shared.ErrMissingCredentials)
	}

	params := url.Values{}
	params.Set("ps", strconv.Itoa(a.pageSize))
	if cursor.Max > 0 {
		params.Set("max", strconv.FormatInt(cursor.Max, 10))
	}
	if cursor.ViewAt > 0 {
		params.Set("view_at", strconv.FormatInt(cursor.ViewAt, 10))
	}

	apiURL := a.baseURL + "/x/web-interface/history/cursor?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: "SESSDATA", Value: auth.Secret})

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAdapterFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: bilibili API status %d", shared.ErrAdapterFetch, resp.StatusCode)
	}

	var body bilibiliResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if body.Code != 0 {
		return nil, fmt.Errorf("%w: bilibili API code %d: %s", shared.ErrAdapterFetch, body.Code, body.Message)
	}

	page := &Page{
		NextCursor: Cursor{Max: body.Data.Cursor.Max, ViewAt: body.Data.Cursor.ViewAt},
		// max=0 on a non-empty page means the history tail was reached
		Done: body.Data.Cursor.Max == 0,
	}
	for _, item := range body.Data.List {
		page.Raw = append(page.Raw, item)
	}

	return page, nil
}

// Normalize converts a BilibiliHistoryItem into the canonical WatchItem.
func (a *BilibiliAdapter) Normalize(raw RawItem) (models.WatchItem, error) {
	entry, ok := raw.(BilibiliHistoryItem)
	if !ok {
		return models.WatchItem{}, fmt.Errorf("%w: unexpected raw type %T", shared.ErrInvalidInput, raw)
	}

	externalID := entry.History.BVID
	if externalID == "" {
		externalID = strconv.FormatInt(entry.History.OID, 10)
	}

	item := models.WatchItem{
		Platform:   a.Name(),
		ExternalID: externalID,
		Title:      entry.Title,
		Cover:      entry.Cover,
		URL:        fmt.Sprintf("https://www.bilibili.com/video/%s", externalID),
		WatchedAt:  time.Unix(entry.ViewAt, 0),
		Metadata: map[string]any{
			"business": entry.History.Business,
			"author":   entry.AuthorName,
		},
	}

	if entry.Duration > 0 {
		progress := 1.0
		if entry.Progress >= 0 {
			progress = float64(entry.Progress) / float64(entry.Duration)
		}
		if progress > 1 {
			progress = 1
		}
		item.Progress = &progress
	}

	return item, nil
}
