// Steam implementation of [Adapter]
//
// Owned games API per https://developer.valvesoftware.com/wiki/Steam_Web_API
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

const steamBaseURL = "https://api.steampowered.com"

// SteamGame is one owned game with play history fields.
type SteamGame struct {
	AppID           int64  `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int64  `json:"playtime_forever"` // minutes
	RTimeLastPlayed int64  `json:"rtime_last_played"`
	ImgIconURL      string `json:"img_icon_url"`
}

type steamOwnedGames struct {
	GameCount int         `json:"game_count"`
	Games     []SteamGame `json:"games"`
}

type steamResponse struct {
	Response steamOwnedGames `json:"response"`
}

// SteamAdapter fetches Steam play history. The Web API returns the entire
// library in one response, so the adapter serves a single page and signals
// Done immediately.
type SteamAdapter struct {
	baseURL    string
	delay      time.Duration
	httpClient *http.Client
}

// SteamOpts contains configuration options for the Steam adapter.
type SteamOpts struct {
	BaseURL    string
	Delay      time.Duration
	HTTPClient *http.Client
}

// NewSteamAdapter creates a Steam adapter with the given options.
func NewSteamAdapter(opts SteamOpts) *SteamAdapter {
	if opts.BaseURL == "" {
		opts.BaseURL = steamBaseURL
	}
	if opts.Delay <= 0 {
		opts.Delay = 1500 * time.Millisecond
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &SteamAdapter{
		baseURL:    opts.BaseURL,
		delay:      opts.Delay,
		httpClient: opts.HTTPClient,
	}
}

func (a *SteamAdapter) Name() string { return "steam" }

func (a *SteamAdapter) PageDelay() time.Duration { return a.delay }

func (a *SteamAdapter) StartCursor(since time.Time) Cursor {
	return Cursor{Offset: 0}
}

// FetchPage retrieves the owned-games feed filtered to games that have been
// played. auth.Secret is the Web API key; the SteamID comes from credential
// metadata.
func (a *SteamAdapter) FetchPage(ctx context.Context, auth Auth, cursor Cursor) (*Page, error) {
	if auth.Secret == "" {
		return nil, fmt.Errorf("%w: missing Steam API key", shared.ErrMissingCredentials)
	}
	steamID := auth.Metadata["steam_id"]
	if steamID == "" {
		return nil, fmt.Errorf("%w: missing steam_id metadata", shared.ErrMissingCredentials)
	}

	// Offset past the single page means end of history.
	if cursor.Offset > 0 {
		return &Page{Done: true}, nil
	}

	params := url.Values{}
	params.Set("key", auth.Secret)
	params.Set("steamid", steamID)
	params.Set("include_appinfo", "1")
	params.Set("include_played_free_games", "1")

	apiURL := a.baseURL + "/IPlayerService/GetOwnedGames/v1/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAdapterFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: steam API status %d", shared.ErrAdapterFetch, resp.StatusCode)
	}

	var body steamResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	page := &Page{
		NextCursor: Cursor{Offset: len(body.Response.Games)},
		Done:       true,
	}
	for _, game := range body.Response.Games {
		if game.RTimeLastPlayed > 0 {
			page.Raw = append(page.Raw, game)
		}
	}

	return page, nil
}

// Normalize converts a SteamGame into the canonical WatchItem.
func (a *SteamAdapter) Normalize(raw RawItem) (models.WatchItem, error) {
	game, ok := raw.(SteamGame)
	if !ok {
		return models.WatchItem{}, fmt.Errorf("%w: unexpected raw type %T", shared.ErrInvalidInput, raw)
	}

	appID := strconv.FormatInt(game.AppID, 10)

	item := models.WatchItem{
		Platform:   a.Name(),
		ExternalID: appID,
		Title:      game.Name,
		URL:        fmt.Sprintf("https://store.steampowered.com/app/%s", appID),
		WatchedAt:  time.Unix(game.RTimeLastPlayed, 0),
		Metadata:   map[string]any{"playtime_minutes": game.PlaytimeForever},
	}

	if game.ImgIconURL != "" {
		item.Cover = fmt.Sprintf(
			"https://media.steampowered.com/steamcommunity/public/images/apps/%s/%s.jpg",
			appID, game.ImgIconURL,
		)
	}

	return item, nil
}
