package platforms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"watchvault/internal/shared"
)

func TestSteamFetchPage(t *testing.T) {
	auth := Auth{Secret: "api-key", Metadata: map[string]string{"steam_id": "7656119"}}

	t.Run("Fetches Library", func(t *testing.T) {
		var gotKey, gotSteamID string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.URL.Query().Get("key")
			gotSteamID = r.URL.Query().Get("steamid")

			fmt.Fprint(w, `{
				"response": {
					"game_count": 3,
					"games": [
						{"appid": 440, "name": "played recently", "playtime_forever": 600, "rtime_last_played": 1717200000},
						{"appid": 570, "name": "played long ago", "playtime_forever": 10, "rtime_last_played": 1500000000},
						{"appid": 730, "name": "never played", "playtime_forever": 0, "rtime_last_played": 0}
					]
				}
			}`)
		}))
		defer server.Close()

		adapter := NewSteamAdapter(SteamOpts{BaseURL: server.URL})
		page, err := adapter.FetchPage(context.Background(), auth, adapter.StartCursor(time.Time{}))
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}

		if gotKey != "api-key" || gotSteamID != "7656119" {
			t.Errorf("expected key and steamid params, got %q/%q", gotKey, gotSteamID)
		}
		if len(page.Raw) != 2 {
			t.Errorf("expected unplayed games to be filtered, got %d items", len(page.Raw))
		}
		if !page.Done {
			t.Error("expected the single library page to be final")
		}
	})

	t.Run("Offset Past Library", func(t *testing.T) {
		adapter := NewSteamAdapter(SteamOpts{BaseURL: "http://127.0.0.1:0"})
		page, err := adapter.FetchPage(context.Background(), auth, Cursor{Offset: 2})
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if !page.Done || len(page.Raw) != 0 {
			t.Error("expected empty terminal page without an HTTP call")
		}
	})

	t.Run("Missing Credentials", func(t *testing.T) {
		adapter := NewSteamAdapter(SteamOpts{})

		if _, err := adapter.FetchPage(context.Background(), Auth{}, Cursor{}); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials without key, got %v", err)
		}
		if _, err := adapter.FetchPage(context.Background(), Auth{Secret: "api-key"}, Cursor{}); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials without steam_id, got %v", err)
		}
	})

	t.Run("HTTP Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		adapter := NewSteamAdapter(SteamOpts{BaseURL: server.URL})
		if _, err := adapter.FetchPage(context.Background(), auth, Cursor{}); !errors.Is(err, shared.ErrAdapterFetch) {
			t.Errorf("expected ErrAdapterFetch, got %v", err)
		}
	})
}

func TestSteamNormalize(t *testing.T) {
	adapter := NewSteamAdapter(SteamOpts{})

	t.Run("Played Game", func(t *testing.T) {
		game := SteamGame{
			AppID:           440,
			Name:            "Team Fortress 2",
			PlaytimeForever: 600,
			RTimeLastPlayed: 1717200000,
			ImgIconURL:      "abc123",
		}

		item, err := adapter.Normalize(game)
		if err != nil {
			t.Fatalf("normalize failed: %v", err)
		}

		if item.Platform != "steam" || item.ExternalID != "440" {
			t.Errorf("unexpected identity: %s/%s", item.Platform, item.ExternalID)
		}
		if !item.WatchedAt.Equal(time.Unix(1717200000, 0)) {
			t.Errorf("unexpected watchedAt: %v", item.WatchedAt)
		}
		if item.URL != "https://store.steampowered.com/app/440" {
			t.Errorf("unexpected URL: %q", item.URL)
		}
		if item.Cover == "" {
			t.Error("expected cover URL from icon hash")
		}
		if item.Metadata["playtime_minutes"] != int64(600) {
			t.Errorf("expected playtime metadata, got %v", item.Metadata)
		}
	})

	t.Run("No Icon", func(t *testing.T) {
		game := SteamGame{AppID: 570, Name: "Dota 2", RTimeLastPlayed: 1717200000}

		item, err := adapter.Normalize(game)
		if err != nil {
			t.Fatalf("normalize failed: %v", err)
		}
		if item.Cover != "" {
			t.Errorf("expected no cover without icon, got %q", item.Cover)
		}
	})

	t.Run("Wrong Type", func(t *testing.T) {
		if _, err := adapter.Normalize(nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
