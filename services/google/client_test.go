package googlesvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RidhwanAhamed/aqademiq-sync/core"
	"github.com/RidhwanAhamed/aqademiq-sync/core/sync"
)

func newTestClient(tokenURL, calendarURL string) *Client {
	conf := &core.Config{}
	conf.Google.ClientID = "client-id"
	conf.Google.ClientSecret = "client-secret"
	conf.Google.TokenEndpoint = tokenURL
	conf.Google.CalendarBaseURL = calendarURL
	return NewClient(conf)
}

func TestRefreshAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))

		switch r.PostForm.Get("refresh_token") {
		case "good-token":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "new-access",
				"expires_in":   3600,
			})
		case "rotating-token":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "new-access",
				"refresh_token": "rotated",
				"expires_in":    3600,
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, srv.URL)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		tok, err := client.RefreshAccessToken(ctx, "good-token")
		require.NoError(t, err)
		assert.Equal(t, "new-access", tok.AccessToken)
		assert.Empty(t, tok.RefreshToken)
		assert.Equal(t, 3600, tok.ExpiresIn)
	})

	t.Run("rotated refresh token is returned", func(t *testing.T) {
		tok, err := client.RefreshAccessToken(ctx, "rotating-token")
		require.NoError(t, err)
		assert.Equal(t, "rotated", tok.RefreshToken)
	})

	t.Run("invalid grant means reauthorization", func(t *testing.T) {
		_, err := client.RefreshAccessToken(ctx, "revoked-token")
		assert.ErrorIs(t, err, sync.ErrAuthExpired)
	})
}

func TestListEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		assert.Equal(t, "true", r.URL.Query().Get("showDeleted"))

		switch r.URL.Query().Get("syncToken") {
		case "stale":
			w.WriteHeader(http.StatusGone)
		case "":
			assert.NotEmpty(t, r.URL.Query().Get("timeMin"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"items":         []map[string]string{{"id": "ev1", "summary": "Lecture"}},
				"nextSyncToken": "fresh",
			})
		default:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []map[string]string{{"id": "ev2", "status": "cancelled"}},
			})
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, srv.URL)
	ctx := context.Background()

	t.Run("windowed query", func(t *testing.T) {
		page, err := client.ListEvents(ctx, "access", "primary", sync.EventQuery{
			TimeMin: time.Now().Add(-time.Hour),
			TimeMax: time.Now().Add(time.Hour),
		})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "ev1", page.Items[0].ID)
		assert.Equal(t, "fresh", page.NextSyncToken)
	})

	t.Run("incremental query", func(t *testing.T) {
		page, err := client.ListEvents(ctx, "access", "primary", sync.EventQuery{SyncToken: "abc"})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.True(t, page.Items[0].Cancelled())
	})

	t.Run("expired sync token", func(t *testing.T) {
		_, err := client.ListEvents(ctx, "access", "primary", sync.EventQuery{SyncToken: "stale"})
		assert.ErrorIs(t, err, sync.ErrSyncTokenExpired)
	})
}

func TestInsertAndPatchEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev sync.GoogleEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))

		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/calendars/primary/events", r.URL.Path)
			ev.ID = "created-id"
		case http.MethodPatch:
			assert.Equal(t, "/calendars/primary/events/ev9", r.URL.Path)
			ev.ID = "ev9"
		}
		ev.Updated = "2026-03-01T10:00:00Z"
		_ = json.NewEncoder(w).Encode(ev)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, srv.URL)
	ctx := context.Background()

	created, err := client.InsertEvent(ctx, "access", "primary", &sync.GoogleEvent{Summary: "Exam: Midterm"})
	require.NoError(t, err)
	assert.Equal(t, "created-id", created.ID)
	assert.Equal(t, "Exam: Midterm", created.Summary)

	patched, err := client.PatchEvent(ctx, "access", "primary", "ev9", &sync.GoogleEvent{Summary: "Moved"})
	require.NoError(t, err)
	assert.Equal(t, "ev9", patched.ID)
	assert.False(t, patched.UpdatedTime().IsZero())
}

func TestDeleteEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Path {
		case "/calendars/primary/events/gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, srv.URL)
	ctx := context.Background()

	assert.NoError(t, client.DeleteEvent(ctx, "access", "primary", "ev1"))
	assert.NoError(t, client.DeleteEvent(ctx, "access", "primary", "gone"))
}

func TestWatchEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events/watch", r.URL.Path)

		var body struct {
			ID      string            `json:"id"`
			Type    string            `json:"type"`
			Address string            `json:"address"`
			Params  map[string]string `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "web_hook", body.Type)
		assert.Equal(t, "https://api.example.com/sync/webhook", body.Address)
		assert.Equal(t, "604800", body.Params["ttl"])

		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":         body.ID,
			"resourceId": "res-1",
			"expiration": "1767225600000",
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, srv.URL)

	ch, err := client.WatchEvents(context.Background(), "access", "primary", "chan-1",
		"https://api.example.com/sync/webhook", 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "chan-1", ch.ID)
	assert.Equal(t, "res-1", ch.ResourceID)
	assert.Equal(t, time.UnixMilli(1767225600000).UTC(), ch.Expiration)
}
