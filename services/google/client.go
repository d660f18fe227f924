package googlesvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/RidhwanAhamed/aqademiq-sync/core"
	"github.com/RidhwanAhamed/aqademiq-sync/core/sync"
)

const maxPageSize = 250

// Client talks to the Google OAuth token endpoint and the Calendar v3 REST
// API. Both base URLs come from config so tests can point it at a local server.
type Client struct {
	tokenEndpoint string
	baseURL       string
	clientID      string
	clientSecret  string
	http          *http.Client
}

var _ sync.Provider = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	return &Client{
		tokenEndpoint: conf.Google.TokenEndpoint,
		baseURL:       strings.TrimRight(conf.Google.CalendarBaseURL, "/"),
		clientID:      conf.Google.ClientID,
		clientSecret:  conf.Google.ClientSecret,
		http:          &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (sync.TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return sync.TokenResponse{}, errors.Wrap(err, "building token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.http.Do(req)
	if err != nil {
		return sync.TokenResponse{}, errors.Wrap(err, "calling token endpoint")
	}
	defer func() { _ = res.Body.Close() }()

	body, _ := io.ReadAll(res.Body)
	switch {
	case res.StatusCode == http.StatusBadRequest || res.StatusCode == http.StatusUnauthorized:
		// invalid_grant: the refresh token was revoked or expired
		return sync.TokenResponse{}, sync.ErrAuthExpired
	case res.StatusCode >= http.StatusMultipleChoices:
		return sync.TokenResponse{}, &sync.ProviderAPIError{StatusCode: res.StatusCode, Body: string(body)}
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err = json.Unmarshal(body, &payload); err != nil {
		return sync.TokenResponse{}, errors.Wrap(err, "decoding token response")
	}
	return sync.TokenResponse{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresIn:    payload.ExpiresIn,
	}, nil
}

func (c *Client) ListEvents(ctx context.Context, accessToken, calendarID string, q sync.EventQuery) (sync.EventPage, error) {
	params := url.Values{}
	params.Set("singleEvents", "true")
	params.Set("showDeleted", "true")
	params.Set("maxResults", strconv.Itoa(maxPageSize))
	if q.SyncToken != "" {
		params.Set("syncToken", q.SyncToken)
	} else {
		if !q.TimeMin.IsZero() {
			params.Set("timeMin", q.TimeMin.Format(time.RFC3339))
		}
		if !q.TimeMax.IsZero() {
			params.Set("timeMax", q.TimeMax.Format(time.RFC3339))
		}
		if !q.UpdatedMin.IsZero() {
			params.Set("updatedMin", q.UpdatedMin.Format(time.RFC3339))
		}
	}
	if q.PageToken != "" {
		params.Set("pageToken", q.PageToken)
	}

	path := fmt.Sprintf("/calendars/%s/events?%s", url.PathEscape(calendarID), params.Encode())
	res, err := c.do(ctx, accessToken, http.MethodGet, path, nil)
	if err != nil {
		return sync.EventPage{}, err
	}
	defer func() { _ = res.Body.Close() }()

	body, _ := io.ReadAll(res.Body)
	if err = c.checkStatus(res.StatusCode, body); err != nil {
		return sync.EventPage{}, err
	}

	var payload struct {
		Items         []sync.GoogleEvent `json:"items"`
		NextPageToken string             `json:"nextPageToken"`
		NextSyncToken string             `json:"nextSyncToken"`
	}
	if err = json.Unmarshal(body, &payload); err != nil {
		return sync.EventPage{}, errors.Wrap(err, "decoding event list")
	}
	return sync.EventPage{
		Items:         payload.Items,
		NextPageToken: payload.NextPageToken,
		NextSyncToken: payload.NextSyncToken,
	}, nil
}

func (c *Client) InsertEvent(ctx context.Context, accessToken, calendarID string, ev *sync.GoogleEvent) (*sync.GoogleEvent, error) {
	path := fmt.Sprintf("/calendars/%s/events", url.PathEscape(calendarID))
	return c.writeEvent(ctx, accessToken, http.MethodPost, path, ev)
}

func (c *Client) PatchEvent(ctx context.Context, accessToken, calendarID, eventID string, ev *sync.GoogleEvent) (*sync.GoogleEvent, error) {
	path := fmt.Sprintf("/calendars/%s/events/%s", url.PathEscape(calendarID), url.PathEscape(eventID))
	return c.writeEvent(ctx, accessToken, http.MethodPatch, path, ev)
}

func (c *Client) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	path := fmt.Sprintf("/calendars/%s/events/%s", url.PathEscape(calendarID), url.PathEscape(eventID))
	res, err := c.do(ctx, accessToken, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	// already gone counts as deleted
	if res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusGone {
		return nil
	}
	body, _ := io.ReadAll(res.Body)
	return c.checkStatus(res.StatusCode, body)
}

func (c *Client) WatchEvents(ctx context.Context, accessToken, calendarID, channelID, callbackURL string, ttl time.Duration) (sync.Channel, error) {
	reqBody := struct {
		ID      string            `json:"id"`
		Type    string            `json:"type"`
		Address string            `json:"address"`
		Params  map[string]string `json:"params,omitempty"`
	}{
		ID:      channelID,
		Type:    "web_hook",
		Address: callbackURL,
		Params:  map[string]string{"ttl": strconv.Itoa(int(ttl.Seconds()))},
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return sync.Channel{}, errors.Wrap(err, "encoding watch request")
	}

	path := fmt.Sprintf("/calendars/%s/events/watch", url.PathEscape(calendarID))
	res, err := c.do(ctx, accessToken, http.MethodPost, path, bytes.NewReader(raw))
	if err != nil {
		return sync.Channel{}, err
	}
	defer func() { _ = res.Body.Close() }()

	body, _ := io.ReadAll(res.Body)
	if err = c.checkStatus(res.StatusCode, body); err != nil {
		return sync.Channel{}, err
	}

	var payload struct {
		ID         string `json:"id"`
		ResourceID string `json:"resourceId"`
		Expiration string `json:"expiration"` // ms since epoch, as a string
	}
	if err = json.Unmarshal(body, &payload); err != nil {
		return sync.Channel{}, errors.Wrap(err, "decoding watch response")
	}

	ch := sync.Channel{
		ID:         payload.ID,
		CalendarID: calendarID,
		ResourceID: payload.ResourceID,
		CreatedAt:  time.Now().UTC(),
	}
	if ms, err := strconv.ParseInt(payload.Expiration, 10, 64); err == nil {
		ch.Expiration = time.UnixMilli(ms).UTC()
	}
	return ch, nil
}

func (c *Client) writeEvent(ctx context.Context, accessToken, method, path string, ev *sync.GoogleEvent) (*sync.GoogleEvent, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrap(err, "encoding event")
	}

	res, err := c.do(ctx, accessToken, method, path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	body, _ := io.ReadAll(res.Body)
	if err = c.checkStatus(res.StatusCode, body); err != nil {
		return nil, err
	}

	var saved sync.GoogleEvent
	if err = json.Unmarshal(body, &saved); err != nil {
		return nil, errors.Wrap(err, "decoding event response")
	}
	return &saved, nil
}

func (c *Client) do(ctx context.Context, accessToken, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "building calendar request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	return res, errors.Wrap(err, "calling calendar api")
}

func (c *Client) checkStatus(status int, body []byte) error {
	switch {
	case status < http.StatusMultipleChoices:
		return nil
	case status == http.StatusGone:
		return sync.ErrSyncTokenExpired
	case status == http.StatusUnauthorized:
		return sync.ErrAuthExpired
	default:
		return &sync.ProviderAPIError{StatusCode: status, Body: string(body)}
	}
}
