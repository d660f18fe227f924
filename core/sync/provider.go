package sync

import (
	"context"
	"time"
)

type (
	// TokenResponse is the OAuth token endpoint's answer to a refresh-token
	// exchange. RefreshToken is only set when the provider rotated it.
	TokenResponse struct {
		AccessToken  string
		RefreshToken string
		ExpiresIn    int // seconds
	}

	// EventQuery scopes a ListEvents call. SyncToken and the time fields are
	// mutually exclusive, per the provider's contract.
	EventQuery struct {
		TimeMin    time.Time
		TimeMax    time.Time
		UpdatedMin time.Time
		SyncToken  string
		PageToken  string
	}

	// EventPage is one page of a ListEvents result. NextSyncToken is only
	// present on the final page.
	EventPage struct {
		Items         []GoogleEvent
		NextPageToken string
		NextSyncToken string
	}

	// Provider is the calendar vendor surface the engine consumes: an OAuth
	// token endpoint plus event list/insert/patch/delete and push-channel
	// registration. ListEvents must return ErrSyncTokenExpired on the
	// provider's 410 equivalent.
	Provider interface {
		RefreshAccessToken(ctx context.Context, refreshToken string) (TokenResponse, error)
		ListEvents(ctx context.Context, accessToken, calendarID string, q EventQuery) (EventPage, error)
		InsertEvent(ctx context.Context, accessToken, calendarID string, ev *GoogleEvent) (*GoogleEvent, error)
		PatchEvent(ctx context.Context, accessToken, calendarID, eventID string, ev *GoogleEvent) (*GoogleEvent, error)
		DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error
		WatchEvents(ctx context.Context, accessToken, calendarID, channelID, callbackURL string, ttl time.Duration) (Channel, error)
	}
)
