package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthExpired means the refresh token was rejected; the user has to
	// reconnect their Google account. Never retried automatically.
	ErrAuthExpired = errors.New("google authorization expired, reconnect your account")

	// ErrSyncTokenExpired is the provider's 410: the incremental cursor is no
	// longer valid and a full resync is required. Not fatal.
	ErrSyncTokenExpired = errors.New("sync token expired")

	// ErrConflictNotFound is returned when a resolution references a conflict
	// id that does not exist or does not belong to the caller.
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrMappingExists is the storage layer's translation of the unique
	// constraint on (user, entity) / (user, google event). Concurrent passes
	// treat it as "already mapped, skip".
	ErrMappingExists = errors.New("event mapping already exists")

	ErrMappingNotFound    = errors.New("event mapping not found")
	ErrCredentialNotFound = errors.New("google credential not found")
	ErrSyncTokenNotFound  = errors.New("no stored sync token")
	ErrChannelNotFound    = errors.New("webhook channel not found")
)

// ProviderAPIError is any non-2xx calendar API response other than the
// sync-token-expiry case.
type ProviderAPIError struct {
	StatusCode int
	Body       string
}

func (e *ProviderAPIError) Error() string {
	return fmt.Sprintf("google calendar api: status %d: %s", e.StatusCode, e.Body)
}
