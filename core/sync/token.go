package sync

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// TokenManager keeps a user's Google access token usable, refreshing it
// through the provider's token endpoint when the stored expiry is within the
// safety margin.
type TokenManager struct {
	repo     Repository
	provider Provider
	margin   time.Duration
	now      func() time.Time
}

func NewTokenManager(repo Repository, provider Provider, margin time.Duration) *TokenManager {
	return &TokenManager{
		repo:     repo,
		provider: provider,
		margin:   margin,
		now:      time.Now,
	}
}

// EnsureAccessToken returns a valid access token for the user, refreshing and
// persisting the credential first when the expiry is within the margin.
// Returns ErrAuthExpired when the refresh exchange itself is rejected.
//
// The credential write is last-write-wins; concurrent passes for one user may
// both refresh. A compare-and-swap would harden this.
func (tm *TokenManager) EnsureAccessToken(ctx context.Context, userID string) (string, error) {
	cred, err := tm.repo.GetCredential(ctx, userID)
	if err != nil {
		return "", err
	}

	if cred.Expiry.After(tm.now().Add(tm.margin)) {
		return cred.AccessToken, nil
	}

	resp, err := tm.provider.RefreshAccessToken(ctx, cred.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrAuthExpired) {
			return "", ErrAuthExpired
		}
		return "", errors.Wrap(err, "refreshing access token")
	}

	cred.AccessToken = resp.AccessToken
	cred.Expiry = tm.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	if resp.RefreshToken != "" { // provider rotated it
		cred.RefreshToken = resp.RefreshToken
	}
	cred.UpdatedAt = tm.now().UTC()

	if err := tm.repo.SaveCredential(ctx, cred); err != nil {
		return "", errors.Wrap(err, "persisting refreshed credential")
	}
	return cred.AccessToken, nil
}
