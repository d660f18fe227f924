package ratelimitsvc

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// postgresStore shares one counter table between instances so the limit
// holds across replicas.
type postgresStore struct {
	db *sqlx.DB
}

var _ Store = (*postgresStore)(nil)

func NewPostgresStore(db *sqlx.DB) *postgresStore {
	return &postgresStore{db: db}
}

func (s *postgresStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	const query = `
INSERT INTO rate_limits (key, count, expires_at)
VALUES ($1, 1, $2)
ON CONFLICT (key) DO UPDATE
SET count      = CASE WHEN rate_limits.expires_at < now() THEN 1 ELSE rate_limits.count + 1 END,
    expires_at = CASE WHEN rate_limits.expires_at < now() THEN EXCLUDED.expires_at ELSE rate_limits.expires_at END
RETURNING count`

	var count int
	err := s.db.GetContext(ctx, &count, query, key, time.Now().UTC().Add(window))
	if err != nil {
		return false, errors.Wrap(err, "counting request")
	}
	return count <= limit, nil
}
