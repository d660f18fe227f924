package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/RidhwanAhamed/aqademiq-sync/core/schedule"
	"github.com/RidhwanAhamed/aqademiq-sync/core/sync"
)

var _ sync.Repository = (*syncRepository)(nil)

type syncRepository struct {
	db *sqlx.DB
}

func NewSyncRepository(db *sqlx.DB) *syncRepository {
	return &syncRepository{db: db}
}

type credentialRow struct {
	UserID       string    `db:"user_id"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	Expiry       time.Time `db:"expiry"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type mappingRow struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	EntityKind      string    `db:"entity_kind"`
	EntityID        string    `db:"entity_id"`
	GoogleEventID   string    `db:"google_event_id"`
	CalendarID      string    `db:"calendar_id"`
	RemoteUpdatedAt time.Time `db:"remote_updated_at"`
	LocalUpdatedAt  time.Time `db:"local_updated_at"`
	LastSyncedAt    time.Time `db:"last_synced_at"`
	RemoteHash      string    `db:"remote_hash"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r mappingRow) toMapping() sync.EventMapping {
	return sync.EventMapping{
		ID:              r.ID,
		UserID:          r.UserID,
		EntityKind:      schedule.Kind(r.EntityKind),
		EntityID:        r.EntityID,
		GoogleEventID:   r.GoogleEventID,
		CalendarID:      r.CalendarID,
		RemoteUpdatedAt: r.RemoteUpdatedAt,
		LocalUpdatedAt:  r.LocalUpdatedAt,
		LastSyncedAt:    r.LastSyncedAt,
		RemoteHash:      r.RemoteHash,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func newMappingRow(m sync.EventMapping) mappingRow {
	return mappingRow{
		ID:              m.ID,
		UserID:          m.UserID,
		EntityKind:      string(m.EntityKind),
		EntityID:        m.EntityID,
		GoogleEventID:   m.GoogleEventID,
		CalendarID:      m.CalendarID,
		RemoteUpdatedAt: m.RemoteUpdatedAt,
		LocalUpdatedAt:  m.LocalUpdatedAt,
		LastSyncedAt:    m.LastSyncedAt,
		RemoteHash:      m.RemoteHash,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

type conflictRow struct {
	ID             string      `db:"id"`
	UserID         string      `db:"user_id"`
	MappingID      string      `db:"mapping_id"`
	Kind           string      `db:"kind"`
	LocalSnapshot  string      `db:"local_snapshot"`
	RemoteSnapshot string      `db:"remote_snapshot"`
	Resolution     null.String `db:"resolution"`
	ResolvedAt     null.Time   `db:"resolved_at"`
	CreatedAt      time.Time   `db:"created_at"`
}

func (r conflictRow) toConflict() sync.Conflict {
	return sync.Conflict{
		ID:             r.ID,
		UserID:         r.UserID,
		MappingID:      r.MappingID,
		Kind:           r.Kind,
		LocalSnapshot:  json.RawMessage(r.LocalSnapshot),
		RemoteSnapshot: json.RawMessage(r.RemoteSnapshot),
		Resolution:     r.Resolution,
		ResolvedAt:     r.ResolvedAt,
		CreatedAt:      r.CreatedAt,
	}
}

func newConflictRow(c sync.Conflict) conflictRow {
	return conflictRow{
		ID:             c.ID,
		UserID:         c.UserID,
		MappingID:      c.MappingID,
		Kind:           c.Kind,
		LocalSnapshot:  string(c.LocalSnapshot),
		RemoteSnapshot: string(c.RemoteSnapshot),
		Resolution:     c.Resolution,
		ResolvedAt:     c.ResolvedAt,
		CreatedAt:      c.CreatedAt,
	}
}

type operationRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Type       string    `db:"type"`
	Status     string    `db:"status"`
	Direction  string    `db:"direction"`
	Message    string    `db:"message"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt null.Time `db:"finished_at"`
}

func (r operationRow) toOperation() sync.Operation {
	return sync.Operation(r)
}

type tokenRow struct {
	UserID     string    `db:"user_id"`
	CalendarID string    `db:"calendar_id"`
	Token      string    `db:"token"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type channelRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	CalendarID string    `db:"calendar_id"`
	ResourceID string    `db:"resource_id"`
	Expiration time.Time `db:"expiration"`
	CreatedAt  time.Time `db:"created_at"`
}

func (repo *syncRepository) GetCredential(ctx context.Context, userID string) (sync.Credential, error) {
	var row credentialRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM google_tokens WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sync.Credential{}, sync.ErrCredentialNotFound
		}
		return sync.Credential{}, errors.Wrap(err, "getting credential")
	}
	return sync.Credential(row), nil
}

func (repo *syncRepository) SaveCredential(ctx context.Context, cred sync.Credential) error {
	const query = `
INSERT INTO google_tokens (user_id, access_token, refresh_token, expiry, updated_at)
VALUES (:user_id, :access_token, :refresh_token, :expiry, :updated_at)
ON CONFLICT (user_id) DO UPDATE
SET access_token = EXCLUDED.access_token, refresh_token = EXCLUDED.refresh_token,
    expiry = EXCLUDED.expiry, updated_at = EXCLUDED.updated_at`

	_, err := repo.db.NamedExecContext(ctx, query, credentialRow(cred))
	return errors.Wrap(err, "saving credential")
}

func (repo *syncRepository) DeleteCredential(ctx context.Context, userID string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM google_tokens WHERE user_id = $1`, userID)
	return errors.Wrap(err, "deleting credential")
}

func (repo *syncRepository) CreateMapping(ctx context.Context, m sync.EventMapping) (sync.EventMapping, error) {
	const query = `
INSERT INTO google_event_mappings (id, user_id, entity_kind, entity_id, google_event_id, calendar_id,
                                   remote_updated_at, local_updated_at, last_synced_at, remote_hash,
                                   created_at, updated_at)
VALUES (:id, :user_id, :entity_kind, :entity_id, :google_event_id, :calendar_id,
        :remote_updated_at, :local_updated_at, :last_synced_at, :remote_hash, :created_at, :updated_at)`

	if _, err := repo.db.NamedExecContext(ctx, query, newMappingRow(m)); err != nil {
		if isUniqueViolation(err, "") {
			return sync.EventMapping{}, sync.ErrMappingExists
		}
		return sync.EventMapping{}, errors.Wrap(err, "inserting mapping")
	}
	return m, nil
}

func (repo *syncRepository) GetMappingByEvent(ctx context.Context, userID, googleEventID string) (sync.EventMapping, error) {
	var row mappingRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM google_event_mappings WHERE user_id = $1 AND google_event_id = $2`, userID, googleEventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sync.EventMapping{}, sync.ErrMappingNotFound
		}
		return sync.EventMapping{}, errors.Wrap(err, "getting mapping by event")
	}
	return row.toMapping(), nil
}

func (repo *syncRepository) GetMappingByEntity(ctx context.Context, userID string, kind schedule.Kind, entityID string) (sync.EventMapping, error) {
	var row mappingRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM google_event_mappings WHERE user_id = $1 AND entity_kind = $2 AND entity_id = $3`,
		userID, string(kind), entityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sync.EventMapping{}, sync.ErrMappingNotFound
		}
		return sync.EventMapping{}, errors.Wrap(err, "getting mapping by entity")
	}
	return row.toMapping(), nil
}

func (repo *syncRepository) GetMappingByID(ctx context.Context, userID, id string) (sync.EventMapping, error) {
	var row mappingRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM google_event_mappings WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sync.EventMapping{}, sync.ErrMappingNotFound
		}
		return sync.EventMapping{}, errors.Wrap(err, "getting mapping")
	}
	return row.toMapping(), nil
}

func (repo *syncRepository) UpdateMapping(ctx context.Context, m sync.EventMapping) (sync.EventMapping, error) {
	const query = `
UPDATE google_event_mappings
SET remote_updated_at = :remote_updated_at, local_updated_at = :local_updated_at,
    last_synced_at = :last_synced_at, remote_hash = :remote_hash, updated_at = :updated_at
WHERE user_id = :user_id AND id = :id`

	res, err := repo.db.NamedExecContext(ctx, query, newMappingRow(m))
	if err != nil {
		return sync.EventMapping{}, errors.Wrap(err, "updating mapping")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sync.EventMapping{}, sync.ErrMappingNotFound
	}
	return m, nil
}

func (repo *syncRepository) DeleteMapping(ctx context.Context, userID, id string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM google_event_mappings WHERE user_id = $1 AND id = $2`, userID, id)
	return errors.Wrap(err, "deleting mapping")
}

func (repo *syncRepository) QueryMappings(ctx context.Context, userID string) ([]sync.EventMapping, error) {
	var rows []mappingRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM google_event_mappings WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying mappings")
	}
	mappings := make([]sync.EventMapping, 0, len(rows))
	for _, row := range rows {
		mappings = append(mappings, row.toMapping())
	}
	return mappings, nil
}

func (repo *syncRepository) QueryUnmappedScheduleBlocks(ctx context.Context, userID string) ([]schedule.ScheduleBlock, error) {
	const query = `
SELECT b.* FROM schedule_blocks b
LEFT JOIN google_event_mappings m ON m.user_id = b.user_id AND m.entity_kind = 'schedule_block' AND m.entity_id = b.id
WHERE b.user_id = $1 AND m.id IS NULL
ORDER BY b.start_time`

	var rows []scheduleBlockRow
	if err := repo.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying unmapped schedule blocks")
	}
	blocks := make([]schedule.ScheduleBlock, 0, len(rows))
	for _, row := range rows {
		blocks = append(blocks, row.toBlock())
	}
	return blocks, nil
}

func (repo *syncRepository) QueryUnmappedAssignments(ctx context.Context, userID string) ([]schedule.Assignment, error) {
	const query = `
SELECT a.* FROM assignments a
LEFT JOIN google_event_mappings m ON m.user_id = a.user_id AND m.entity_kind = 'assignment' AND m.entity_id = a.id
WHERE a.user_id = $1 AND m.id IS NULL
ORDER BY a.due_at`

	var rows []assignmentRow
	if err := repo.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying unmapped assignments")
	}
	asgs := make([]schedule.Assignment, 0, len(rows))
	for _, row := range rows {
		asgs = append(asgs, row.toAssignment())
	}
	return asgs, nil
}

func (repo *syncRepository) QueryUnmappedExams(ctx context.Context, userID string) ([]schedule.Exam, error) {
	const query = `
SELECT e.* FROM exams e
LEFT JOIN google_event_mappings m ON m.user_id = e.user_id AND m.entity_kind = 'exam' AND m.entity_id = e.id
WHERE e.user_id = $1 AND m.id IS NULL
ORDER BY e.exam_date`

	var rows []examRow
	if err := repo.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying unmapped exams")
	}
	exams := make([]schedule.Exam, 0, len(rows))
	for _, row := range rows {
		exams = append(exams, row.toExam())
	}
	return exams, nil
}

func (repo *syncRepository) CreateConflict(ctx context.Context, c sync.Conflict) (sync.Conflict, error) {
	const query = `
INSERT INTO sync_conflicts (id, user_id, mapping_id, kind, local_snapshot, remote_snapshot,
                            resolution, resolved_at, created_at)
VALUES (:id, :user_id, :mapping_id, :kind, :local_snapshot, :remote_snapshot,
        :resolution, :resolved_at, :created_at)`

	if _, err := repo.db.NamedExecContext(ctx, query, newConflictRow(c)); err != nil {
		return sync.Conflict{}, errors.Wrap(err, "inserting conflict")
	}
	return c, nil
}

func (repo *syncRepository) GetConflict(ctx context.Context, userID, id string) (sync.Conflict, error) {
	var row conflictRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM sync_conflicts WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sync.Conflict{}, sync.ErrConflictNotFound
		}
		return sync.Conflict{}, errors.Wrap(err, "getting conflict")
	}
	return row.toConflict(), nil
}

func (repo *syncRepository) UpdateConflict(ctx context.Context, c sync.Conflict) (sync.Conflict, error) {
	const query = `
UPDATE sync_conflicts
SET resolution = :resolution, resolved_at = :resolved_at
WHERE user_id = :user_id AND id = :id`

	res, err := repo.db.NamedExecContext(ctx, query, newConflictRow(c))
	if err != nil {
		return sync.Conflict{}, errors.Wrap(err, "updating conflict")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sync.Conflict{}, sync.ErrConflictNotFound
	}
	return c, nil
}

func (repo *syncRepository) QueryConflicts(ctx context.Context, userID string, unresolvedOnly bool) ([]sync.Conflict, error) {
	query := `SELECT * FROM sync_conflicts WHERE user_id = $1`
	if unresolvedOnly {
		query += ` AND resolution IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	var rows []conflictRow
	if err := repo.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying conflicts")
	}
	conflicts := make([]sync.Conflict, 0, len(rows))
	for _, row := range rows {
		conflicts = append(conflicts, row.toConflict())
	}
	return conflicts, nil
}

func (repo *syncRepository) CreateOperation(ctx context.Context, op sync.Operation) (sync.Operation, error) {
	const query = `
INSERT INTO sync_operations (id, user_id, type, status, direction, message, started_at, finished_at)
VALUES (:id, :user_id, :type, :status, :direction, :message, :started_at, :finished_at)`

	if _, err := repo.db.NamedExecContext(ctx, query, operationRow(op)); err != nil {
		return sync.Operation{}, errors.Wrap(err, "inserting operation")
	}
	return op, nil
}

func (repo *syncRepository) FinishOperation(ctx context.Context, id, status, message string) error {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE sync_operations SET status = $1, message = $2, finished_at = $3 WHERE id = $4`,
		status, message, time.Now().UTC(), id)
	return errors.Wrap(err, "finishing operation")
}

func (repo *syncRepository) QueryOperations(ctx context.Context, userID string, limit int) ([]sync.Operation, error) {
	var rows []operationRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM sync_operations WHERE user_id = $1 ORDER BY started_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying operations")
	}
	ops := make([]sync.Operation, 0, len(rows))
	for _, row := range rows {
		ops = append(ops, row.toOperation())
	}
	return ops, nil
}

func (repo *syncRepository) GetSyncToken(ctx context.Context, userID, calendarID string) (sync.Token, error) {
	var row tokenRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM google_sync_tokens WHERE user_id = $1 AND calendar_id = $2`, userID, calendarID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sync.Token{}, sync.ErrSyncTokenNotFound
		}
		return sync.Token{}, errors.Wrap(err, "getting sync token")
	}
	return sync.Token(row), nil
}

func (repo *syncRepository) SaveSyncToken(ctx context.Context, tok sync.Token) error {
	const query = `
INSERT INTO google_sync_tokens (user_id, calendar_id, token, updated_at)
VALUES (:user_id, :calendar_id, :token, :updated_at)
ON CONFLICT (user_id, calendar_id) DO UPDATE
SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at`

	_, err := repo.db.NamedExecContext(ctx, query, tokenRow(tok))
	return errors.Wrap(err, "saving sync token")
}

func (repo *syncRepository) DeleteSyncToken(ctx context.Context, userID, calendarID string) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM google_sync_tokens WHERE user_id = $1 AND calendar_id = $2`, userID, calendarID)
	return errors.Wrap(err, "deleting sync token")
}

func (repo *syncRepository) SaveChannel(ctx context.Context, ch sync.Channel) error {
	const query = `
INSERT INTO calendar_webhook_channels (id, user_id, calendar_id, resource_id, expiration, created_at)
VALUES (:id, :user_id, :calendar_id, :resource_id, :expiration, :created_at)
ON CONFLICT (id) DO UPDATE
SET resource_id = EXCLUDED.resource_id, expiration = EXCLUDED.expiration`

	_, err := repo.db.NamedExecContext(ctx, query, channelRow(ch))
	return errors.Wrap(err, "saving channel")
}

func (repo *syncRepository) GetChannelByID(ctx context.Context, channelID string) (sync.Channel, error) {
	var row channelRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM calendar_webhook_channels WHERE id = $1`, channelID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sync.Channel{}, sync.ErrChannelNotFound
		}
		return sync.Channel{}, errors.Wrap(err, "getting channel")
	}
	return sync.Channel(row), nil
}
