package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/RidhwanAhamed/aqademiq-sync/core/schedule"
)

// Credential is a user's stored Google OAuth grant. One row per user,
// last-write-wins on refresh.
type Credential struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	Expiry       time.Time `json:"expiry"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EventMapping durably links one local entity to one Google event.
// At most one active mapping per (user, entity) and per (user, event id);
// the storage layer enforces both with unique constraints.
type EventMapping struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	EntityKind      schedule.Kind `json:"entity_kind"`
	EntityID        string        `json:"entity_id"`
	GoogleEventID   string        `json:"google_event_id"`
	CalendarID      string        `json:"calendar_id"`
	RemoteUpdatedAt time.Time     `json:"remote_updated_at"` // provider-reported
	LocalUpdatedAt  time.Time     `json:"local_updated_at"`
	LastSyncedAt    time.Time     `json:"last_synced_at"`
	RemoteHash      string        `json:"remote_hash"` // diagnostic only, see detector.go
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Conflict kinds. There is currently exactly one.
const ConflictBothModified = "both_modified"

// Resolution strategies.
const (
	ResolvePreferLocal  = "prefer_local"
	ResolvePreferGoogle = "prefer_google"
	ResolveMerge        = "merge"
)

// Conflict records a mapped pair whose two sides changed independently since
// the last successful sync. Resolution fields stay null until resolved.
type Conflict struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	MappingID      string          `json:"mapping_id"`
	Kind           string          `json:"kind"`
	LocalSnapshot  json.RawMessage `json:"local_snapshot"`
	RemoteSnapshot json.RawMessage `json:"remote_snapshot"`
	Resolution     null.String     `json:"resolution"`
	ResolvedAt     null.Time       `json:"resolved_at"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (c Conflict) Resolved() bool { return c.Resolution.Valid }

// Operation types.
const (
	OpFull               = "full"
	OpIncremental        = "incremental"
	OpWebhook            = "webhook"
	OpConflictResolution = "conflict_resolution"
)

// Operation statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Sync directions recorded on operations.
const (
	DirectionImport = "import"
	DirectionExport = "export"
	DirectionBoth   = "bidirectional"
)

// Operation is one append-only audit row per sync attempt. Terminal status
// update aside, rows are never mutated after completion.
type Operation struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Direction  string    `json:"direction"`
	Message    string    `json:"message"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt null.Time `json:"finished_at"`
}

// Token is the provider-issued incremental cursor per (user, calendar).
type Token struct {
	UserID     string    `json:"user_id"`
	CalendarID string    `json:"calendar_id"`
	Token      string    `json:"token"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Channel is a Google push channel registration. The channel id arrives in
// webhook headers and is the lookup key back to the owning user.
type Channel struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	CalendarID string    `json:"calendar_id"`
	ResourceID string    `json:"resource_id"`
	Expiration time.Time `json:"expiration"`
	CreatedAt  time.Time `json:"created_at"`
}

// GoogleEvent is the provider's wire representation of an event.
type GoogleEvent struct {
	ID          string           `json:"id,omitempty"`
	Status      string           `json:"status,omitempty"` // "confirmed" | "cancelled"
	Summary     string           `json:"summary,omitempty"`
	Description string           `json:"description,omitempty"`
	Location    string           `json:"location,omitempty"`
	ColorID     string           `json:"colorId,omitempty"`
	Start       *GoogleEventTime `json:"start,omitempty"`
	End         *GoogleEventTime `json:"end,omitempty"`
	Updated     string           `json:"updated,omitempty"` // RFC3339
}

// GoogleEventTime is either a dateTime with offset or a date-only all-day value.
type GoogleEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

func (e GoogleEvent) Cancelled() bool { return e.Status == "cancelled" }

// UpdatedTime parses the provider-reported modification timestamp.
func (e GoogleEvent) UpdatedTime() time.Time {
	t, err := time.Parse(time.RFC3339, e.Updated)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ContentHash is a stable digest of the remote event's synced fields. Stored
// on the mapping for diagnostics.
func (e GoogleEvent) ContentHash() string {
	payload := struct {
		Summary     string           `json:"summary"`
		Description string           `json:"description"`
		Location    string           `json:"location"`
		Start       *GoogleEventTime `json:"start"`
		End         *GoogleEventTime `json:"end"`
	}{e.Summary, e.Description, e.Location, e.Start, e.End}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
