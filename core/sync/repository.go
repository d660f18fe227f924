package sync

import (
	"context"

	"github.com/RidhwanAhamed/aqademiq-sync/core/schedule"
)

// Repository is the engine's persistence surface over the sync tables.
// Mapping creation must surface the unique-constraint violation as
// ErrMappingExists so concurrent passes can treat it as "already mapped".
type Repository interface {
	// credentials
	GetCredential(ctx context.Context, userID string) (Credential, error)
	SaveCredential(ctx context.Context, cred Credential) error
	DeleteCredential(ctx context.Context, userID string) error

	// mappings
	CreateMapping(ctx context.Context, m EventMapping) (EventMapping, error)
	GetMappingByEvent(ctx context.Context, userID, googleEventID string) (EventMapping, error)
	GetMappingByEntity(ctx context.Context, userID string, kind schedule.Kind, entityID string) (EventMapping, error)
	GetMappingByID(ctx context.Context, userID, id string) (EventMapping, error)
	UpdateMapping(ctx context.Context, m EventMapping) (EventMapping, error)
	DeleteMapping(ctx context.Context, userID, id string) error
	QueryMappings(ctx context.Context, userID string) ([]EventMapping, error)

	// unmapped local entities, per kind (export phase input)
	QueryUnmappedScheduleBlocks(ctx context.Context, userID string) ([]schedule.ScheduleBlock, error)
	QueryUnmappedAssignments(ctx context.Context, userID string) ([]schedule.Assignment, error)
	QueryUnmappedExams(ctx context.Context, userID string) ([]schedule.Exam, error)

	// conflicts
	CreateConflict(ctx context.Context, c Conflict) (Conflict, error)
	GetConflict(ctx context.Context, userID, id string) (Conflict, error)
	UpdateConflict(ctx context.Context, c Conflict) (Conflict, error)
	QueryConflicts(ctx context.Context, userID string, unresolvedOnly bool) ([]Conflict, error)

	// operations (append-only audit)
	CreateOperation(ctx context.Context, op Operation) (Operation, error)
	FinishOperation(ctx context.Context, id, status, message string) error
	QueryOperations(ctx context.Context, userID string, limit int) ([]Operation, error)

	// sync tokens
	GetSyncToken(ctx context.Context, userID, calendarID string) (Token, error)
	SaveSyncToken(ctx context.Context, tok Token) error
	DeleteSyncToken(ctx context.Context, userID, calendarID string) error

	// webhook channels
	SaveChannel(ctx context.Context, ch Channel) error
	GetChannelByID(ctx context.Context, channelID string) (Channel, error)
}
