package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RidhwanAhamed/aqademiq-sync/core"
	"github.com/RidhwanAhamed/aqademiq-sync/core/schedule"
	"github.com/RidhwanAhamed/aqademiq-sync/core/user"
)

type noopLogger struct{}

func (noopLogger) Enable(bool)                  {}
func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}

// opRepoStub records created operations and returns them untouched, the way
// a SQL repository inserting caller-supplied ids does.
type opRepoStub struct {
	Repository
	created  []Operation
	finished []string
}

func (s *opRepoStub) GetCredential(context.Context, string) (Credential, error) {
	return Credential{}, ErrCredentialNotFound
}

func (s *opRepoStub) GetConflict(_ context.Context, userID, id string) (Conflict, error) {
	return Conflict{ID: id, UserID: userID, MappingID: "m1"}, nil
}

func (s *opRepoStub) GetMappingByID(_ context.Context, userID, id string) (EventMapping, error) {
	return EventMapping{ID: id, UserID: userID, EntityKind: schedule.KindScheduleBlock, EntityID: "e1"}, nil
}

func (s *opRepoStub) CreateOperation(_ context.Context, op Operation) (Operation, error) {
	s.created = append(s.created, op)
	return op, nil
}

func (s *opRepoStub) FinishOperation(_ context.Context, id, _, _ string) error {
	s.finished = append(s.finished, id)
	return nil
}

type userRepoStub struct {
	user.Repository
}

func (userRepoStub) GetUserByID(context.Context, string) (user.User, error) {
	return user.User{}, user.ErrNotFound
}

// Audit rows must arrive at the repository with an id already assigned; the
// SQL repository inserts whatever id it is handed.
func TestOperationIDsAssigned(t *testing.T) {
	ctx := context.Background()
	conf := &core.Config{
		Sync: core.SyncConfig{
			PassBudget:         time.Second,
			TokenRefreshMargin: 5 * time.Minute,
		},
	}
	repo := &opRepoStub{}
	svc := NewService(conf, noopLogger{}, repo, nil, userRepoStub{}, nil, nil)

	t.Run("sync pass", func(t *testing.T) {
		if _, err := svc.FullSync(ctx, "u1"); !errors.Is(err, ErrCredentialNotFound) {
			t.Fatalf("FullSync() error = %v, want %v", err, ErrCredentialNotFound)
		}
		if len(repo.created) != 1 {
			t.Fatalf("created %d operations, want 1", len(repo.created))
		}
		op := repo.created[0]
		if op.ID == "" {
			t.Error("operation created without an id")
		}
		if op.Type != OpFull || op.Status != StatusPending {
			t.Errorf("operation = %+v", op)
		}
		if len(repo.finished) != 1 || repo.finished[0] != op.ID {
			t.Errorf("finished ids = %v, want [%s]", repo.finished, op.ID)
		}
	})

	t.Run("conflict resolution", func(t *testing.T) {
		_, err := svc.ResolveConflict(ctx, "u1", Resolution{ConflictID: "c1", Type: ResolvePreferLocal})
		if err == nil {
			t.Fatal("ResolveConflict() error = nil, want entity load failure")
		}
		if len(repo.created) != 2 {
			t.Fatalf("created %d operations, want 2", len(repo.created))
		}
		op := repo.created[1]
		if op.ID == "" {
			t.Error("resolution operation created without an id")
		}
		if op.ID == repo.created[0].ID {
			t.Error("operation ids are not unique")
		}
		if op.Type != OpConflictResolution {
			t.Errorf("operation = %+v", op)
		}
	})
}
