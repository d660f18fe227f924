package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/RidhwanAhamed/aqademiq-sync/core/schedule"
	syncx "github.com/RidhwanAhamed/aqademiq-sync/core/sync"
)

var _ syncx.Repository = (*syncRepository)(nil)

type syncRepository struct {
	db *DB
}

func NewSyncRepository(db *DB) *syncRepository {
	return &syncRepository{db: db}
}

func (repo *syncRepository) GetCredential(_ context.Context, userID string) (syncx.Credential, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cred, ok := repo.db.credentials[userID]; ok {
		return *cred, nil
	}
	return syncx.Credential{}, syncx.ErrCredentialNotFound
}

func (repo *syncRepository) SaveCredential(_ context.Context, cred syncx.Credential) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.credentials[cred.UserID] = &cred
	return nil
}

func (repo *syncRepository) DeleteCredential(_ context.Context, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.credentials, userID)
	return nil
}

func (repo *syncRepository) CreateMapping(_ context.Context, m syncx.EventMapping) (syncx.EventMapping, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.mappings {
		if existing.UserID != m.UserID {
			continue
		}
		if existing.GoogleEventID == m.GoogleEventID {
			return syncx.EventMapping{}, syncx.ErrMappingExists
		}
		if existing.EntityKind == m.EntityKind && existing.EntityID == m.EntityID {
			return syncx.EventMapping{}, syncx.ErrMappingExists
		}
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	repo.db.mappings[m.ID] = &m
	return m, nil
}

func (repo *syncRepository) GetMappingByEvent(_ context.Context, userID, googleEventID string) (syncx.EventMapping, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, m := range repo.db.mappings {
		if m.UserID == userID && m.GoogleEventID == googleEventID {
			return *m, nil
		}
	}
	return syncx.EventMapping{}, syncx.ErrMappingNotFound
}

func (repo *syncRepository) GetMappingByEntity(_ context.Context, userID string, kind schedule.Kind, entityID string) (syncx.EventMapping, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, m := range repo.db.mappings {
		if m.UserID == userID && m.EntityKind == kind && m.EntityID == entityID {
			return *m, nil
		}
	}
	return syncx.EventMapping{}, syncx.ErrMappingNotFound
}

func (repo *syncRepository) GetMappingByID(_ context.Context, userID, id string) (syncx.EventMapping, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if m, ok := repo.db.mappings[id]; ok && m.UserID == userID {
		return *m, nil
	}
	return syncx.EventMapping{}, syncx.ErrMappingNotFound
}

func (repo *syncRepository) UpdateMapping(_ context.Context, m syncx.EventMapping) (syncx.EventMapping, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if orig, ok := repo.db.mappings[m.ID]; !ok || orig.UserID != m.UserID {
		return syncx.EventMapping{}, syncx.ErrMappingNotFound
	}
	repo.db.mappings[m.ID] = &m
	return m, nil
}

func (repo *syncRepository) DeleteMapping(_ context.Context, userID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if m, ok := repo.db.mappings[id]; ok && m.UserID == userID {
		delete(repo.db.mappings, id)
	}
	return nil
}

func (repo *syncRepository) QueryMappings(_ context.Context, userID string) ([]syncx.EventMapping, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	mappings := make([]syncx.EventMapping, 0)
	for _, m := range repo.db.mappings {
		if m.UserID == userID {
			mappings = append(mappings, *m)
		}
	}
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].CreatedAt.Before(mappings[j].CreatedAt) })
	return mappings, nil
}

func (repo *syncRepository) QueryUnmappedScheduleBlocks(_ context.Context, userID string) ([]schedule.ScheduleBlock, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	blocks := make([]schedule.ScheduleBlock, 0)
	for _, blk := range repo.db.blocks {
		if blk.UserID == userID && !repo.mapped(userID, schedule.KindScheduleBlock, blk.ID) {
			blocks = append(blocks, *blk)
		}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].StartTime.Before(blocks[j].StartTime) })
	return blocks, nil
}

func (repo *syncRepository) QueryUnmappedAssignments(_ context.Context, userID string) ([]schedule.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	asgs := make([]schedule.Assignment, 0)
	for _, asg := range repo.db.assignments {
		if asg.UserID == userID && !repo.mapped(userID, schedule.KindAssignment, asg.ID) {
			asgs = append(asgs, *asg)
		}
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].DueAt.Before(asgs[j].DueAt) })
	return asgs, nil
}

func (repo *syncRepository) QueryUnmappedExams(_ context.Context, userID string) ([]schedule.Exam, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	exams := make([]schedule.Exam, 0)
	for _, exm := range repo.db.exams {
		if exm.UserID == userID && !repo.mapped(userID, schedule.KindExam, exm.ID) {
			exams = append(exams, *exm)
		}
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].ExamDate.Before(exams[j].ExamDate) })
	return exams, nil
}

// mapped must be called with the db mutex held.
func (repo *syncRepository) mapped(userID string, kind schedule.Kind, entityID string) bool {
	for _, m := range repo.db.mappings {
		if m.UserID == userID && m.EntityKind == kind && m.EntityID == entityID {
			return true
		}
	}
	return false
}

func (repo *syncRepository) CreateConflict(_ context.Context, c syncx.Conflict) (syncx.Conflict, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	repo.db.conflicts[c.ID] = &c
	return c, nil
}

func (repo *syncRepository) GetConflict(_ context.Context, userID, id string) (syncx.Conflict, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.conflicts[id]; ok && c.UserID == userID {
		return *c, nil
	}
	return syncx.Conflict{}, syncx.ErrConflictNotFound
}

func (repo *syncRepository) UpdateConflict(_ context.Context, c syncx.Conflict) (syncx.Conflict, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if orig, ok := repo.db.conflicts[c.ID]; !ok || orig.UserID != c.UserID {
		return syncx.Conflict{}, syncx.ErrConflictNotFound
	}
	repo.db.conflicts[c.ID] = &c
	return c, nil
}

func (repo *syncRepository) QueryConflicts(_ context.Context, userID string, unresolvedOnly bool) ([]syncx.Conflict, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	conflicts := make([]syncx.Conflict, 0)
	for _, c := range repo.db.conflicts {
		if c.UserID != userID {
			continue
		}
		if unresolvedOnly && c.Resolved() {
			continue
		}
		conflicts = append(conflicts, *c)
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].CreatedAt.After(conflicts[j].CreatedAt) })
	return conflicts, nil
}

func (repo *syncRepository) CreateOperation(_ context.Context, op syncx.Operation) (syncx.Operation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	repo.db.operations = append(repo.db.operations, &op)
	return op, nil
}

func (repo *syncRepository) FinishOperation(_ context.Context, id, status, message string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, op := range repo.db.operations {
		if op.ID == id {
			op.Status = status
			op.Message = message
			op.FinishedAt = null.TimeFrom(time.Now().UTC())
			return nil
		}
	}
	return nil
}

func (repo *syncRepository) QueryOperations(_ context.Context, userID string, limit int) ([]syncx.Operation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ops := make([]syncx.Operation, 0)
	for _, op := range repo.db.operations {
		if op.UserID == userID {
			ops = append(ops, *op)
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].StartedAt.After(ops[j].StartedAt) })
	if limit > 0 && len(ops) > limit {
		ops = ops[:limit]
	}
	return ops, nil
}

func (repo *syncRepository) GetSyncToken(_ context.Context, userID, calendarID string) (syncx.Token, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tok, ok := repo.db.syncTokens[[2]string{userID, calendarID}]; ok {
		return *tok, nil
	}
	return syncx.Token{}, syncx.ErrSyncTokenNotFound
}

func (repo *syncRepository) SaveSyncToken(_ context.Context, tok syncx.Token) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.syncTokens[[2]string{tok.UserID, tok.CalendarID}] = &tok
	return nil
}

func (repo *syncRepository) DeleteSyncToken(_ context.Context, userID, calendarID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.syncTokens, [2]string{userID, calendarID})
	return nil
}

func (repo *syncRepository) SaveChannel(_ context.Context, ch syncx.Channel) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.channels[ch.ID] = &ch
	return nil
}

func (repo *syncRepository) GetChannelByID(_ context.Context, channelID string) (syncx.Channel, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ch, ok := repo.db.channels[channelID]; ok {
		return *ch, nil
	}
	return syncx.Channel{}, syncx.ErrChannelNotFound
}
