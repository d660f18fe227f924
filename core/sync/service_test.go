package sync_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/RidhwanAhamed/aqademiq-sync/core"
	"github.com/RidhwanAhamed/aqademiq-sync/core/schedule"
	syncx "github.com/RidhwanAhamed/aqademiq-sync/core/sync"
	"github.com/RidhwanAhamed/aqademiq-sync/core/user"
	inmemdb "github.com/RidhwanAhamed/aqademiq-sync/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type mailRecorder struct {
	mutex    stdsync.Mutex
	messages []*core.EmailMessage
}

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.messages = append(m.messages, messages...)
}

// fakeProvider serves a single canned page and records every write. Export
// phases call it concurrently.
type fakeProvider struct {
	mutex stdsync.Mutex

	page         syncx.EventPage
	expiredToken string // reject this sync token with ErrSyncTokenExpired
	refreshErr   error

	listQueries []syncx.EventQuery
	inserted    []syncx.GoogleEvent
	patched     []syncx.GoogleEvent
	patchedIDs  []string
	watched     int
}

var _ syncx.Provider = (*fakeProvider)(nil)

func (p *fakeProvider) RefreshAccessToken(context.Context, string) (syncx.TokenResponse, error) {
	if p.refreshErr != nil {
		return syncx.TokenResponse{}, p.refreshErr
	}
	return syncx.TokenResponse{AccessToken: "fresh", ExpiresIn: 3600}, nil
}

func (p *fakeProvider) ListEvents(_ context.Context, _, _ string, q syncx.EventQuery) (syncx.EventPage, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.listQueries = append(p.listQueries, q)
	if q.SyncToken != "" && q.SyncToken == p.expiredToken {
		return syncx.EventPage{}, syncx.ErrSyncTokenExpired
	}
	return p.page, nil
}

func (p *fakeProvider) InsertEvent(_ context.Context, _, _ string, ev *syncx.GoogleEvent) (*syncx.GoogleEvent, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	created := *ev
	created.ID = fmt.Sprintf("exp-%d", len(p.inserted)+1)
	created.Status = "confirmed"
	created.Updated = time.Now().UTC().Format(time.RFC3339)
	p.inserted = append(p.inserted, created)
	return &created, nil
}

func (p *fakeProvider) PatchEvent(_ context.Context, _, _, eventID string, ev *syncx.GoogleEvent) (*syncx.GoogleEvent, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	patched := *ev
	patched.ID = eventID
	patched.Updated = time.Now().UTC().Format(time.RFC3339)
	p.patched = append(p.patched, patched)
	p.patchedIDs = append(p.patchedIDs, eventID)
	return &patched, nil
}

func (p *fakeProvider) DeleteEvent(context.Context, string, string, string) error { return nil }

func (p *fakeProvider) WatchEvents(_ context.Context, _, _, channelID, _ string, ttl time.Duration) (syncx.Channel, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.watched++
	return syncx.Channel{ID: channelID, ResourceID: "res-1", Expiration: time.Now().UTC().Add(ttl)}, nil
}

func (p *fakeProvider) listCalls() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.listQueries)
}

func testConfig() *core.Config {
	return &core.Config{
		AppName:  "Aqademiq",
		TestMode: true,
		Google:   core.GoogleConfig{WebhookURL: "https://api.test.local/v1/sync/webhook"},
		Sync: core.SyncConfig{
			PassBudget:          30 * time.Second,
			TokenRefreshMargin:  5 * time.Minute,
			FullWindowPast:      30 * 24 * time.Hour,
			FullWindowFuture:    90 * 24 * time.Hour,
			IncrementalFallback: 7 * 24 * time.Hour,
			WebhookChannelTTL:   7 * 24 * time.Hour,
		},
	}
}

type testEnv struct {
	svc       *syncx.Service
	repo      syncx.Repository
	schedRepo schedule.Repository
	provider  *fakeProvider
	mail      *mailRecorder
	usr       user.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() error = %v", err)
	}
	repo := inmemdb.NewSyncRepository(db)
	schedRepo := inmemdb.NewScheduleRepository(db)
	userRepo := inmemdb.NewUserRepository(db)

	usr := user.User{ID: uuid.New().String(), Name: "Awa", Email: "awa@test.cd", Timezone: "Europe/Vienna", IsActive: true}
	if usr, err = userRepo.CreateUser(ctx, usr); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	provider := &fakeProvider{}
	mailRec := &mailRecorder{}
	svc := syncx.NewService(testConfig(), nopLogger{}, repo, schedRepo, userRepo, provider, mailRec)

	if err = svc.Connect(ctx, usr.ID, "access", "refresh", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	return &testEnv{svc: svc, repo: repo, schedRepo: schedRepo, provider: provider, mail: mailRec, usr: usr}
}

func remoteEvent(id, summary, start, end string, updated time.Time) syncx.GoogleEvent {
	ev := syncx.GoogleEvent{
		ID:      id,
		Status:  "confirmed",
		Summary: summary,
		Start:   &syncx.GoogleEventTime{DateTime: start, TimeZone: "Europe/Vienna"},
		Updated: updated.Format(time.RFC3339),
	}
	if end != "" {
		ev.End = &syncx.GoogleEventTime{DateTime: end, TimeZone: "Europe/Vienna"}
	}
	return ev
}

// seedMappedBlock creates a schedule block plus its mapping with every
// timestamp pinned to lastSynced, so tests can move either side around it.
func seedMappedBlock(t *testing.T, env *testEnv, eventID string, lastSynced time.Time) schedule.ScheduleBlock {
	t.Helper()
	ctx := context.Background()

	blk := schedule.ScheduleBlock{
		ID:         uuid.New().String(),
		UserID:     env.usr.ID,
		Title:      "Linear Algebra",
		DayOfWeek:  1,
		StartTime:  time.Date(2026, 5, 11, 14, 0, 0, 0, time.UTC),
		EndTime:    time.Date(2026, 5, 11, 15, 30, 0, 0, time.UTC),
		Recurrence: schedule.RecurrenceNone,
		CreatedAt:  lastSynced,
		UpdatedAt:  lastSynced,
	}
	blk, err := env.schedRepo.CreateScheduleBlock(ctx, blk)
	if err != nil {
		t.Fatalf("CreateScheduleBlock() error = %v", err)
	}

	_, err = env.repo.CreateMapping(ctx, syncx.EventMapping{
		ID:              uuid.New().String(),
		UserID:          env.usr.ID,
		EntityKind:      schedule.KindScheduleBlock,
		EntityID:        blk.ID,
		GoogleEventID:   eventID,
		CalendarID:      syncx.DefaultCalendarID,
		RemoteUpdatedAt: lastSynced,
		LocalUpdatedAt:  lastSynced,
		LastSyncedAt:    lastSynced,
		CreatedAt:       lastSynced,
		UpdatedAt:       lastSynced,
	})
	if err != nil {
		t.Fatalf("CreateMapping() error = %v", err)
	}
	return blk
}

func TestFullSyncImportsExam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	updated := time.Now().UTC().Add(-time.Hour)
	env.provider.page = syncx.EventPage{
		Items: []syncx.GoogleEvent{
			remoteEvent("g1", "Exam: Midterm", "2026-05-10T14:00:00+02:00", "2026-05-10T16:00:00+02:00", updated),
		},
		NextSyncToken: "cursor-1",
	}

	summary, err := env.svc.FullSync(ctx, env.usr.ID)
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if summary.Imported != 1 {
		t.Errorf("Imported = %d, want 1", summary.Imported)
	}

	mapping, err := env.repo.GetMappingByEvent(ctx, env.usr.ID, "g1")
	if err != nil {
		t.Fatalf("GetMappingByEvent() error = %v", err)
	}
	if mapping.EntityKind != schedule.KindExam {
		t.Errorf("EntityKind = %q, want %q", mapping.EntityKind, schedule.KindExam)
	}

	exm, err := env.schedRepo.GetExam(ctx, env.usr.ID, mapping.EntityID)
	if err != nil {
		t.Fatalf("GetExam() error = %v", err)
	}
	if exm.Title != "Exam: Midterm" {
		t.Errorf("Title = %q", exm.Title)
	}
	// wall-clock: the +02:00 offset must be stripped, not converted
	if want := time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC); !exm.ExamDate.Equal(want) {
		t.Errorf("ExamDate = %v, want %v", exm.ExamDate, want)
	}
	if exm.DurationMinutes != 120 {
		t.Errorf("DurationMinutes = %d, want 120", exm.DurationMinutes)
	}

	tok, err := env.repo.GetSyncToken(ctx, env.usr.ID, syncx.DefaultCalendarID)
	if err != nil {
		t.Fatalf("GetSyncToken() error = %v", err)
	}
	if tok.Token != "cursor-1" {
		t.Errorf("sync token = %q, want %q", tok.Token, "cursor-1")
	}

	// the completed pass is on the audit trail
	ops, err := env.svc.Operations(ctx, env.usr.ID, 10)
	if err != nil {
		t.Fatalf("Operations() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Type != syncx.OpFull || ops[0].Status != syncx.StatusCompleted {
		t.Errorf("operations = %+v", ops)
	}
}

func TestRepeatedImportIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	updated := time.Now().UTC().Add(-time.Hour)
	env.provider.page = syncx.EventPage{
		Items: []syncx.GoogleEvent{
			remoteEvent("g1", "Exam: Midterm", "2026-05-10T14:00:00+02:00", "2026-05-10T16:00:00+02:00", updated),
		},
	}

	if _, err := env.svc.FullSync(ctx, env.usr.ID); err != nil {
		t.Fatalf("FullSync() #1 error = %v", err)
	}
	summary, err := env.svc.FullSync(ctx, env.usr.ID)
	if err != nil {
		t.Fatalf("FullSync() #2 error = %v", err)
	}

	if summary.Imported != 0 {
		t.Errorf("Imported = %d, want 0 on redelivery", summary.Imported)
	}
	if summary.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", summary.Skipped)
	}

	exams, err := env.schedRepo.QueryExams(ctx, env.usr.ID)
	if err != nil {
		t.Fatalf("QueryExams() error = %v", err)
	}
	if len(exams) != 1 {
		t.Errorf("exam count = %d, want exactly 1", len(exams))
	}
}

func TestRemoteCancellationKeepsLocalEntity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	lastSynced := time.Now().UTC().Add(-time.Hour)
	blk := seedMappedBlock(t, env, "g1", lastSynced)

	env.provider.page = syncx.EventPage{Items: []syncx.GoogleEvent{{ID: "g1", Status: "cancelled"}}}

	summary, err := env.svc.FullSync(ctx, env.usr.ID)
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if summary.Removed != 1 {
		t.Errorf("Removed = %d, want 1", summary.Removed)
	}

	if _, err = env.repo.GetMappingByEvent(ctx, env.usr.ID, "g1"); !errors.Is(err, syncx.ErrMappingNotFound) {
		t.Errorf("mapping lookup error = %v, want %v", err, syncx.ErrMappingNotFound)
	}
	// the local block must survive the remote deletion
	if _, err = env.schedRepo.GetScheduleBlock(ctx, env.usr.ID, blk.ID); err != nil {
		t.Errorf("GetScheduleBlock() error = %v, local entity must not be cascaded", err)
	}
}

func TestRemoteOnlyChangeUpdatesLocal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	lastSynced := time.Now().UTC().Add(-time.Hour)
	blk := seedMappedBlock(t, env, "g2", lastSynced)

	env.provider.page = syncx.EventPage{Items: []syncx.GoogleEvent{
		remoteEvent("g2", "Linear Algebra II", "2026-05-11T15:00:00+02:00", "2026-05-11T16:30:00+02:00", lastSynced.Add(10*time.Minute)),
	}}

	summary, err := env.svc.FullSync(ctx, env.usr.ID)
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if summary.Updated != 1 || summary.Conflicts != 0 {
		t.Errorf("summary = %+v, want one update and no conflict", summary)
	}

	got, err := env.schedRepo.GetScheduleBlock(ctx, env.usr.ID, blk.ID)
	if err != nil {
		t.Fatalf("GetScheduleBlock() error = %v", err)
	}
	if got.Title != "Linear Algebra II" {
		t.Errorf("Title = %q, want remote state applied", got.Title)
	}
	if want := time.Date(2026, 5, 11, 15, 0, 0, 0, time.UTC); !got.StartTime.Equal(want) {
		t.Errorf("StartTime = %v, want %v", got.StartTime, want)
	}
}

func TestLocalOnlyChangePushesToRemote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	lastSynced := time.Now().UTC().Add(-time.Hour)
	blk := seedMappedBlock(t, env, "g2", lastSynced)

	blk.Title = "Moved Lecture"
	blk.UpdatedAt = lastSynced.Add(10 * time.Minute)
	if _, err := env.schedRepo.UpdateScheduleBlock(ctx, blk); err != nil {
		t.Fatalf("UpdateScheduleBlock() error = %v", err)
	}

	// remote untouched since the last sync
	env.provider.page = syncx.EventPage{Items: []syncx.GoogleEvent{
		remoteEvent("g2", "Linear Algebra", "2026-05-11T14:00:00+02:00", "2026-05-11T15:30:00+02:00", lastSynced),
	}}

	summary, err := env.svc.FullSync(ctx, env.usr.ID)
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if summary.Updated != 1 || summary.Conflicts != 0 {
		t.Errorf("summary = %+v, want one update and no conflict", summary)
	}

	if len(env.provider.patched) != 1 {
		t.Fatalf("patched %d events, want 1", len(env.provider.patched))
	}
	patch := env.provider.patched[0]
	if env.provider.patchedIDs[0] != "g2" {
		t.Errorf("patched event id = %q, want %q", env.provider.patchedIDs[0], "g2")
	}
	if patch.Summary != "Moved Lecture" {
		t.Errorf("pushed Summary = %q", patch.Summary)
	}
	// round-trip fidelity: 14:00-15:30 in the user's timezone, no UTC drift
	if patch.Start.DateTime != "2026-05-11T14:00:00" || patch.Start.TimeZone != "Europe/Vienna" {
		t.Errorf("pushed Start = %+v", patch.Start)
	}
	if patch.End.DateTime != "2026-05-11T15:30:00" {
		t.Errorf("pushed End = %+v", patch.End)
	}
}

func TestBothChangedRecordsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	lastSynced := time.Now().UTC().Add(-time.Hour)
	blk := seedMappedBlock(t, env, "g2", lastSynced)

	blk.Title = "Moved Lecture"
	blk.UpdatedAt = lastSynced.Add(10 * time.Minute)
	if _, err := env.schedRepo.UpdateScheduleBlock(ctx, blk); err != nil {
		t.Fatalf("UpdateScheduleBlock() error = %v", err)
	}

	env.provider.page = syncx.EventPage{Items: []syncx.GoogleEvent{
		remoteEvent("g2", "Linear Algebra II", "2026-05-11T15:00:00+02:00", "2026-05-11T16:30:00+02:00", lastSynced.Add(20*time.Minute)),
	}}

	summary, err := env.svc.FullSync(ctx, env.usr.ID)
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if summary.Conflicts != 1 || summary.Updated != 0 {
		t.Errorf("summary = %+v, want one conflict and no silent update", summary)
	}

	conflicts, err := env.svc.Conflicts(ctx, env.usr.ID, true /* unresolvedOnly */)
	if err != nil {
		t.Fatalf("Conflicts() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("conflict count = %d, want 1", len(conflicts))
	}
	c := conflicts[0]
	if c.Kind != syncx.ConflictBothModified || c.Resolved() {
		t.Errorf("conflict = %+v", c)
	}
	if len(c.LocalSnapshot) == 0 || len(c.RemoteSnapshot) == 0 {
		t.Error("conflict must carry both snapshots")
	}

	// neither side is touched until the user decides
	got, _ := env.schedRepo.GetScheduleBlock(ctx, env.usr.ID, blk.ID)
	if got.Title != "Moved Lecture" {
		t.Errorf("local Title = %q, want untouched", got.Title)
	}
	if len(env.provider.patched) != 0 {
		t.Errorf("patched %d events, want 0", len(env.provider.patched))
	}
}

func TestConflictResolutionIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	lastSynced := time.Now().UTC().Add(-time.Hour)
	blk := seedMappedBlock(t, env, "g2", lastSynced)
	blk.Title = "Moved Lecture"
	blk.UpdatedAt = lastSynced.Add(10 * time.Minute)
	if _, err := env.schedRepo.UpdateScheduleBlock(ctx, blk); err != nil {
		t.Fatalf("UpdateScheduleBlock() error = %v", err)
	}
	env.provider.page = syncx.EventPage{Items: []syncx.GoogleEvent{
		remoteEvent("g2", "Linear Algebra II", "2026-05-11T15:00:00+02:00", "2026-05-11T16:30:00+02:00", lastSynced.Add(20*time.Minute)),
	}}
	if _, err := env.svc.FullSync(ctx, env.usr.ID); err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	conflicts, _ := env.svc.Conflicts(ctx, env.usr.ID, true)
	if len(conflicts) != 1 {
		t.Fatalf("conflict count = %d, want 1", len(conflicts))
	}

	res := syncx.Resolution{ConflictID: conflicts[0].ID, Type: syncx.ResolvePreferLocal}
	resolved, err := env.svc.ResolveConflict(ctx, env.usr.ID, res)
	if err != nil {
		t.Fatalf("ResolveConflict() error = %v", err)
	}
	if !resolved.Resolved() || resolved.Resolution.String != syncx.ResolvePreferLocal {
		t.Errorf("resolved = %+v", resolved)
	}

	// prefer_local pushes the current local state
	if len(env.provider.patched) != 1 || env.provider.patched[0].Summary != "Moved Lecture" {
		t.Errorf("patched = %+v, want local state pushed", env.provider.patched)
	}

	// a resolved conflict is terminal
	if _, err = env.svc.ResolveConflict(ctx, env.usr.ID, res); !errors.Is(err, syncx.ErrConflictNotFound) {
		t.Errorf("second ResolveConflict() error = %v, want %v", err, syncx.ErrConflictNotFound)
	}

	// the resolution shows up on the audit trail
	ops, _ := env.svc.Operations(ctx, env.usr.ID, 10)
	var found bool
	for _, op := range ops {
		if op.Type == syncx.OpConflictResolution && op.Status == syncx.StatusCompleted {
			found = true
		}
	}
	if !found {
		t.Errorf("operations = %+v, want a completed conflict_resolution", ops)
	}

	// resolving advanced last-synced-at: the same pair is not re-flagged
	summary, err := env.svc.FullSync(ctx, env.usr.ID)
	if err != nil {
		t.Fatalf("FullSync() after resolution error = %v", err)
	}
	if summary.Conflicts != 0 {
		t.Errorf("Conflicts = %d after resolution, want 0", summary.Conflicts)
	}
}

func TestResolvePreferGoogleAppliesSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	lastSynced := time.Now().UTC().Add(-time.Hour)
	blk := seedMappedBlock(t, env, "g2", lastSynced)
	blk.Title = "Moved Lecture"
	blk.UpdatedAt = lastSynced.Add(10 * time.Minute)
	if _, err := env.schedRepo.UpdateScheduleBlock(ctx, blk); err != nil {
		t.Fatalf("UpdateScheduleBlock() error = %v", err)
	}
	env.provider.page = syncx.EventPage{Items: []syncx.GoogleEvent{
		remoteEvent("g2", "Linear Algebra II", "2026-05-11T15:00:00+02:00", "2026-05-11T16:30:00+02:00", lastSynced.Add(20*time.Minute)),
	}}
	if _, err := env.svc.FullSync(ctx, env.usr.ID); err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	conflicts, _ := env.svc.Conflicts(ctx, env.usr.ID, true)
	if len(conflicts) != 1 {
		t.Fatalf("conflict count = %d, want 1", len(conflicts))
	}

	_, err := env.svc.ResolveConflict(ctx, env.usr.ID, syncx.Resolution{ConflictID: conflicts[0].ID, Type: syncx.ResolvePreferGoogle})
	if err != nil {
		t.Fatalf("ResolveConflict() error = %v", err)
	}

	got, _ := env.schedRepo.GetScheduleBlock(ctx, env.usr.ID, blk.ID)
	if got.Title != "Linear Algebra II" {
		t.Errorf("Title = %q, want remote snapshot applied", got.Title)
	}
	if want := time.Date(2026, 5, 11, 15, 0, 0, 0, time.UTC); !got.StartTime.Equal(want) {
		t.Errorf("StartTime = %v, want %v", got.StartTime, want)
	}
	if len(env.provider.patched) != 0 {
		t.Errorf("patched %d events, prefer_google must not push", len(env.provider.patched))
	}
}

func TestResolveMergeAppliesToBothSides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	lastSynced := time.Now().UTC().Add(-time.Hour)
	blk := seedMappedBlock(t, env, "g2", lastSynced)
	blk.UpdatedAt = lastSynced.Add(10 * time.Minute)
	if _, err := env.schedRepo.UpdateScheduleBlock(ctx, blk); err != nil {
		t.Fatalf("UpdateScheduleBlock() error = %v", err)
	}
	env.provider.page = syncx.EventPage{Items: []syncx.GoogleEvent{
		remoteEvent("g2", "Linear Algebra II", "2026-05-11T15:00:00+02:00", "2026-05-11T16:30:00+02:00", lastSynced.Add(20*time.Minute)),
	}}
	if _, err := env.svc.FullSync(ctx, env.usr.ID); err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	conflicts, _ := env.svc.Conflicts(ctx, env.usr.ID, true)
	if len(conflicts) != 1 {
		t.Fatalf("conflict count = %d, want 1", len(conflicts))
	}

	merged := syncx.GoogleEvent{
		Summary: "Merged Lecture",
		Start:   &syncx.GoogleEventTime{DateTime: "2026-05-11T16:00:00", TimeZone: "Europe/Vienna"},
		End:     &syncx.GoogleEventTime{DateTime: "2026-05-11T17:30:00", TimeZone: "Europe/Vienna"},
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	_, err = env.svc.ResolveConflict(ctx, env.usr.ID, syncx.Resolution{
		ConflictID:   conflicts[0].ID,
		Type:         syncx.ResolveMerge,
		ResolvedData: raw,
	})
	if err != nil {
		t.Fatalf("ResolveConflict() error = %v", err)
	}

	got, _ := env.schedRepo.GetScheduleBlock(ctx, env.usr.ID, blk.ID)
	if got.Title != "Merged Lecture" {
		t.Errorf("local Title = %q, want merged payload applied", got.Title)
	}
	if len(env.provider.patched) != 1 || env.provider.patched[0].Summary != "Merged Lecture" {
		t.Errorf("patched = %+v, want merged payload pushed", env.provider.patched)
	}
}

func TestExpiredSyncTokenFallsBackToFullSync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.repo.SaveSyncToken(ctx, syncx.Token{
		UserID:     env.usr.ID,
		CalendarID: syncx.DefaultCalendarID,
		Token:      "stale",
		UpdatedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("SaveSyncToken() error = %v", err)
	}
	env.provider.expiredToken = "stale"
	env.provider.page = syncx.EventPage{
		Items: []syncx.GoogleEvent{
			remoteEvent("g3", "Biology Lecture", "2026-05-12T09:00:00+02:00", "2026-05-12T10:30:00+02:00", time.Now().UTC().Add(-time.Hour)),
		},
		NextSyncToken: "cursor-2",
	}

	summary, err := env.svc.IncrementalSync(ctx, env.usr.ID)
	if err != nil {
		t.Fatalf("IncrementalSync() error = %v", err)
	}
	if !summary.Fallback {
		t.Error("Fallback = false, want true")
	}
	if summary.Imported != 1 {
		t.Errorf("Imported = %d, want 1", summary.Imported)
	}

	// the rejected cursor tried first, then the full window
	if n := env.provider.listCalls(); n < 2 {
		t.Fatalf("list calls = %d, want at least 2", n)
	}
	if q := env.provider.listQueries[0]; q.SyncToken != "stale" {
		t.Errorf("first query = %+v, want the stored cursor", q)
	}
	if q := env.provider.listQueries[1]; q.SyncToken != "" || q.TimeMin.IsZero() {
		t.Errorf("second query = %+v, want a full window scan", q)
	}

	tok, err := env.repo.GetSyncToken(ctx, env.usr.ID, syncx.DefaultCalendarID)
	if err != nil {
		t.Fatalf("GetSyncToken() error = %v", err)
	}
	if tok.Token != "cursor-2" {
		t.Errorf("sync token = %q, want replaced with %q", tok.Token, "cursor-2")
	}

	ops, _ := env.svc.Operations(ctx, env.usr.ID, 10)
	if len(ops) != 1 {
		t.Fatalf("operation count = %d, want 1", len(ops))
	}
	if ops[0].Type != syncx.OpIncremental || ops[0].Status != syncx.StatusCompleted {
		t.Errorf("operation = %+v", ops[0])
	}
	if !strings.HasPrefix(ops[0].Message, "sync token expired, fell back to full sync: ") {
		t.Errorf("operation message = %q, want the fallback prefix", ops[0].Message)
	}
}

func TestIncrementalWithoutCursorScansRecentWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.IncrementalSync(ctx, env.usr.ID); err != nil {
		t.Fatalf("IncrementalSync() error = %v", err)
	}
	if n := env.provider.listCalls(); n != 1 {
		t.Fatalf("list calls = %d, want 1", n)
	}
	q := env.provider.listQueries[0]
	if q.SyncToken != "" || q.UpdatedMin.IsZero() {
		t.Errorf("query = %+v, want updatedMin-bounded scan", q)
	}
}

func TestExportUnmappedEntities(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := env.schedRepo.CreateScheduleBlock(ctx, schedule.ScheduleBlock{
		ID: uuid.New().String(), UserID: env.usr.ID, Title: "Linear Algebra",
		DayOfWeek: 1, StartTime: time.Date(2026, 5, 11, 14, 0, 0, 0, time.UTC),
		EndTime: time.Date(2026, 5, 11, 15, 30, 0, 0, time.UTC),
		Recurrence: schedule.RecurrenceNone, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateScheduleBlock() error = %v", err)
	}
	_, err = env.schedRepo.CreateAssignment(ctx, schedule.Assignment{
		ID: uuid.New().String(), UserID: env.usr.ID, Title: "Homework 3",
		DueAt: time.Date(2026, 5, 12, 23, 0, 0, 0, time.UTC), CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() error = %v", err)
	}
	_, err = env.schedRepo.CreateExam(ctx, schedule.Exam{
		ID: uuid.New().String(), UserID: env.usr.ID, Title: "Exam: Final",
		ExamDate: time.Date(2026, 6, 20, 9, 0, 0, 0, time.UTC), DurationMinutes: 180,
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateExam() error = %v", err)
	}

	summary, err := env.svc.FullSync(ctx, env.usr.ID)
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if summary.Exported != 3 {
		t.Errorf("Exported = %d, want 3", summary.Exported)
	}

	if len(env.provider.inserted) != 3 {
		t.Fatalf("inserted %d events, want 3", len(env.provider.inserted))
	}
	for _, ev := range env.provider.inserted {
		if !syncx.IsAppAuthored(ev) {
			t.Errorf("exported event %q is missing the provenance tag", ev.Summary)
		}
		if ev.Start.TimeZone != "Europe/Vienna" {
			t.Errorf("exported event %q timezone = %q", ev.Summary, ev.Start.TimeZone)
		}
	}

	mappings, err := env.repo.QueryMappings(ctx, env.usr.ID)
	if err != nil {
		t.Fatalf("QueryMappings() error = %v", err)
	}
	if len(mappings) != 3 {
		t.Errorf("mapping count = %d, want 3", len(mappings))
	}

	// a second pass has nothing left to export
	summary, err = env.svc.FullSync(ctx, env.usr.ID)
	if err != nil {
		t.Fatalf("FullSync() #2 error = %v", err)
	}
	if summary.Exported != 0 {
		t.Errorf("Exported = %d on second pass, want 0", summary.Exported)
	}
}

func TestAppAuthoredUnmappedEventIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ev := remoteEvent("g9", "Linear Algebra", "2026-05-11T14:00:00+02:00", "2026-05-11T15:30:00+02:00", time.Now().UTC().Add(-time.Hour))
	ev.Description = "[Aqademiq]\nexported earlier from another device"
	env.provider.page = syncx.EventPage{Items: []syncx.GoogleEvent{ev}}

	summary, err := env.svc.FullSync(ctx, env.usr.ID)
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if summary.Imported != 0 || summary.Skipped != 1 {
		t.Errorf("summary = %+v, want our own export skipped", summary)
	}

	blocks, _ := env.schedRepo.QueryScheduleBlocks(ctx, env.usr.ID)
	if len(blocks) != 0 {
		t.Errorf("block count = %d, want 0", len(blocks))
	}
}

func TestAuthExpiredFailsPassAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// force a refresh that the provider rejects
	if err := env.svc.Connect(ctx, env.usr.ID, "stale", "revoked", time.Now().UTC().Add(-time.Minute)); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	env.provider.refreshErr = syncx.ErrAuthExpired

	_, err := env.svc.FullSync(ctx, env.usr.ID)
	if !errors.Is(err, syncx.ErrAuthExpired) {
		t.Fatalf("FullSync() error = %v, want %v", err, syncx.ErrAuthExpired)
	}

	ops, _ := env.svc.Operations(ctx, env.usr.ID, 10)
	if len(ops) != 1 || ops[0].Status != syncx.StatusFailed {
		t.Errorf("operations = %+v, want one failed pass", ops)
	}

	if len(env.mail.messages) != 1 {
		t.Fatalf("sent %d emails, want 1", len(env.mail.messages))
	}
	msg := env.mail.messages[0]
	if msg.Subject != "Reconnect your Google Calendar" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if len(msg.To) != 1 || msg.To[0].Address != env.usr.Email {
		t.Errorf("To = %+v, want the account owner", msg.To)
	}
}

func TestWebhookLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.HandleWebhook(ctx, "unknown", "exists"); !errors.Is(err, syncx.ErrChannelNotFound) {
		t.Errorf("HandleWebhook() error = %v, want %v", err, syncx.ErrChannelNotFound)
	}

	ch, err := env.svc.SetupWebhook(ctx, env.usr.ID)
	if err != nil {
		t.Fatalf("SetupWebhook() error = %v", err)
	}
	if ch.ID == "" || ch.ResourceID != "res-1" || ch.UserID != env.usr.ID {
		t.Errorf("channel = %+v", ch)
	}

	// "sync" handshake pings do not trigger a pass
	if err = env.svc.HandleWebhook(ctx, ch.ID, "sync"); err != nil {
		t.Fatalf("HandleWebhook(sync) error = %v", err)
	}
	if n := env.provider.listCalls(); n != 0 {
		t.Errorf("list calls after handshake = %d, want 0", n)
	}

	if err = env.svc.HandleWebhook(ctx, ch.ID, "exists"); err != nil {
		t.Fatalf("HandleWebhook(exists) error = %v", err)
	}
	if n := env.provider.listCalls(); n != 1 {
		t.Errorf("list calls after change ping = %d, want 1", n)
	}

	ops, _ := env.svc.Operations(ctx, env.usr.ID, 10)
	if len(ops) != 1 || ops[0].Type != syncx.OpWebhook {
		t.Errorf("operations = %+v, want one webhook pass", ops)
	}
}

func TestResolutionValidate(t *testing.T) {
	validate := validator.New()

	tests := []struct {
		name    string
		res     syncx.Resolution
		wantErr bool
	}{
		{name: "prefer_local", res: syncx.Resolution{ConflictID: "c1", Type: syncx.ResolvePreferLocal}},
		{name: "prefer_google", res: syncx.Resolution{ConflictID: "c1", Type: syncx.ResolvePreferGoogle}},
		{name: "merge with payload", res: syncx.Resolution{ConflictID: "c1", Type: syncx.ResolveMerge, ResolvedData: json.RawMessage(`{"summary":"x"}`)}, wantErr: false},
		{name: "merge without payload", res: syncx.Resolution{ConflictID: "c1", Type: syncx.ResolveMerge}, wantErr: true},
		{name: "unknown strategy", res: syncx.Resolution{ConflictID: "c1", Type: "coin_flip"}, wantErr: true},
		{name: "missing conflict id", res: syncx.Resolution{Type: syncx.ResolvePreferLocal}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.res.Validate(validate, nil); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
