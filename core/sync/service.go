package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/RidhwanAhamed/aqademiq-sync/core"
	"github.com/RidhwanAhamed/aqademiq-sync/core/schedule"
	"github.com/RidhwanAhamed/aqademiq-sync/core/user"
)

// DefaultCalendarID is the provider's alias for the user's main calendar.
const DefaultCalendarID = "primary"

// Summary aggregates what one pass did. Per-event failures are counted, not
// fatal; a failed Operation is only recorded when the pass as a whole throws.
type Summary struct {
	Imported  int  `json:"imported"`
	Updated   int  `json:"updated"`
	Exported  int  `json:"exported"`
	Conflicts int  `json:"conflicts"`
	Skipped   int  `json:"skipped"`
	Removed   int  `json:"removed"`
	Failed    int  `json:"failed"`
	Fallback  bool `json:"fallback,omitempty"`
}

func (s Summary) Message() string {
	msg := fmt.Sprintf("%d imported, %d updated, %d exported, %d conflicts, %d skipped, %d removed, %d failed",
		s.Imported, s.Updated, s.Exported, s.Conflicts, s.Skipped, s.Removed, s.Failed)
	if s.Fallback {
		msg = "sync token expired, fell back to full sync: " + msg
	}
	return msg
}

func (s *Summary) add(other Summary) {
	s.Imported += other.Imported
	s.Updated += other.Updated
	s.Exported += other.Exported
	s.Conflicts += other.Conflicts
	s.Skipped += other.Skipped
	s.Removed += other.Removed
	s.Failed += other.Failed
}

// Service drives full and incremental sync passes: token upkeep, remote
// fetch, the change decision table, conflict recording, unmapped-entity
// export, and the operation audit trail.
type Service struct {
	conf      *core.Config
	logger    core.Logger
	repo      Repository
	schedRepo schedule.Repository
	userRepo  user.Repository
	provider  Provider
	tokens    *TokenManager
	mapper    *Mapper
	mailSvc   core.EmailService
}

func NewService(
	conf *core.Config,
	logger core.Logger,
	repo Repository,
	schedRepo schedule.Repository,
	userRepo user.Repository,
	provider Provider,
	mailSvc core.EmailService,
) *Service {
	return &Service{
		conf:      conf,
		logger:    logger,
		repo:      repo,
		schedRepo: schedRepo,
		userRepo:  userRepo,
		provider:  provider,
		tokens:    NewTokenManager(repo, provider, conf.Sync.TokenRefreshMargin),
		mapper:    NewMapper(repo, schedRepo),
		mailSvc:   mailSvc,
	}
}

func (svc *Service) TokenManager() *TokenManager { return svc.tokens }

// Connect stores the OAuth grant obtained by the dashboard's consent flow.
// Last write wins when the user reconnects.
func (svc *Service) Connect(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) error {
	err := svc.repo.SaveCredential(ctx, Credential{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       expiry,
		UpdatedAt:    time.Now().UTC(),
	})
	return errors.Wrap(err, "saving credential")
}

// Disconnect wipes the stored grant; subsequent passes fail with
// ErrAuthExpired until the user reconnects.
func (svc *Service) Disconnect(ctx context.Context, userID string) error {
	return errors.Wrap(svc.repo.DeleteCredential(ctx, userID), "deleting credential")
}

// FullSync scans a fixed window (one month back, three months forward),
// imports/updates/conflicts each remote event, then exports every unmapped
// local entity.
func (svc *Service) FullSync(ctx context.Context, userID string) (Summary, error) {
	return svc.runPass(ctx, userID, OpFull, func(ctx context.Context, summary *Summary) error {
		return svc.fullPass(ctx, userID, summary)
	})
}

// IncrementalSync uses the stored cursor when present (last 7 days
// otherwise) and falls back to a full pass when the provider rejects the
// cursor as expired.
func (svc *Service) IncrementalSync(ctx context.Context, userID string) (Summary, error) {
	return svc.runPass(ctx, userID, OpIncremental, func(ctx context.Context, summary *Summary) error {
		return svc.incrementalPass(ctx, userID, summary)
	})
}

// WebhookSync is an incremental pass triggered by a provider push
// notification; it only differs in how the audit row is typed.
func (svc *Service) WebhookSync(ctx context.Context, userID string) (Summary, error) {
	return svc.runPass(ctx, userID, OpWebhook, func(ctx context.Context, summary *Summary) error {
		return svc.incrementalPass(ctx, userID, summary)
	})
}

// runPass wraps one sync entry point with the wall-clock budget and the
// pending/completed/failed operation lifecycle.
func (svc *Service) runPass(ctx context.Context, userID, opType string, pass func(context.Context, *Summary) error) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, svc.conf.Sync.PassBudget)
	defer cancel()

	op, err := svc.repo.CreateOperation(ctx, Operation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      opType,
		Status:    StatusPending,
		Direction: DirectionBoth,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		return Summary{}, errors.Wrap(err, "creating sync operation")
	}

	var summary Summary
	if err = pass(ctx, &summary); err != nil {
		msg := err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("timed out after %s: %s", svc.conf.Sync.PassBudget, msg)
		}
		// the pass context may already be past its deadline; the audit row
		// must still be written
		finishCtx, finishCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer finishCancel()
		_ = svc.repo.FinishOperation(finishCtx, op.ID, StatusFailed, msg)

		if errors.Is(err, ErrAuthExpired) {
			svc.notifyReconnect(finishCtx, userID)
		}
		return summary, err
	}

	_ = svc.repo.FinishOperation(ctx, op.ID, StatusCompleted, summary.Message())
	return summary, nil
}

func (svc *Service) fullPass(ctx context.Context, userID string, summary *Summary) error {
	accessToken, err := svc.tokens.EnsureAccessToken(ctx, userID)
	if err != nil {
		return err
	}
	usr, err := svc.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "loading user")
	}

	now := time.Now().UTC()
	q := EventQuery{
		TimeMin: now.Add(-svc.conf.Sync.FullWindowPast),
		TimeMax: now.Add(svc.conf.Sync.FullWindowFuture),
	}
	nextSyncToken, err := svc.importRemote(ctx, accessToken, usr, q, summary)
	if err != nil {
		return err
	}

	svc.exportUnmapped(ctx, accessToken, usr, summary)

	if nextSyncToken != "" {
		svc.saveSyncToken(ctx, userID, nextSyncToken)
	}
	return nil
}

func (svc *Service) incrementalPass(ctx context.Context, userID string, summary *Summary) error {
	accessToken, err := svc.tokens.EnsureAccessToken(ctx, userID)
	if err != nil {
		return err
	}
	usr, err := svc.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "loading user")
	}

	var q EventQuery
	tok, err := svc.repo.GetSyncToken(ctx, userID, DefaultCalendarID)
	switch {
	case err == nil:
		q.SyncToken = tok.Token
	case errors.Is(err, ErrSyncTokenNotFound):
		// initial window: only recently changed events
		q.UpdatedMin = time.Now().UTC().Add(-svc.conf.Sync.IncrementalFallback)
	default:
		return errors.Wrap(err, "loading sync token")
	}

	nextSyncToken, err := svc.importRemote(ctx, accessToken, usr, q, summary)
	if errors.Is(err, ErrSyncTokenExpired) {
		// provider invalidated the cursor (410): full resync instead
		svc.logger.Warn(fmt.Sprintf("sync token expired for user %s, falling back to full sync", userID))
		_ = svc.repo.DeleteSyncToken(ctx, userID, DefaultCalendarID)
		summary.Fallback = true
		return svc.fullPass(ctx, userID, summary)
	}
	if err != nil {
		return err
	}

	svc.exportUnmapped(ctx, accessToken, usr, summary)

	// Persist the cursor even when individual events failed, so redelivery
	// does not reprocess the whole window (at-least-once but bounded).
	if nextSyncToken != "" {
		svc.saveSyncToken(ctx, userID, nextSyncToken)
	}
	return nil
}

// importRemote pages through the provider's events and runs each through the
// change decision table. Per-event errors are logged and counted; only
// transport-level failures abort.
func (svc *Service) importRemote(ctx context.Context, accessToken string, usr user.User, q EventQuery, summary *Summary) (string, error) {
	var nextSyncToken string
	for {
		page, err := svc.provider.ListEvents(ctx, accessToken, DefaultCalendarID, q)
		if err != nil {
			return "", err
		}
		for _, ev := range page.Items {
			if err := svc.processRemoteEvent(ctx, usr, ev, summary); err != nil {
				summary.Failed++
				svc.logger.Warn(fmt.Sprintf("processing event %s: %v", ev.ID, err))
			}
		}
		if page.NextSyncToken != "" {
			nextSyncToken = page.NextSyncToken
		}
		if page.NextPageToken == "" {
			break
		}
		q.PageToken = page.NextPageToken
	}
	return nextSyncToken, nil
}

// processRemoteEvent applies the decision table for one remote event:
// cancelled drops the mapping only, unmapped gets imported (unless
// app-authored), mapped goes through change detection.
func (svc *Service) processRemoteEvent(ctx context.Context, usr user.User, ev GoogleEvent, summary *Summary) error {
	if ev.Cancelled() {
		mapping, err := svc.repo.GetMappingByEvent(ctx, usr.ID, ev.ID)
		if errors.Is(err, ErrMappingNotFound) {
			summary.Skipped++
			return nil
		}
		if err != nil {
			return err
		}
		// never cascade a remote deletion onto local data
		if err = svc.repo.DeleteMapping(ctx, usr.ID, mapping.ID); err != nil {
			return errors.Wrap(err, "removing mapping for cancelled event")
		}
		summary.Removed++
		return nil
	}

	mapping, err := svc.repo.GetMappingByEvent(ctx, usr.ID, ev.ID)
	if errors.Is(err, ErrMappingNotFound) {
		if IsAppAuthored(ev) {
			// authored by this app but not mapped here: skip rather than
			// re-import our own export
			summary.Skipped++
			return nil
		}
		if _, err = svc.mapper.ImportEvent(ctx, usr.ID, DefaultCalendarID, ev); err != nil {
			if errors.Is(err, ErrMappingExists) { // concurrent pass won the race
				summary.Skipped++
				return nil
			}
			return err
		}
		summary.Imported++
		return nil
	}
	if err != nil {
		return err
	}

	localUpdated, localExists, err := svc.localUpdatedAt(ctx, mapping)
	if err != nil {
		return err
	}
	if !localExists {
		// local entity was deleted through the UI: drop the mapping, leave
		// the remote event alone
		if err = svc.repo.DeleteMapping(ctx, usr.ID, mapping.ID); err != nil {
			return errors.Wrap(err, "removing mapping for deleted entity")
		}
		summary.Removed++
		return nil
	}

	switch DetectChange(mapping, ev.UpdatedTime(), false, localUpdated) {
	case ChangeNone:
		summary.Skipped++
		return nil

	case ChangeRemote:
		if err = svc.mapper.ApplyRemote(ctx, mapping, ev); err != nil {
			return err
		}
		summary.Updated++
		return svc.advanceMapping(ctx, mapping, ev)

	case ChangeLocal:
		payload, err := svc.exportPayload(ctx, mapping)
		if err != nil {
			return err
		}
		if err = svc.patchRemote(ctx, usr.ID, mapping, payload); err != nil {
			return err
		}
		summary.Updated++
		return svc.advanceMapping(ctx, mapping, ev)

	case ChangeBoth:
		if err = svc.recordConflict(ctx, mapping, ev); err != nil {
			return err
		}
		summary.Conflicts++
		return nil
	}
	return nil
}

// localUpdatedAt loads the mapped entity's modification time; the bool is
// false when the entity no longer exists.
func (svc *Service) localUpdatedAt(ctx context.Context, m EventMapping) (time.Time, bool, error) {
	var updatedAt time.Time
	var err error
	switch m.EntityKind {
	case schedule.KindExam:
		var exm schedule.Exam
		if exm, err = svc.schedRepo.GetExam(ctx, m.UserID, m.EntityID); err == nil {
			updatedAt = exm.UpdatedAt
		}
	case schedule.KindAssignment:
		var asg schedule.Assignment
		if asg, err = svc.schedRepo.GetAssignment(ctx, m.UserID, m.EntityID); err == nil {
			updatedAt = asg.UpdatedAt
		}
	default:
		var blk schedule.ScheduleBlock
		if blk, err = svc.schedRepo.GetScheduleBlock(ctx, m.UserID, m.EntityID); err == nil {
			updatedAt = blk.UpdatedAt
		}
	}
	if errors.Is(err, schedule.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "loading mapped entity")
	}
	return updatedAt, true, nil
}

func (svc *Service) advanceMapping(ctx context.Context, m EventMapping, ev GoogleEvent) error {
	now := time.Now().UTC()
	m.RemoteUpdatedAt = ev.UpdatedTime()
	m.LocalUpdatedAt = now
	m.LastSyncedAt = now
	m.RemoteHash = ev.ContentHash()
	m.UpdatedAt = now
	_, err := svc.repo.UpdateMapping(ctx, m)
	return errors.Wrap(err, "advancing mapping")
}

func (svc *Service) recordConflict(ctx context.Context, m EventMapping, ev GoogleEvent) error {
	localPayload, err := svc.localSnapshot(ctx, m)
	if err != nil {
		return err
	}
	remotePayload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encoding remote snapshot")
	}
	_, err = svc.repo.CreateConflict(ctx, Conflict{
		ID:             uuid.New().String(),
		UserID:         m.UserID,
		MappingID:      m.ID,
		Kind:           ConflictBothModified,
		LocalSnapshot:  localPayload,
		RemoteSnapshot: remotePayload,
		CreatedAt:      time.Now().UTC(),
	})
	return errors.Wrap(err, "recording conflict")
}

func (svc *Service) localSnapshot(ctx context.Context, m EventMapping) (json.RawMessage, error) {
	var entity interface{}
	var err error
	switch m.EntityKind {
	case schedule.KindExam:
		entity, err = svc.schedRepo.GetExam(ctx, m.UserID, m.EntityID)
	case schedule.KindAssignment:
		entity, err = svc.schedRepo.GetAssignment(ctx, m.UserID, m.EntityID)
	default:
		entity, err = svc.schedRepo.GetScheduleBlock(ctx, m.UserID, m.EntityID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading entity for snapshot")
	}
	raw, err := json.Marshal(entity)
	return raw, errors.Wrap(err, "encoding local snapshot")
}

// exportUnmapped pushes every local entity lacking a mapping to the
// provider. The three kinds touch disjoint sets and run concurrently.
// Failures here are per-event by definition and never abort the pass.
func (svc *Service) exportUnmapped(ctx context.Context, accessToken string, usr user.User, summary *Summary) {
	var wg stdsync.WaitGroup
	var mu stdsync.Mutex

	phases := []func(context.Context) Summary{
		func(ctx context.Context) Summary { return svc.exportBlocks(ctx, accessToken, usr) },
		func(ctx context.Context) Summary { return svc.exportAssignments(ctx, accessToken, usr) },
		func(ctx context.Context) Summary { return svc.exportExams(ctx, accessToken, usr) },
	}
	for _, phase := range phases {
		phase := phase
		wg.Add(1)
		go func() {
			defer wg.Done()
			part := phase(ctx)
			mu.Lock()
			summary.add(part)
			mu.Unlock()
		}()
	}
	wg.Wait()
}

func (svc *Service) exportBlocks(ctx context.Context, accessToken string, usr user.User) (part Summary) {
	blocks, err := svc.repo.QueryUnmappedScheduleBlocks(ctx, usr.ID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("querying unmapped schedule blocks: %v", err))
		part.Failed++
		return part
	}
	for _, blk := range blocks {
		svc.exportOne(ctx, accessToken, usr.ID, schedule.KindScheduleBlock, blk.ID, BlockEvent(blk, usr.Timezone), &part)
	}
	return part
}

func (svc *Service) exportAssignments(ctx context.Context, accessToken string, usr user.User) (part Summary) {
	assignments, err := svc.repo.QueryUnmappedAssignments(ctx, usr.ID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("querying unmapped assignments: %v", err))
		part.Failed++
		return part
	}
	for _, asg := range assignments {
		svc.exportOne(ctx, accessToken, usr.ID, schedule.KindAssignment, asg.ID, AssignmentEvent(asg, usr.Timezone), &part)
	}
	return part
}

func (svc *Service) exportExams(ctx context.Context, accessToken string, usr user.User) (part Summary) {
	exams, err := svc.repo.QueryUnmappedExams(ctx, usr.ID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("querying unmapped exams: %v", err))
		part.Failed++
		return part
	}
	for _, exm := range exams {
		svc.exportOne(ctx, accessToken, usr.ID, schedule.KindExam, exm.ID, ExamEvent(exm, usr.Timezone), &part)
	}
	return part
}

func (svc *Service) exportOne(ctx context.Context, accessToken, userID string, kind schedule.Kind, entityID string, payload *GoogleEvent, part *Summary) {
	created, err := svc.provider.InsertEvent(ctx, accessToken, DefaultCalendarID, payload)
	if err != nil {
		part.Failed++
		svc.logger.Warn(fmt.Sprintf("exporting %s %s: %v", kind, entityID, err))
		return
	}

	now := time.Now().UTC()
	_, err = svc.repo.CreateMapping(ctx, EventMapping{
		ID:              uuid.New().String(),
		UserID:          userID,
		EntityKind:      kind,
		EntityID:        entityID,
		GoogleEventID:   created.ID,
		CalendarID:      DefaultCalendarID,
		RemoteUpdatedAt: created.UpdatedTime(),
		LocalUpdatedAt:  now,
		LastSyncedAt:    now,
		RemoteHash:      created.ContentHash(),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if errors.Is(err, ErrMappingExists) { // concurrent pass already exported it
		part.Skipped++
		return
	}
	if err != nil {
		part.Failed++
		svc.logger.Warn(fmt.Sprintf("mapping exported %s %s: %v", kind, entityID, err))
		return
	}
	part.Exported++
}

func (svc *Service) saveSyncToken(ctx context.Context, userID, token string) {
	err := svc.repo.SaveSyncToken(ctx, Token{
		UserID:     userID,
		CalendarID: DefaultCalendarID,
		Token:      token,
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("persisting sync token for user %s: %v", userID, err))
	}
}

// SetupWebhook registers a push channel for the user's calendar so the
// provider notifies us on changes.
func (svc *Service) SetupWebhook(ctx context.Context, userID string) (Channel, error) {
	accessToken, err := svc.tokens.EnsureAccessToken(ctx, userID)
	if err != nil {
		return Channel{}, err
	}

	ch, err := svc.provider.WatchEvents(ctx, accessToken, DefaultCalendarID, uuid.New().String(), svc.conf.Google.WebhookURL, svc.conf.Sync.WebhookChannelTTL)
	if err != nil {
		return Channel{}, errors.Wrap(err, "registering watch channel")
	}
	ch.UserID = userID
	ch.CalendarID = DefaultCalendarID
	ch.CreatedAt = time.Now().UTC()

	if err = svc.repo.SaveChannel(ctx, ch); err != nil {
		return Channel{}, errors.Wrap(err, "persisting watch channel")
	}
	return ch, nil
}

// HandleWebhook resolves the push notification's channel to its owning user
// and, when the resource state signals a change, runs one incremental pass.
// Sync failures are only visible in the audit log: the provider's webhook
// contract wants a 200 once the channel lookup succeeds.
func (svc *Service) HandleWebhook(ctx context.Context, channelID, resourceState string) error {
	ch, err := svc.repo.GetChannelByID(ctx, channelID)
	if err != nil {
		return ErrChannelNotFound
	}

	if resourceState != "exists" { // "sync" handshake pings carry no change
		return nil
	}

	if _, err = svc.WebhookSync(ctx, ch.UserID); err != nil {
		svc.logger.Error(fmt.Sprintf("webhook-triggered sync for user %s: %v", ch.UserID, err), err)
	}
	return nil
}

// Conflicts lists the caller's conflicts, optionally only unresolved ones.
func (svc *Service) Conflicts(ctx context.Context, userID string, unresolvedOnly bool) ([]Conflict, error) {
	return svc.repo.QueryConflicts(ctx, userID, unresolvedOnly)
}

// Operations lists the caller's most recent audit rows.
func (svc *Service) Operations(ctx context.Context, userID string, limit int) ([]Operation, error) {
	return svc.repo.QueryOperations(ctx, userID, limit)
}

func (svc *Service) notifyReconnect(ctx context.Context, userID string) {
	usr, err := svc.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("loading user %s for reconnect notice: %v", userID, err))
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Reconnect your Google Calendar",
		TextContent: "We could no longer refresh your Google Calendar authorization. " +
			"Please reconnect your Google account from the dashboard settings to keep your schedule in sync.",
	})
}
