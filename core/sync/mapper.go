package sync

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/RidhwanAhamed/aqademiq-sync/core/schedule"
)

// provenanceTag marks app-authored events so round-trip imports recognize
// and skip them.
const provenanceTag = "[Aqademiq]"

const (
	wallClockLayout = "2006-01-02T15:04:05"
	dateOnlyLayout  = "2006-01-02"
)

// defaultExamDuration is assumed when an imported exam has no end time.
const defaultExamDuration = 2 * time.Hour

// googlePalette maps the app's course color tags to Google's fixed event
// palette. Unknown tags fall back to fallbackColorID.
var googlePalette = map[string]string{
	"lavender":  "1",
	"sage":      "2",
	"grape":     "3",
	"flamingo":  "4",
	"banana":    "5",
	"tangerine": "6",
	"peacock":   "7",
	"graphite":  "8",
	"blueberry": "9",
	"basil":     "10",
	"tomato":    "11",
}

const fallbackColorID = "7"

// ColorID resolves a local color tag to a Google palette id.
func ColorID(color string) string {
	if id, ok := googlePalette[strings.ToLower(color)]; ok {
		return id
	}
	return fallbackColorID
}

// ParseWallClock extracts the local wall-clock component of a Google event
// time. The offset suffix is stripped, not converted: the stored local time
// must round-trip without UTC drift. Date-only (all-day) values resolve to
// midnight.
func ParseWallClock(gt *GoogleEventTime) (t time.Time, allDay bool, err error) {
	if gt == nil {
		return time.Time{}, false, errors.New("event has no time")
	}
	if gt.Date != "" {
		t, err = time.ParseInLocation(dateOnlyLayout, gt.Date, time.UTC)
		return t, true, errors.Wrap(err, "parsing all-day date")
	}
	raw := gt.DateTime
	if len(raw) < len(wallClockLayout) {
		return time.Time{}, false, errors.Errorf("malformed event time %q", raw)
	}
	t, err = time.ParseInLocation(wallClockLayout, raw[:len(wallClockLayout)], time.UTC)
	return t, false, errors.Wrap(err, "parsing event time")
}

// FormatWallClock renders a stored wall-clock time for the provider. The
// user's timezone travels in the separate timeZone field, never as an offset.
func FormatWallClock(t time.Time) string {
	return t.Format(wallClockLayout)
}

// IsAppAuthored reports whether the remote event was created by this app.
func IsAppAuthored(ev GoogleEvent) bool {
	return strings.Contains(ev.Description, provenanceTag)
}

// Mapper translates between local schedule records and Google events, in
// both directions, writing the mapping row together with entity creation.
type Mapper struct {
	repo      Repository
	schedRepo schedule.Repository
}

func NewMapper(repo Repository, schedRepo schedule.Repository) *Mapper {
	return &Mapper{repo: repo, schedRepo: schedRepo}
}

// ImportEvent creates a local entity from a remote event, classified by
// title, plus the EventMapping linking the two. A duplicate mapping insert
// (concurrent pass or webhook redelivery) rolls the entity back and returns
// ErrMappingExists.
func (mp *Mapper) ImportEvent(ctx context.Context, userID, calendarID string, ev GoogleEvent) (EventMapping, error) {
	start, allDay, err := ParseWallClock(ev.Start)
	if err != nil {
		return EventMapping{}, err
	}

	end, haveEnd := start, false
	if ev.End != nil {
		if end, _, err = ParseWallClock(ev.End); err != nil {
			return EventMapping{}, err
		}
		haveEnd = true
	}
	if allDay && !haveEnd {
		end = start // midnight to midnight
	}

	kind := schedule.ClassifyTitle(ev.Summary)
	now := time.Now().UTC()

	var entityID string
	switch kind {
	case schedule.KindExam:
		duration := defaultExamDuration
		if haveEnd && end.After(start) {
			duration = end.Sub(start)
		}
		exm := schedule.Exam{
			ID:              uuid.New().String(),
			UserID:          userID,
			Title:           ev.Summary,
			Location:        ev.Location,
			Notes:           ev.Description,
			ExamDate:        start,
			DurationMinutes: int(duration / time.Minute),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if exm, err = mp.schedRepo.CreateExam(ctx, exm); err != nil {
			return EventMapping{}, errors.Wrap(err, "creating imported exam")
		}
		entityID = exm.ID

	case schedule.KindAssignment:
		asg := schedule.Assignment{
			ID:        uuid.New().String(),
			UserID:    userID,
			Title:     ev.Summary,
			Notes:     ev.Description,
			DueAt:     start,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if asg, err = mp.schedRepo.CreateAssignment(ctx, asg); err != nil {
			return EventMapping{}, errors.Wrap(err, "creating imported assignment")
		}
		entityID = asg.ID

	default:
		if !haveEnd || !end.After(start) {
			end = start.Add(time.Hour)
		}
		blk := schedule.ScheduleBlock{
			ID:           uuid.New().String(),
			UserID:       userID,
			Title:        ev.Summary,
			Location:     ev.Location,
			Notes:        ev.Description,
			DayOfWeek:    int(start.Weekday()),
			SpecificDate: null.TimeFrom(start.Truncate(24 * time.Hour)),
			StartTime:    start,
			EndTime:      end,
			Recurrence:   schedule.RecurrenceNone,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if blk, err = mp.schedRepo.CreateScheduleBlock(ctx, blk); err != nil {
			return EventMapping{}, errors.Wrap(err, "creating imported schedule block")
		}
		entityID = blk.ID
	}

	mapping := EventMapping{
		ID:              uuid.New().String(),
		UserID:          userID,
		EntityKind:      kind,
		EntityID:        entityID,
		GoogleEventID:   ev.ID,
		CalendarID:      calendarID,
		RemoteUpdatedAt: ev.UpdatedTime(),
		LocalUpdatedAt:  now,
		LastSyncedAt:    now,
		RemoteHash:      ev.ContentHash(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	mapping, err = mp.repo.CreateMapping(ctx, mapping)
	if err != nil {
		if errors.Is(err, ErrMappingExists) {
			mp.rollbackEntity(ctx, userID, kind, entityID)
			return EventMapping{}, ErrMappingExists
		}
		return EventMapping{}, errors.Wrap(err, "creating event mapping")
	}
	return mapping, nil
}

func (mp *Mapper) rollbackEntity(ctx context.Context, userID string, kind schedule.Kind, entityID string) {
	switch kind {
	case schedule.KindExam:
		_ = mp.schedRepo.DeleteExam(ctx, userID, entityID)
	case schedule.KindAssignment:
		_ = mp.schedRepo.DeleteAssignment(ctx, userID, entityID)
	default:
		_ = mp.schedRepo.DeleteScheduleBlock(ctx, userID, entityID)
	}
}

// ApplyRemote overwrites the mapped local entity with the remote event's
// state (remote-only change, or a prefer_google resolution).
func (mp *Mapper) ApplyRemote(ctx context.Context, m EventMapping, ev GoogleEvent) error {
	start, _, err := ParseWallClock(ev.Start)
	if err != nil {
		return err
	}
	var end time.Time
	haveEnd := false
	if ev.End != nil {
		if end, _, err = ParseWallClock(ev.End); err != nil {
			return err
		}
		haveEnd = true
	}
	now := time.Now().UTC()

	switch m.EntityKind {
	case schedule.KindExam:
		exm, err := mp.schedRepo.GetExam(ctx, m.UserID, m.EntityID)
		if err != nil {
			return errors.Wrap(err, "loading mapped exam")
		}
		exm.Title = ev.Summary
		exm.Location = ev.Location
		exm.Notes = ev.Description
		exm.ExamDate = start
		if haveEnd && end.After(start) {
			exm.DurationMinutes = int(end.Sub(start) / time.Minute)
		}
		exm.UpdatedAt = now
		_, err = mp.schedRepo.UpdateExam(ctx, exm)
		return errors.Wrap(err, "updating mapped exam")

	case schedule.KindAssignment:
		asg, err := mp.schedRepo.GetAssignment(ctx, m.UserID, m.EntityID)
		if err != nil {
			return errors.Wrap(err, "loading mapped assignment")
		}
		asg.Title = ev.Summary
		asg.Notes = ev.Description
		asg.DueAt = start
		asg.UpdatedAt = now
		_, err = mp.schedRepo.UpdateAssignment(ctx, asg)
		return errors.Wrap(err, "updating mapped assignment")

	default:
		blk, err := mp.schedRepo.GetScheduleBlock(ctx, m.UserID, m.EntityID)
		if err != nil {
			return errors.Wrap(err, "loading mapped schedule block")
		}
		blk.Title = ev.Summary
		blk.Location = ev.Location
		blk.Notes = ev.Description
		blk.StartTime = start
		if haveEnd && end.After(start) {
			blk.EndTime = end
		} else {
			blk.EndTime = start.Add(time.Hour)
		}
		blk.DayOfWeek = int(start.Weekday())
		blk.SpecificDate = null.TimeFrom(start.Truncate(24 * time.Hour))
		blk.UpdatedAt = now
		_, err = mp.schedRepo.UpdateScheduleBlock(ctx, blk)
		return errors.Wrap(err, "updating mapped schedule block")
	}
}

// BlockEvent builds the provider payload for a schedule block, using the
// stored wall-clock time plus the user's timezone name (no UTC conversion).
func BlockEvent(blk schedule.ScheduleBlock, timezone string) *GoogleEvent {
	return &GoogleEvent{
		Summary:     blk.Title,
		Description: appDescription(blk.Notes),
		Location:    blk.Location,
		ColorID:     ColorID(blk.Color),
		Start:       &GoogleEventTime{DateTime: FormatWallClock(blk.StartTime), TimeZone: timezone},
		End:         &GoogleEventTime{DateTime: FormatWallClock(blk.EndTime), TimeZone: timezone},
	}
}

// AssignmentEvent builds the provider payload for an assignment; the event
// spans the hour starting at the due time.
func AssignmentEvent(asg schedule.Assignment, timezone string) *GoogleEvent {
	return &GoogleEvent{
		Summary:     asg.Title,
		Description: appDescription(asg.Notes),
		ColorID:     ColorID(asg.Color),
		Start:       &GoogleEventTime{DateTime: FormatWallClock(asg.DueAt), TimeZone: timezone},
		End:         &GoogleEventTime{DateTime: FormatWallClock(asg.DueAt.Add(time.Hour)), TimeZone: timezone},
	}
}

// ExamEvent builds the provider payload for an exam.
func ExamEvent(exm schedule.Exam, timezone string) *GoogleEvent {
	duration := time.Duration(exm.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = defaultExamDuration
	}
	return &GoogleEvent{
		Summary:     exm.Title,
		Description: appDescription(exm.Notes),
		Location:    exm.Location,
		ColorID:     ColorID(exm.Color),
		Start:       &GoogleEventTime{DateTime: FormatWallClock(exm.ExamDate), TimeZone: timezone},
		End:         &GoogleEventTime{DateTime: FormatWallClock(exm.ExamDate.Add(duration)), TimeZone: timezone},
	}
}

func appDescription(notes string) string {
	if notes == "" {
		return provenanceTag
	}
	return provenanceTag + "\n" + notes
}
