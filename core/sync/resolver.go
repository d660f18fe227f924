package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/RidhwanAhamed/aqademiq-sync/core"
	"github.com/RidhwanAhamed/aqademiq-sync/core/schedule"
)

// Resolution is the caller's instruction for settling a conflict.
// ResolvedData is only read for the merge strategy.
type Resolution struct {
	ConflictID   string          `json:"conflict_id" validate:"required"`
	Type         string          `json:"resolution_type" validate:"required,oneof=prefer_local prefer_google merge"`
	ResolvedData json.RawMessage `json:"resolved_data,omitempty"`
}

func (r *Resolution) Validate(validate *validator.Validate, _ ut.Translator) error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Type == ResolveMerge && len(r.ResolvedData) == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "resolved_data", Error: "required for merge resolution"})
	}
	return nil
}

// ResolveConflict moves a conflict from Detected to its terminal Resolved
// state via exactly one of the three strategies, logs the transition as a
// conflict_resolution operation, and advances the mapping's last-synced-at
// so the pair is not immediately re-flagged.
func (svc *Service) ResolveConflict(ctx context.Context, userID string, res Resolution) (Conflict, error) {
	conflict, err := svc.repo.GetConflict(ctx, userID, res.ConflictID)
	if err != nil {
		return Conflict{}, ErrConflictNotFound
	}
	if conflict.Resolved() {
		return Conflict{}, ErrConflictNotFound
	}

	mapping, err := svc.repo.GetMappingByID(ctx, userID, conflict.MappingID)
	if err != nil {
		return Conflict{}, errors.Wrap(err, "loading conflicted mapping")
	}

	op, err := svc.repo.CreateOperation(ctx, Operation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      OpConflictResolution,
		Status:    StatusPending,
		Direction: DirectionBoth,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		return Conflict{}, errors.Wrap(err, "creating resolution operation")
	}

	if err = svc.applyResolution(ctx, userID, mapping, conflict, res); err != nil {
		_ = svc.repo.FinishOperation(ctx, op.ID, StatusFailed, err.Error())
		return Conflict{}, err
	}

	now := time.Now().UTC()
	mapping.LastSyncedAt = now
	mapping.UpdatedAt = now
	if _, err = svc.repo.UpdateMapping(ctx, mapping); err != nil {
		_ = svc.repo.FinishOperation(ctx, op.ID, StatusFailed, err.Error())
		return Conflict{}, errors.Wrap(err, "advancing mapping after resolution")
	}

	conflict.Resolution = null.StringFrom(res.Type)
	conflict.ResolvedAt = null.TimeFrom(now)
	if conflict, err = svc.repo.UpdateConflict(ctx, conflict); err != nil {
		_ = svc.repo.FinishOperation(ctx, op.ID, StatusFailed, err.Error())
		return Conflict{}, errors.Wrap(err, "marking conflict resolved")
	}

	msg := fmt.Sprintf("conflict %s resolved with %s", conflict.ID, res.Type)
	_ = svc.repo.FinishOperation(ctx, op.ID, StatusCompleted, msg)
	return conflict, nil
}

func (svc *Service) applyResolution(ctx context.Context, userID string, mapping EventMapping, conflict Conflict, res Resolution) error {
	switch res.Type {
	case ResolvePreferLocal:
		// push the current local state over the remote event
		payload, err := svc.exportPayload(ctx, mapping)
		if err != nil {
			return err
		}
		return svc.patchRemote(ctx, userID, mapping, payload)

	case ResolvePreferGoogle:
		var ev GoogleEvent
		if err := json.Unmarshal(conflict.RemoteSnapshot, &ev); err != nil {
			return errors.Wrap(err, "decoding remote snapshot")
		}
		return svc.mapper.ApplyRemote(ctx, mapping, ev)

	case ResolveMerge:
		// caller-supplied payload wins on both sides
		var ev GoogleEvent
		if err := json.Unmarshal(res.ResolvedData, &ev); err != nil {
			return errors.Wrap(err, "decoding merged payload")
		}
		if err := svc.mapper.ApplyRemote(ctx, mapping, ev); err != nil {
			return err
		}
		return svc.patchRemote(ctx, userID, mapping, &ev)
	}
	return errors.Errorf("unknown resolution strategy %q", res.Type)
}

// exportPayload rebuilds the provider payload from the mapped entity's
// current local state.
func (svc *Service) exportPayload(ctx context.Context, m EventMapping) (*GoogleEvent, error) {
	usr, err := svc.userRepo.GetUserByID(ctx, m.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "loading user for export")
	}

	switch m.EntityKind {
	case schedule.KindExam:
		exm, err := svc.schedRepo.GetExam(ctx, m.UserID, m.EntityID)
		if err != nil {
			return nil, errors.Wrap(err, "loading mapped exam")
		}
		return ExamEvent(exm, usr.Timezone), nil
	case schedule.KindAssignment:
		asg, err := svc.schedRepo.GetAssignment(ctx, m.UserID, m.EntityID)
		if err != nil {
			return nil, errors.Wrap(err, "loading mapped assignment")
		}
		return AssignmentEvent(asg, usr.Timezone), nil
	default:
		blk, err := svc.schedRepo.GetScheduleBlock(ctx, m.UserID, m.EntityID)
		if err != nil {
			return nil, errors.Wrap(err, "loading mapped schedule block")
		}
		return BlockEvent(blk, usr.Timezone), nil
	}
}

func (svc *Service) patchRemote(ctx context.Context, userID string, m EventMapping, payload *GoogleEvent) error {
	accessToken, err := svc.tokens.EnsureAccessToken(ctx, userID)
	if err != nil {
		return err
	}
	_, err = svc.provider.PatchEvent(ctx, accessToken, m.CalendarID, m.GoogleEventID, payload)
	return errors.Wrap(err, "patching remote event")
}
