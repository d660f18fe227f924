package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an entity does not exist for the caller.
	ErrNotFound = errors.New("entity not found")
)

type (
	Repository interface {
		CreateScheduleBlock(ctx context.Context, blk ScheduleBlock) (ScheduleBlock, error)
		GetScheduleBlock(ctx context.Context, userID, id string) (ScheduleBlock, error)
		QueryScheduleBlocks(ctx context.Context, userID string) ([]ScheduleBlock, error)
		UpdateScheduleBlock(ctx context.Context, blk ScheduleBlock) (ScheduleBlock, error)
		DeleteScheduleBlock(ctx context.Context, userID, id string) error

		CreateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, userID, id string) (Assignment, error)
		QueryAssignments(ctx context.Context, userID string) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, userID, id string) error

		CreateExam(ctx context.Context, exm Exam) (Exam, error)
		GetExam(ctx context.Context, userID, id string) (Exam, error)
		QueryExams(ctx context.Context, userID string) ([]Exam, error)
		UpdateExam(ctx context.Context, exm Exam) (Exam, error)
		DeleteExam(ctx context.Context, userID, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Repo() Repository { return svc.repo }

func (svc *Service) CreateScheduleBlock(ctx context.Context, userID string, nb NewScheduleBlock) (ScheduleBlock, error) {
	now := time.Now().UTC()
	blk := ScheduleBlock{
		ID:           uuid.New().String(),
		UserID:       userID,
		Title:        nb.Title,
		Location:     nb.Location,
		Notes:        nb.Notes,
		DayOfWeek:    nb.DayOfWeek,
		SpecificDate: nb.SpecificDate,
		StartTime:    nb.StartTime,
		EndTime:      nb.EndTime,
		Recurrence:   nb.Recurrence,
		Color:        nb.Color,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return svc.repo.CreateScheduleBlock(ctx, blk)
}

func (svc *Service) CreateAssignment(ctx context.Context, userID string, na NewAssignment) (Assignment, error) {
	now := time.Now().UTC()
	asg := Assignment{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     na.Title,
		Notes:     na.Notes,
		DueAt:     na.DueAt,
		Color:     na.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateAssignment(ctx, asg)
}

func (svc *Service) CreateExam(ctx context.Context, userID string, ne NewExam) (Exam, error) {
	now := time.Now().UTC()
	exm := Exam{
		ID:              uuid.New().String(),
		UserID:          userID,
		Title:           ne.Title,
		Location:        ne.Location,
		Notes:           ne.Notes,
		ExamDate:        ne.ExamDate,
		DurationMinutes: ne.DurationMinutes,
		Color:           ne.Color,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return svc.repo.CreateExam(ctx, exm)
}

func (svc *Service) GetScheduleBlock(ctx context.Context, userID, id string) (ScheduleBlock, error) {
	return svc.repo.GetScheduleBlock(ctx, userID, id)
}

func (svc *Service) QueryScheduleBlocks(ctx context.Context, userID string) ([]ScheduleBlock, error) {
	return svc.repo.QueryScheduleBlocks(ctx, userID)
}

func (svc *Service) UpdateScheduleBlock(ctx context.Context, userID, id string, nb NewScheduleBlock) (ScheduleBlock, error) {
	blk, err := svc.repo.GetScheduleBlock(ctx, userID, id)
	if err != nil {
		return ScheduleBlock{}, err
	}
	blk.Title = nb.Title
	blk.Location = nb.Location
	blk.Notes = nb.Notes
	blk.DayOfWeek = nb.DayOfWeek
	blk.SpecificDate = nb.SpecificDate
	blk.StartTime = nb.StartTime
	blk.EndTime = nb.EndTime
	blk.Recurrence = nb.Recurrence
	blk.Color = nb.Color
	blk.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateScheduleBlock(ctx, blk)
}

func (svc *Service) DeleteScheduleBlock(ctx context.Context, userID, id string) error {
	return svc.repo.DeleteScheduleBlock(ctx, userID, id)
}

func (svc *Service) GetAssignment(ctx context.Context, userID, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, userID, id)
}

func (svc *Service) QueryAssignments(ctx context.Context, userID string) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, userID)
}

func (svc *Service) UpdateAssignment(ctx context.Context, userID, id string, na NewAssignment) (Assignment, error) {
	asg, err := svc.repo.GetAssignment(ctx, userID, id)
	if err != nil {
		return Assignment{}, err
	}
	asg.Title = na.Title
	asg.Notes = na.Notes
	asg.DueAt = na.DueAt
	asg.Color = na.Color
	asg.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAssignment(ctx, asg)
}

func (svc *Service) DeleteAssignment(ctx context.Context, userID, id string) error {
	return svc.repo.DeleteAssignment(ctx, userID, id)
}

func (svc *Service) GetExam(ctx context.Context, userID, id string) (Exam, error) {
	return svc.repo.GetExam(ctx, userID, id)
}

func (svc *Service) QueryExams(ctx context.Context, userID string) ([]Exam, error) {
	return svc.repo.QueryExams(ctx, userID)
}

func (svc *Service) UpdateExam(ctx context.Context, userID, id string, ne NewExam) (Exam, error) {
	exm, err := svc.repo.GetExam(ctx, userID, id)
	if err != nil {
		return Exam{}, err
	}
	exm.Title = ne.Title
	exm.Location = ne.Location
	exm.Notes = ne.Notes
	exm.ExamDate = ne.ExamDate
	exm.DurationMinutes = ne.DurationMinutes
	exm.Color = ne.Color
	exm.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateExam(ctx, exm)
}

func (svc *Service) DeleteExam(ctx context.Context, userID, id string) error {
	return svc.repo.DeleteExam(ctx, userID, id)
}
