package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/RidhwanAhamed/aqademiq-sync/core/schedule"
)

var _ schedule.Repository = (*scheduleRepository)(nil)

type scheduleRepository struct {
	db *sqlx.DB
}

func NewScheduleRepository(db *sqlx.DB) *scheduleRepository {
	return &scheduleRepository{db: db}
}

type scheduleBlockRow struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	Title        string    `db:"title"`
	Location     string    `db:"location"`
	Notes        string    `db:"notes"`
	DayOfWeek    int       `db:"day_of_week"`
	SpecificDate null.Time `db:"specific_date"`
	StartTime    time.Time `db:"start_time"`
	EndTime      time.Time `db:"end_time"`
	Recurrence   string    `db:"recurrence"`
	Color        string    `db:"color"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r scheduleBlockRow) toBlock() schedule.ScheduleBlock {
	return schedule.ScheduleBlock(r)
}

type assignmentRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Title     string    `db:"title"`
	Notes     string    `db:"notes"`
	DueAt     time.Time `db:"due_at"`
	Color     string    `db:"color"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r assignmentRow) toAssignment() schedule.Assignment {
	return schedule.Assignment(r)
}

type examRow struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	Title           string    `db:"title"`
	Location        string    `db:"location"`
	Notes           string    `db:"notes"`
	ExamDate        time.Time `db:"exam_date"`
	DurationMinutes int       `db:"duration_minutes"`
	Color           string    `db:"color"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r examRow) toExam() schedule.Exam {
	return schedule.Exam(r)
}

func (repo *scheduleRepository) CreateScheduleBlock(ctx context.Context, blk schedule.ScheduleBlock) (schedule.ScheduleBlock, error) {
	const query = `
INSERT INTO schedule_blocks (id, user_id, title, location, notes, day_of_week, specific_date,
                             start_time, end_time, recurrence, color, created_at, updated_at)
VALUES (:id, :user_id, :title, :location, :notes, :day_of_week, :specific_date,
        :start_time, :end_time, :recurrence, :color, :created_at, :updated_at)`

	if _, err := repo.db.NamedExecContext(ctx, query, scheduleBlockRow(blk)); err != nil {
		return schedule.ScheduleBlock{}, errors.Wrap(err, "inserting schedule block")
	}
	return blk, nil
}

func (repo *scheduleRepository) GetScheduleBlock(ctx context.Context, userID, id string) (schedule.ScheduleBlock, error) {
	var row scheduleBlockRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM schedule_blocks WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schedule.ScheduleBlock{}, schedule.ErrNotFound
		}
		return schedule.ScheduleBlock{}, errors.Wrap(err, "getting schedule block")
	}
	return row.toBlock(), nil
}

func (repo *scheduleRepository) QueryScheduleBlocks(ctx context.Context, userID string) ([]schedule.ScheduleBlock, error) {
	var rows []scheduleBlockRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM schedule_blocks WHERE user_id = $1 ORDER BY start_time`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying schedule blocks")
	}
	blocks := make([]schedule.ScheduleBlock, 0, len(rows))
	for _, row := range rows {
		blocks = append(blocks, row.toBlock())
	}
	return blocks, nil
}

func (repo *scheduleRepository) UpdateScheduleBlock(ctx context.Context, blk schedule.ScheduleBlock) (schedule.ScheduleBlock, error) {
	const query = `
UPDATE schedule_blocks
SET title = :title, location = :location, notes = :notes, day_of_week = :day_of_week,
    specific_date = :specific_date, start_time = :start_time, end_time = :end_time,
    recurrence = :recurrence, color = :color, updated_at = :updated_at
WHERE user_id = :user_id AND id = :id`

	res, err := repo.db.NamedExecContext(ctx, query, scheduleBlockRow(blk))
	if err != nil {
		return schedule.ScheduleBlock{}, errors.Wrap(err, "updating schedule block")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return schedule.ScheduleBlock{}, schedule.ErrNotFound
	}
	return blk, nil
}

func (repo *scheduleRepository) DeleteScheduleBlock(ctx context.Context, userID, id string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM schedule_blocks WHERE user_id = $1 AND id = $2`, userID, id)
	return errors.Wrap(err, "deleting schedule block")
}

func (repo *scheduleRepository) CreateAssignment(ctx context.Context, asg schedule.Assignment) (schedule.Assignment, error) {
	const query = `
INSERT INTO assignments (id, user_id, title, notes, due_at, color, created_at, updated_at)
VALUES (:id, :user_id, :title, :notes, :due_at, :color, :created_at, :updated_at)`

	if _, err := repo.db.NamedExecContext(ctx, query, assignmentRow(asg)); err != nil {
		return schedule.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return asg, nil
}

func (repo *scheduleRepository) GetAssignment(ctx context.Context, userID, id string) (schedule.Assignment, error) {
	var row assignmentRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM assignments WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schedule.Assignment{}, schedule.ErrNotFound
		}
		return schedule.Assignment{}, errors.Wrap(err, "getting assignment")
	}
	return row.toAssignment(), nil
}

func (repo *scheduleRepository) QueryAssignments(ctx context.Context, userID string) ([]schedule.Assignment, error) {
	var rows []assignmentRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM assignments WHERE user_id = $1 ORDER BY due_at`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	asgs := make([]schedule.Assignment, 0, len(rows))
	for _, row := range rows {
		asgs = append(asgs, row.toAssignment())
	}
	return asgs, nil
}

func (repo *scheduleRepository) UpdateAssignment(ctx context.Context, asg schedule.Assignment) (schedule.Assignment, error) {
	const query = `
UPDATE assignments
SET title = :title, notes = :notes, due_at = :due_at, color = :color, updated_at = :updated_at
WHERE user_id = :user_id AND id = :id`

	res, err := repo.db.NamedExecContext(ctx, query, assignmentRow(asg))
	if err != nil {
		return schedule.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return schedule.Assignment{}, schedule.ErrNotFound
	}
	return asg, nil
}

func (repo *scheduleRepository) DeleteAssignment(ctx context.Context, userID, id string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM assignments WHERE user_id = $1 AND id = $2`, userID, id)
	return errors.Wrap(err, "deleting assignment")
}

func (repo *scheduleRepository) CreateExam(ctx context.Context, exm schedule.Exam) (schedule.Exam, error) {
	const query = `
INSERT INTO exams (id, user_id, title, location, notes, exam_date, duration_minutes, color, created_at, updated_at)
VALUES (:id, :user_id, :title, :location, :notes, :exam_date, :duration_minutes, :color, :created_at, :updated_at)`

	if _, err := repo.db.NamedExecContext(ctx, query, examRow(exm)); err != nil {
		return schedule.Exam{}, errors.Wrap(err, "inserting exam")
	}
	return exm, nil
}

func (repo *scheduleRepository) GetExam(ctx context.Context, userID, id string) (schedule.Exam, error) {
	var row examRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM exams WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schedule.Exam{}, schedule.ErrNotFound
		}
		return schedule.Exam{}, errors.Wrap(err, "getting exam")
	}
	return row.toExam(), nil
}

func (repo *scheduleRepository) QueryExams(ctx context.Context, userID string) ([]schedule.Exam, error) {
	var rows []examRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM exams WHERE user_id = $1 ORDER BY exam_date`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	exams := make([]schedule.Exam, 0, len(rows))
	for _, row := range rows {
		exams = append(exams, row.toExam())
	}
	return exams, nil
}

func (repo *scheduleRepository) UpdateExam(ctx context.Context, exm schedule.Exam) (schedule.Exam, error) {
	const query = `
UPDATE exams
SET title = :title, location = :location, notes = :notes, exam_date = :exam_date,
    duration_minutes = :duration_minutes, color = :color, updated_at = :updated_at
WHERE user_id = :user_id AND id = :id`

	res, err := repo.db.NamedExecContext(ctx, query, examRow(exm))
	if err != nil {
		return schedule.Exam{}, errors.Wrap(err, "updating exam")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return schedule.Exam{}, schedule.ErrNotFound
	}
	return exm, nil
}

func (repo *scheduleRepository) DeleteExam(ctx context.Context, userID, id string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM exams WHERE user_id = $1 AND id = $2`, userID, id)
	return errors.Wrap(err, "deleting exam")
}
