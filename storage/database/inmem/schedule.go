package inmemdb

import (
	"context"
	"sort"

	"github.com/RidhwanAhamed/aqademiq-sync/core/schedule"
)

var _ schedule.Repository = (*scheduleRepository)(nil)

type scheduleRepository struct {
	db *DB
}

func NewScheduleRepository(db *DB) *scheduleRepository {
	return &scheduleRepository{db: db}
}

func (repo *scheduleRepository) CreateScheduleBlock(_ context.Context, blk schedule.ScheduleBlock) (schedule.ScheduleBlock, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.blocks[blk.ID] = &blk
	return blk, nil
}

func (repo *scheduleRepository) GetScheduleBlock(_ context.Context, userID, id string) (schedule.ScheduleBlock, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if blk, ok := repo.db.blocks[id]; ok && blk.UserID == userID {
		return *blk, nil
	}
	return schedule.ScheduleBlock{}, schedule.ErrNotFound
}

func (repo *scheduleRepository) QueryScheduleBlocks(_ context.Context, userID string) ([]schedule.ScheduleBlock, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	blocks := make([]schedule.ScheduleBlock, 0)
	for _, blk := range repo.db.blocks {
		if blk.UserID == userID {
			blocks = append(blocks, *blk)
		}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].StartTime.Before(blocks[j].StartTime) })
	return blocks, nil
}

func (repo *scheduleRepository) UpdateScheduleBlock(_ context.Context, blk schedule.ScheduleBlock) (schedule.ScheduleBlock, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if orig, ok := repo.db.blocks[blk.ID]; !ok || orig.UserID != blk.UserID {
		return schedule.ScheduleBlock{}, schedule.ErrNotFound
	}
	repo.db.blocks[blk.ID] = &blk
	return blk, nil
}

func (repo *scheduleRepository) DeleteScheduleBlock(_ context.Context, userID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if blk, ok := repo.db.blocks[id]; ok && blk.UserID == userID {
		delete(repo.db.blocks, id)
	}
	return nil
}

func (repo *scheduleRepository) CreateAssignment(_ context.Context, asg schedule.Assignment) (schedule.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.assignments[asg.ID] = &asg
	return asg, nil
}

func (repo *scheduleRepository) GetAssignment(_ context.Context, userID, id string) (schedule.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if asg, ok := repo.db.assignments[id]; ok && asg.UserID == userID {
		return *asg, nil
	}
	return schedule.Assignment{}, schedule.ErrNotFound
}

func (repo *scheduleRepository) QueryAssignments(_ context.Context, userID string) ([]schedule.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	asgs := make([]schedule.Assignment, 0)
	for _, asg := range repo.db.assignments {
		if asg.UserID == userID {
			asgs = append(asgs, *asg)
		}
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].DueAt.Before(asgs[j].DueAt) })
	return asgs, nil
}

func (repo *scheduleRepository) UpdateAssignment(_ context.Context, asg schedule.Assignment) (schedule.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if orig, ok := repo.db.assignments[asg.ID]; !ok || orig.UserID != asg.UserID {
		return schedule.Assignment{}, schedule.ErrNotFound
	}
	repo.db.assignments[asg.ID] = &asg
	return asg, nil
}

func (repo *scheduleRepository) DeleteAssignment(_ context.Context, userID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if asg, ok := repo.db.assignments[id]; ok && asg.UserID == userID {
		delete(repo.db.assignments, id)
	}
	return nil
}

func (repo *scheduleRepository) CreateExam(_ context.Context, exm schedule.Exam) (schedule.Exam, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.exams[exm.ID] = &exm
	return exm, nil
}

func (repo *scheduleRepository) GetExam(_ context.Context, userID, id string) (schedule.Exam, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if exm, ok := repo.db.exams[id]; ok && exm.UserID == userID {
		return *exm, nil
	}
	return schedule.Exam{}, schedule.ErrNotFound
}

func (repo *scheduleRepository) QueryExams(_ context.Context, userID string) ([]schedule.Exam, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	exams := make([]schedule.Exam, 0)
	for _, exm := range repo.db.exams {
		if exm.UserID == userID {
			exams = append(exams, *exm)
		}
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].ExamDate.Before(exams[j].ExamDate) })
	return exams, nil
}

func (repo *scheduleRepository) UpdateExam(_ context.Context, exm schedule.Exam) (schedule.Exam, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if orig, ok := repo.db.exams[exm.ID]; !ok || orig.UserID != exm.UserID {
		return schedule.Exam{}, schedule.ErrNotFound
	}
	repo.db.exams[exm.ID] = &exm
	return exm, nil
}

func (repo *scheduleRepository) DeleteExam(_ context.Context, userID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if exm, ok := repo.db.exams[id]; ok && exm.UserID == userID {
		delete(repo.db.exams, id)
	}
	return nil
}
