package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tnqbao/gau-plugin-installer/entity"
)

var (
	ErrJobRunNotFound   = errors.New("job run not found")
	ErrNonTerminalState = errors.New("job run cannot finish in a non-terminal state")
)

const maxListLimit = 200

type JobRunRepository struct {
	db *gorm.DB
}

func NewJobRunRepository(db *gorm.DB) *JobRunRepository {
	return &JobRunRepository{db: db}
}

func (r *JobRunRepository) Create(run *entity.JobRun) error {
	return r.db.Create(run).Error
}

// Finish stores the terminal state of a run.
func (r *JobRunRepository) Finish(id uuid.UUID, state entity.JobState, failedStep, errMsg string, finishedAt time.Time) error {
	if !state.Terminal() {
		return fmt.Errorf("%w: %q", ErrNonTerminalState, state)
	}
	return r.db.Model(&entity.JobRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":       state,
			"failed_step": failedStep,
			"error":       errMsg,
			"finished_at": finishedAt,
		}).Error
}

func (r *JobRunRepository) FindByID(id uuid.UUID) (*entity.JobRun, error) {
	var run entity.JobRun
	err := r.db.Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns the most recent runs, optionally filtered by plugin name.
func (r *JobRunRepository) List(name string, limit int) ([]entity.JobRun, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	query := r.db.Order("started_at DESC").Limit(limit)
	if name != "" {
		query = query.Where("name = ?", name)
	}

	var runs []entity.JobRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
