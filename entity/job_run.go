package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JobState string

const (
	JobStateRejected     JobState = "rejected"
	JobStateRunning      JobState = "running"
	JobStateSucceeded    JobState = "succeeded"
	JobStateFailed       JobState = "failed"
	JobStateDeadLettered JobState = "dead_lettered"
)

// Terminal reports whether no further transition can happen for this delivery.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateRejected, JobStateSucceeded, JobStateFailed, JobStateDeadLettered:
		return true
	}
	return false
}

// JobRun records one delivery attempt of a job.
type JobRun struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	DeliveryKey string         `json:"delivery_key" gorm:"not null;index"`
	Type        string         `json:"type" gorm:"index"`
	Name        string         `json:"name" gorm:"index"`
	State       JobState       `json:"state" gorm:"not null;index"`
	Attempt     int            `json:"attempt"`
	FailedStep  string         `json:"failed_step,omitempty"`
	Error       string         `json:"error,omitempty" gorm:"type:text"`
	Correlation datatypes.JSON `json:"correlation" gorm:"type:jsonb"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}
