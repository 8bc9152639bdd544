package dto

import (
	"encoding/json"
	"time"

	"github.com/tnqbao/gau-plugin-installer/entity"
	"github.com/tnqbao/gau-plugin-installer/pipeline"
)

type StepDTO struct {
	Name    string `json:"name"`
	Label   string `json:"label,omitempty"`
	Kind    string `json:"kind"`
	Run     string `json:"run,omitempty"`
	Wait    string `json:"wait,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

type PipelineResponseDTO struct {
	Type  string    `json:"type"`
	Name  string    `json:"name,omitempty"`
	Steps []StepDTO `json:"steps"`
}

type ListJobRunsQueryDTO struct {
	Name  string `form:"name" binding:"omitempty,max=64"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=200"`
}

type JobRunDTO struct {
	ID          string                 `json:"id"`
	DeliveryKey string                 `json:"delivery_key"`
	Type        string                 `json:"type"`
	Name        string                 `json:"name"`
	State       string                 `json:"state"`
	Attempt     int                    `json:"attempt"`
	FailedStep  string                 `json:"failed_step,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Correlation map[string]interface{} `json:"correlation,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  *time.Time             `json:"finished_at,omitempty"`
}

func NewStepDTO(s pipeline.Step) StepDTO {
	out := StepDTO{Name: s.Name, Label: s.Label, Kind: string(s.Kind), Run: s.Run}
	if s.Wait > 0 {
		out.Wait = s.Wait.String()
	}
	if s.Timeout > 0 {
		out.Timeout = s.Timeout.String()
	}
	return out
}

func NewJobRunDTO(run entity.JobRun) JobRunDTO {
	out := JobRunDTO{
		ID:          run.ID.String(),
		DeliveryKey: run.DeliveryKey,
		Type:        run.Type,
		Name:        run.Name,
		State:       string(run.State),
		Attempt:     run.Attempt,
		FailedStep:  run.FailedStep,
		Error:       run.Error,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
	if len(run.Correlation) > 0 {
		_ = json.Unmarshal(run.Correlation, &out.Correlation)
	}
	return out
}
