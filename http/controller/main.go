package controller

import (
	"github.com/google/uuid"

	"github.com/tnqbao/gau-plugin-installer/config"
	"github.com/tnqbao/gau-plugin-installer/entity"
	"github.com/tnqbao/gau-plugin-installer/infra"
	"github.com/tnqbao/gau-plugin-installer/pipeline"
	"github.com/tnqbao/gau-plugin-installer/repository"
)

type BrokerStatus interface {
	IsClosed() bool
}

type PipelineSource interface {
	Resolve(jobType entity.JobType) ([]pipeline.Step, error)
	ResolveFor(req *entity.JobRequest) ([]pipeline.Step, error)
}

type JobRunReader interface {
	FindByID(id uuid.UUID) (*entity.JobRun, error)
	List(name string, limit int) ([]entity.JobRun, error)
}

type Controller struct {
	Config    *config.Config
	Logger    *infra.LoggerClient
	Broker    BrokerStatus
	Pipelines PipelineSource
	// Runs is nil when job history is disabled.
	Runs JobRunReader
}

func NewController(cfg *config.Config, infra *infra.Infra, repo *repository.Repository, pipelines PipelineSource) *Controller {
	if pipelines == nil {
		panic("Failed to initialize pipeline registry")
	}
	ctrl := &Controller{
		Config:    cfg,
		Logger:    infra.Logger,
		Pipelines: pipelines,
	}
	if infra.RabbitMQ != nil {
		ctrl.Broker = infra.RabbitMQ
	}
	if repo != nil {
		ctrl.Runs = repo.JobRunRepo
	}
	return ctrl
}
