package repository

import (
	"github.com/tnqbao/gau-plugin-installer/infra"
)

type Repository struct {
	JobRunRepo *JobRunRepository
}

// InitRepository returns nil when the worker runs without Postgres.
func InitRepository(infra *infra.Infra) *Repository {
	if infra.Postgres == nil {
		return nil
	}
	return &Repository{
		JobRunRepo: NewJobRunRepository(infra.Postgres.DB),
	}
}
