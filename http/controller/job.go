package controller

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tnqbao/gau-plugin-installer/http/controller/dto"
	"github.com/tnqbao/gau-plugin-installer/repository"
	"github.com/tnqbao/gau-plugin-installer/utils"
)

const defaultJobRunLimit = 50

func (ctrl *Controller) ListJobRuns(c *gin.Context) {
	ctx := c.Request.Context()
	if ctrl.Runs == nil {
		utils.JSON503(c, "Job history is disabled")
		return
	}

	var query dto.ListJobRunsQueryDTO
	if err := c.ShouldBindQuery(&query); err != nil {
		ctrl.Logger.WarningWithContextf(ctx, "[Job] Invalid list query: %v", err)
		utils.JSON400(c, "Invalid query parameters")
		return
	}
	if query.Limit == 0 {
		query.Limit = defaultJobRunLimit
	}

	runs, err := ctrl.Runs.List(query.Name, query.Limit)
	if err != nil {
		ctrl.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to list job runs: %v", err)
		utils.JSON500(c, "Failed to list job runs")
		return
	}

	out := make([]dto.JobRunDTO, 0, len(runs))
	for _, run := range runs {
		out = append(out, dto.NewJobRunDTO(run))
	}
	utils.JSON200(c, gin.H{"jobs": out})
}

func (ctrl *Controller) GetJobRun(c *gin.Context) {
	ctx := c.Request.Context()
	if ctrl.Runs == nil {
		utils.JSON503(c, "Job history is disabled")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.JSON400(c, "Invalid job id")
		return
	}

	run, err := ctrl.Runs.FindByID(id)
	if errors.Is(err, repository.ErrJobRunNotFound) {
		utils.JSON404(c, "Job run not found")
		return
	}
	if err != nil {
		ctrl.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to load job run %s: %v", id, err)
		utils.JSON500(c, "Failed to load job run")
		return
	}
	utils.JSON200(c, dto.NewJobRunDTO(*run))
}
