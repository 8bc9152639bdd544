package controller

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-plugin-installer/entity"
	"github.com/tnqbao/gau-plugin-installer/http/controller/dto"
	"github.com/tnqbao/gau-plugin-installer/pipeline"
	"github.com/tnqbao/gau-plugin-installer/utils"
)

// GetPipeline returns the steps for a job type, rendered for ?name= when given.
func (ctrl *Controller) GetPipeline(c *gin.Context) {
	ctx := c.Request.Context()
	jobType := entity.JobType(c.Param("type"))
	name := c.Query("name")

	var (
		steps []pipeline.Step
		err   error
	)
	if name == "" {
		steps, err = ctrl.Pipelines.Resolve(jobType)
	} else {
		if !entity.ValidPluginName(name) {
			utils.JSON400(c, "Invalid plugin name")
			return
		}
		steps, err = ctrl.Pipelines.ResolveFor(&entity.JobRequest{Type: jobType, Name: name})
	}
	if errors.Is(err, pipeline.ErrUnknownJobType) {
		utils.JSON404(c, "Unknown job type")
		return
	}
	if err != nil {
		ctrl.Logger.ErrorWithContextf(ctx, err, "[Pipeline] Failed to resolve %s pipeline: %v", jobType, err)
		utils.JSON500(c, "Failed to resolve pipeline")
		return
	}

	resp := dto.PipelineResponseDTO{Type: string(jobType), Name: name, Steps: make([]dto.StepDTO, 0, len(steps))}
	for _, s := range steps {
		resp.Steps = append(resp.Steps, dto.NewStepDTO(s))
	}
	utils.JSON200(c, resp)
}
