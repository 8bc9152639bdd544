package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-plugin-installer/http/controller"
	middlewares "github.com/tnqbao/gau-plugin-installer/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}
	r.Use(middles.CORSMiddleware, middles.RequestLogMiddleware)

	r.GET("/health", ctrl.Health)

	apiRoutes := r.Group("/api/v1/installer")
	{
		apiRoutes.GET("/pipelines/:type", ctrl.GetPipeline)

		jobRoutes := apiRoutes.Group("/jobs")
		{
			jobRoutes.GET("", ctrl.ListJobRuns)
			jobRoutes.GET("/:id", ctrl.GetJobRun)
		}
	}
	return r
}
