package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-plugin-installer/http/controller"
)

type Middlewares struct {
	CORSMiddleware       gin.HandlerFunc
	RequestLogMiddleware gin.HandlerFunc
}

func NewMiddlewares(ctrl *controller.Controller) (*Middlewares, error) {
	return &Middlewares{
		CORSMiddleware:       CORSMiddleware(ctrl.Config.EnvConfig),
		RequestLogMiddleware: RequestLogMiddleware(ctrl.Logger),
	}, nil
}
