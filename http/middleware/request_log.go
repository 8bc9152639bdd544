package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-plugin-installer/infra"
)

func RequestLogMiddleware(logger *infra.LoggerClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.InfoWithContextf(c.Request.Context(), "[HTTP] %s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
