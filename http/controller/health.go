package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-plugin-installer/utils"
)

func (ctrl *Controller) Health(c *gin.Context) {
	if ctrl.Broker == nil || ctrl.Broker.IsClosed() {
		ctrl.Logger.WarningWithContextf(c.Request.Context(), "[Health] Broker connection is down")
		utils.JSON503(c, "broker connection is down")
		return
	}
	utils.JSON200(c, gin.H{"status": "ok"})
}
