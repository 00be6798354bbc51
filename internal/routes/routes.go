package routes

import (
	"github.com/gin-gonic/gin"

	handler "transaction-recon/internal/handlers"
)

func RegisterRoutes(r *gin.Engine, opsHandler *handler.OpsHandler) {
	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// File lifecycle routes
	files := api.Group("/files")
	files.GET("/:region/:system/:name/progress", opsHandler.GetFileProgress)

	// Reconciliation routes
	recon := api.Group("/reconciliation")
	recon.GET("/unmatched", opsHandler.ListUnmatched)
	recon.POST("/unmatched/:id/requeue", opsHandler.RequeueUnmatched)
}
