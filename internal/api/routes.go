package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/goassemble/internal/telemetry"
)

// SetupRoutes configures all gateway routes on the router.
func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/health", handler.Health)
	router.GET("/metrics", gin.WrapH(telemetry.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/block/:name", handler.Block)
		v1.POST("/template", handler.Template)
	}

	// Binary passthrough for everything the provider serves alongside the
	// aggregated fragments (images, stylesheets, downloads).
	router.GET("/content/*path", handler.Content)
}
