package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/filevault/fv-registry/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Meta-transaction relay (requires authentication)
		v1.POST("/relay/requests", middleware.Auth(authCfg), handler.SubmitRelayRequest)

		// Grant endpoints (requires authentication; grant reads are
		// restricted to the grant's participants)
		v1.GET("/grants/:cap_id", middleware.Auth(authCfg), handler.GetGrant)
		v1.POST("/grants/predict", middleware.Auth(authCfg), handler.PredictGrant)
		v1.POST("/grants", middleware.Auth(authCfg), handler.CreateGrant)

		// Anchor endpoints (public read access)
		v1.GET("/anchors/latest", handler.GetLatestAnchor)
		v1.GET("/anchors/:period_id", handler.GetAnchor)

		// Manual anchoring trigger (requires authentication)
		v1.POST("/anchors/:period_id/trigger", middleware.Auth(authCfg), handler.TriggerAnchor)
	}
}
