package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"staffing-backend/config"
	"staffing-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router around the handler.
func NewRouter(h *Handler, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/templates", h.CreateTemplate)
		api.GET("/templates/:id", h.GetTemplate)
		api.PATCH("/templates/:id", h.UpdateTemplate)
		api.PUT("/templates/:id/active", h.SetTemplateActive)
		api.POST("/templates/:id/regenerate", h.RegenerateShifts)

		// The open-shift listing is the one hot read path; everything else
		// must observe writes immediately, so only this route is cached.
		api.GET("/shifts", caching, h.ListOpenShifts)
		api.POST("/shifts", h.CreateShift)
		api.DELETE("/shifts/:id", h.CancelShift)

		api.POST("/shifts/:id/assignments", h.AssignWorker)
		api.GET("/shifts/:id/assignments", h.GetAssignments)
		api.DELETE("/shifts/:id/assignments/:worker_id", h.UnassignWorker)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
