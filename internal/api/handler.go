package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"staffing-backend/internal/scheduler"
	"staffing-backend/internal/store"
)

// Handler holds shared dependencies for API handlers. Handlers are thin
// adapters: all scheduling semantics live in the scheduler package.
type Handler struct {
	store     store.Store
	templates *scheduler.Service
	engine    *scheduler.Engine
	webpush   *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, templates *scheduler.Service, engine *scheduler.Engine, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:     s,
		templates: templates,
		engine:    engine,
		webpush:   webpushOptions,
	}
}

// writeSchedulerError maps core error kinds onto HTTP statuses. Each kind
// keeps its own message; a schedule conflict additionally carries the
// conflicting assignment for diagnostics.
func writeSchedulerError(c *gin.Context, err error) {
	var conflict *scheduler.ConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, gin.H{
			"error":                  "schedule_conflict",
			"message":                conflict.Error(),
			"conflicting_assignment": conflict.Conflicting,
		})
		return
	}

	switch {
	case errors.Is(err, scheduler.ErrTemplateNotFound),
		errors.Is(err, scheduler.ErrShiftNotFound),
		errors.Is(err, scheduler.ErrAssignmentNotFound),
		errors.Is(err, scheduler.ErrWorkerNotFound),
		errors.Is(err, scheduler.ErrFacilityNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrInvalidRecurrencePattern):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrSpecialtyMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrAlreadyAssigned),
		errors.Is(err, scheduler.ErrCapacityExceeded),
		errors.Is(err, scheduler.ErrScheduleConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrRegenerationInProgress):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
