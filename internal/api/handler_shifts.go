package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"staffing-backend/internal/model"
	"staffing-backend/internal/store"
)

// ListOpenShifts handles GET /api/shifts. Only open and partially filled
// shifts are returned; responses are cacheable by the caching middleware.
func (h *Handler) ListOpenShifts(c *gin.Context) {
	filter := store.ShiftFilter{
		FacilityID: c.Query("facility_id"),
		Specialty:  c.Query("specialty"),
	}

	if from := c.Query("from"); from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, time.UTC)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date, want YYYY-MM-DD"})
			return
		}
		filter.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.ParseInLocation("2006-01-02", to, time.UTC)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date, want YYYY-MM-DD"})
			return
		}
		filter.To = &t
	}

	shifts, err := h.store.ListOpenShifts(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list shifts"})
		return
	}
	c.JSON(http.StatusOK, shifts)
}

type createShiftRequest struct {
	FacilityID string  `json:"facility_id" binding:"required"`
	Department string  `json:"department"`
	Specialty  string  `json:"specialty" binding:"required"`
	Date       string  `json:"date" binding:"required"`
	StartTime  string  `json:"start_time" binding:"required"`
	EndTime    string  `json:"end_time" binding:"required"`
	Capacity   int     `json:"capacity" binding:"required,min=1"`
	HourlyRate float64 `json:"hourly_rate"`
	Urgency    string  `json:"urgency"`
}

// CreateShift handles POST /api/shifts: manual creation of an ad-hoc shift
// instance not bound to any template.
func (h *Handler) CreateShift(c *gin.Context) {
	var req createShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
		return
	}

	sh := &model.ShiftInstance{
		FacilityID: req.FacilityID,
		Department: req.Department,
		Specialty:  req.Specialty,
		Date:       date,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Capacity:   req.Capacity,
		HourlyRate: req.HourlyRate,
		Urgency:    req.Urgency,
	}

	created, err := h.templates.CreateAdHocShift(c.Request.Context(), sh)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// CancelShift handles DELETE /api/shifts/:id. Cancellation is terminal: the
// shift stops accepting assignments but its history stays on record.
func (h *Handler) CancelShift(c *gin.Context) {
	if err := h.templates.CancelShift(c.Request.Context(), c.Param("id")); err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
