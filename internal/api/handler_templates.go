package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"staffing-backend/internal/model"
	"staffing-backend/internal/scheduler"
)

type createTemplateRequest struct {
	FacilityID  string  `json:"facility_id" binding:"required"`
	Department  string  `json:"department"`
	Specialty   string  `json:"specialty" binding:"required"`
	Weekdays    []int   `json:"weekdays" binding:"required"`
	StartTime   string  `json:"start_time" binding:"required"`
	EndTime     string  `json:"end_time" binding:"required"`
	MinStaff    int     `json:"min_staff" binding:"required,min=1"`
	MaxStaff    int     `json:"max_staff" binding:"required,min=1"`
	HourlyRate  float64 `json:"hourly_rate"`
	HorizonDays int     `json:"horizon_days"`
	IsActive    bool    `json:"is_active"`
}

func weekdaysFromInts(days []int) model.Weekdays {
	var w model.Weekdays
	for _, d := range days {
		if d >= 0 && d <= 6 {
			w |= model.WeekdaysOf(time.Weekday(d))
		}
	}
	return w
}

// CreateTemplate handles POST /api/templates.
func (h *Handler) CreateTemplate(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tmpl := &model.ShiftTemplate{
		FacilityID:  req.FacilityID,
		Department:  req.Department,
		Specialty:   req.Specialty,
		Weekdays:    weekdaysFromInts(req.Weekdays),
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		MinStaff:    req.MinStaff,
		MaxStaff:    req.MaxStaff,
		HourlyRate:  req.HourlyRate,
		HorizonDays: req.HorizonDays,
		IsActive:    req.IsActive,
	}

	created, generated, err := h.templates.CreateTemplate(c.Request.Context(), tmpl)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"template": created, "generated": generated})
}

type updateTemplateRequest struct {
	Department  *string  `json:"department"`
	Specialty   *string  `json:"specialty"`
	Weekdays    []int    `json:"weekdays"`
	StartTime   *string  `json:"start_time"`
	EndTime     *string  `json:"end_time"`
	MinStaff    *int     `json:"min_staff"`
	MaxStaff    *int     `json:"max_staff"`
	HourlyRate  *float64 `json:"hourly_rate"`
	HorizonDays *int     `json:"horizon_days"`
}

// UpdateTemplate handles PATCH /api/templates/:id. An update to an active
// template regenerates its future unassigned instances.
func (h *Handler) UpdateTemplate(c *gin.Context) {
	var req updateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := scheduler.TemplatePatch{
		Department:  req.Department,
		Specialty:   req.Specialty,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		MinStaff:    req.MinStaff,
		MaxStaff:    req.MaxStaff,
		HourlyRate:  req.HourlyRate,
		HorizonDays: req.HorizonDays,
	}
	if req.Weekdays != nil {
		w := weekdaysFromInts(req.Weekdays)
		patch.Weekdays = &w
	}

	tmpl, generated, err := h.templates.UpdateTemplate(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": tmpl, "generated": generated})
}

// GetTemplate handles GET /api/templates/:id.
func (h *Handler) GetTemplate(c *gin.Context) {
	tmpl, err := h.templates.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetTemplateActive handles PUT /api/templates/:id/active.
func (h *Handler) SetTemplateActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tmpl, generated, err := h.templates.SetActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": tmpl, "generated": generated})
}

// RegenerateShifts handles POST /api/templates/:id/regenerate.
func (h *Handler) RegenerateShifts(c *gin.Context) {
	generated, err := h.templates.Regenerate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"generated": generated})
}
