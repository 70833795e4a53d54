package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type assignRequest struct {
	WorkerID   string `json:"worker_id" binding:"required"`
	AssignedBy string `json:"assigned_by"`
}

// AssignWorker handles POST /api/shifts/:id/assignments.
func (h *Handler) AssignWorker(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := h.engine.Assign(c.Request.Context(), c.Param("id"), req.WorkerID, req.AssignedBy)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// UnassignWorker handles DELETE /api/shifts/:id/assignments/:worker_id.
func (h *Handler) UnassignWorker(c *gin.Context) {
	a, err := h.engine.Unassign(c.Request.Context(), c.Param("id"), c.Param("worker_id"))
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// GetAssignments handles GET /api/shifts/:id/assignments, returning the full
// assignment history of a shift for audit.
func (h *Handler) GetAssignments(c *gin.Context) {
	assignments, err := h.engine.Assignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignments)
}
