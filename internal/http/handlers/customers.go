package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/callcoach/backend/internal/profile"
)

// @Summary Customer lead score
// @Description Initial lead score computed from the customer's synthesized history.
// @Tags customers
// @Produce json
// @Param id path string true "Customer identifier"
// @Success 200 {object} service.CustomerScore
// @Failure 404 {object} map[string]any
// @Router /api/customers/{id}/lead-score [get]
func (h *Handler) CustomerLeadScore(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	score, ok := h.Calls.ScoreCustomer(id)
	if !ok {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No profile available", nil)
		return
	}
	c.JSON(http.StatusOK, score)
}

// @Summary Customer appointments
// @Tags customers
// @Produce json
// @Param id path string true "Customer identifier"
// @Param status query string false "pending, past or cancelled"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/customers/{id}/appointments [get]
func (h *Handler) CustomerAppointments(c *gin.Context) {
	status := c.Query("status")
	if !profile.ValidStatus(status) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "status must be pending, past or cancelled", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	appts, counts, ok := h.Calls.Appointments(id, status)
	if !ok {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No profile available", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customerId": id, "appointments": appts, "counts": counts})
}
