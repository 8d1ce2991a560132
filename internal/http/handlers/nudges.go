package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type AckNudgesRequest struct {
	SIDs []string `json:"sids" validate:"required,max=64,dive,required"`
}

// @Summary Pending nudges
// @Description Returns up to 16 pending nudges without consuming them.
// @Tags nudges
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/nudges/latest [get]
func (h *Handler) LatestNudges(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"nudges": h.Calls.LatestNudges()})
}

// @Summary Acknowledge nudges
// @Description Removes the given nudges from the pending queue and starts the re-show cooldown for their titles.
// @Tags nudges
// @Accept json
// @Produce json
// @Param request body AckNudgesRequest true "Shown nudge sids"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/nudges/ack [post]
func (h *Handler) AckNudges(c *gin.Context) {
	var req AckNudgesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if !h.validate(c, req) {
		return
	}
	n := h.Calls.AckNudges(req.SIDs)
	c.JSON(http.StatusOK, gin.H{"ok": true, "acknowledged": n})
}
