package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/callcoach/backend/internal/archive"
)

// @Summary Archived session
// @Tags sessions
// @Produce json
// @Param callId path string true "Call id"
// @Success 200 {object} models.CallSession
// @Failure 404 {object} map[string]any
// @Router /api/sessions/{callId} [get]
func (h *Handler) SessionByID(c *gin.Context) {
	session, err := h.Calls.Session(c.Request.Context(), c.Param("callId"))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// @Summary Most recently ended session
// @Tags sessions
// @Produce json
// @Success 200 {object} models.CallSession
// @Failure 404 {object} map[string]any
// @Router /api/sessions/latest [get]
func (h *Handler) LatestSession(c *gin.Context) {
	session, err := h.Calls.LatestSession(c.Request.Context())
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) sessionError(c *gin.Context, err error) {
	if errors.Is(err, archive.ErrNotFound) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Session not found", nil)
		return
	}
	h.Logger.Error().Err(err).Msg("failed to load session")
	writeError(c, http.StatusInternalServerError, "ARCHIVE_ERROR", "Failed to load session", err.Error())
}
