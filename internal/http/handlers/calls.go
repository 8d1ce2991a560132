package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/callcoach/backend/internal/models"
	"github.com/callcoach/backend/internal/service"
)

type StartCallRequest struct {
	CustomerID string               `json:"customerId" validate:"omitempty,max=128"`
	Profile    *models.ProfileHints `json:"profile"`
	Force      bool                 `json:"force"`
}

type TranscriptRequest struct {
	Role    string `json:"role" validate:"required,max=32"`
	Content string `json:"content" validate:"required,max=8000"`
}

// @Summary Start a call
// @Description Starts the live call for a customer. Use customerId "unknown" when the caller is not identified.
// @Tags calls
// @Accept json
// @Produce json
// @Param request body StartCallRequest false "Call start"
// @Success 200 {object} service.StartResult
// @Failure 400 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/calls/start [post]
func (h *Handler) StartCall(c *gin.Context) {
	var req StartCallRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if !h.validate(c, req) {
		return
	}

	res, err := h.Calls.Start(c.Request.Context(), service.StartRequest{
		CustomerID: req.CustomerID,
		Profile:    req.Profile,
		Force:      req.Force,
	})
	if err != nil {
		if errors.Is(err, service.ErrCallActive) {
			writeError(c, http.StatusConflict, "CALL_ACTIVE", "A call is already in progress", nil)
			return
		}
		h.Logger.Error().Err(err).Msg("failed to start call")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Failed to start call", err.Error())
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Append a transcript turn
// @Tags calls
// @Accept json
// @Produce json
// @Param request body TranscriptRequest true "Transcript turn"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/calls/transcript [post]
func (h *Handler) AppendTranscript(c *gin.Context) {
	var req TranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if !h.validate(c, req) {
		return
	}

	res, err := h.Calls.AppendTurn(c.Request.Context(), req.Role, req.Content)
	switch {
	case errors.Is(err, service.ErrInvalidTurn):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "role and content are required", nil)
	case errors.Is(err, service.ErrNoActiveCall):
		c.JSON(http.StatusOK, gin.H{"ok": false, "reason": "no active call"})
	case err != nil:
		h.Logger.Error().Err(err).Msg("failed to append transcript")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Failed to append transcript", err.Error())
	default:
		c.JSON(http.StatusOK, gin.H{
			"ok":                true,
			"turnCount":         res.TurnCount,
			"nudgeTimerRunning": res.TimerRunning,
		})
	}
}

// @Summary End the active call
// @Description Classifies sentiment, archives the session and returns it. Ending with no active call reports ended=false.
// @Tags calls
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/calls/end [post]
func (h *Handler) EndCall(c *gin.Context) {
	session, err := h.Calls.End(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoActiveCall) {
			c.JSON(http.StatusOK, gin.H{"ended": false, "reason": "no active call"})
			return
		}
		h.Logger.Error().Err(err).Msg("failed to end call")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Failed to end call", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"ended": true, "callId": session.CallID, "session": session})
}

// @Summary Current call status
// @Tags calls
// @Produce json
// @Success 200 {object} service.CallStatus
// @Router /api/calls/current [get]
func (h *Handler) CurrentCall(c *gin.Context) {
	c.JSON(http.StatusOK, h.Calls.Status())
}

// @Summary Current lead score
// @Tags lead-score
// @Produce json
// @Success 200 {object} models.LeadScore
// @Router /api/lead-score/current [get]
func (h *Handler) CurrentLeadScore(c *gin.Context) {
	ls, ok := h.Calls.CurrentLeadScore()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"score": nil, "baseScore": nil, "adjustments": nil, "lastUpdated": nil})
		return
	}
	c.JSON(http.StatusOK, ls)
}
