// Voice-command HTTP handler.
//
// This file exposes the transcript router:
//   - POST /voice-command  (map a spoken transcript onto a client action)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// VoiceCommandRequest is the JSON payload carrying the recognized transcript.
type VoiceCommandRequest struct {
	// Transcript is the speech-recognition output. Must be non-empty.
	Transcript string `json:"transcript" binding:"required,min=1" example:"start a nutrition scan"`
}

// VoiceCommand godoc
// @ID          voiceCommand
// @Summary     Route a voice transcript
// @Description Maps a recognized transcript onto a client action with a spoken acknowledgement.
// @Tags        Voice
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.VoiceCommandRequest  true  "Transcript payload"
//
// @Success     200  {object} narration.Command
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Router      /voice-command [post]
func (h *Handlers) VoiceCommand(c *gin.Context) {
	var req VoiceCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Transcript) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "transcript required")
		return
	}

	cmd := h.voice.Route(req.Transcript)
	ok(c, http.StatusOK, cmd)
}
