// Speech HTTP handler.
//
// This file exposes the server-side text-to-speech proxy:
//   - POST /text-to-speech  (synthesize narration text to mp3)
//
// Upstream synthesis failures map to 502 so the browser can fall back to the
// local speechSynthesis engine.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healthscan/go-healthscan-backend/internal/speech"
)

// SpeechRequest is the JSON payload for synthesis.
type SpeechRequest struct {
	// Text is the narration to render. Must be non-empty.
	Text string `json:"text" binding:"required,min=1" example:"Scan complete. Condition detected: Eczema."`
	// Voice optionally selects the synthesis voice; unknown values fall back
	// to the server default.
	Voice string `json:"voice" example:"nova"`
}

// TextToSpeech godoc
// @ID          textToSpeech
// @Summary     Synthesize narration audio
// @Description Converts narration text to an mp3 stream via the upstream speech API.
// @Tags        Speech
// @Accept      json
// @Produce     audio/mpeg
//
// @Param       body  body  handlers.SpeechRequest  true  "Synthesis payload"
//
// @Success     200  {file}   binary                  "MP3 audio"
// @Failure     400  {object} handlers.ErrorResponse  "Bad request"
// @Failure     502  {object} handlers.ErrorResponse  "Upstream synthesis failed"
// @Router      /text-to-speech [post]
func (h *Handlers) TextToSpeech(c *gin.Context) {
	if h.speechSvc == nil {
		fail(c, http.StatusBadGateway, ErrCodeSpeechFailed, "speech synthesis unavailable")
		return
	}

	var req SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}

	audio, err := h.speechSvc.Synthesize(c.Request.Context(), req.Text, req.Voice)
	if err != nil {
		switch {
		case errors.Is(err, speech.ErrEmptyText):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		case errors.Is(err, speech.ErrTextTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest,
				fmt.Sprintf("text too long: max %d characters", speech.MaxTextRunes))
		default:
			// Includes ErrUnavailable and upstream API errors; the client
			// falls back to local synthesis on 502.
			fail(c, http.StatusBadGateway, ErrCodeSpeechFailed, "speech synthesis failed")
		}
		return
	}

	c.Data(http.StatusOK, "audio/mpeg", audio)
}
