// Package speech proxies text-to-speech synthesis through the OpenAI audio
// API. The HTTP layer streams the returned mp3 to the browser; on upstream
// failure the client falls back to local speechSynthesis, so errors here are
// reported but never fatal.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/healthscan/go-healthscan-backend/internal/config"
)

// MaxTextRunes bounds a synthesis request; longer narration scripts are for
// the client-side engine.
const MaxTextRunes = 4096

var (
	// ErrUnavailable means no API key is configured; handlers map it to a
	// 502 so the client falls back to local synthesis.
	ErrUnavailable = errors.New("speech: synthesis unavailable")

	// ErrEmptyText rejects blank input before any upstream call.
	ErrEmptyText = errors.New("speech: text must not be empty")

	// ErrTextTooLong rejects input above MaxTextRunes.
	ErrTextTooLong = errors.New("speech: text too long")
)

// synthAPI is the slice of the OpenAI client used here; narrowed for tests.
type synthAPI interface {
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// Service converts narration text to mp3 audio.
type Service struct {
	Model        string
	DefaultVoice string
	Timeout      time.Duration

	client synthAPI
}

// New builds the service from configuration. A missing API key produces a
// degraded service whose Synthesize always returns ErrUnavailable.
func New(cfg config.OpenAIConfig) *Service {
	s := &Service{
		Model:        cfg.TTSModel,
		DefaultVoice: cfg.TTSVoice,
		Timeout:      cfg.Timeout,
	}
	if cfg.APIKey != "" {
		s.client = openai.NewClient(cfg.APIKey)
	}
	return s
}

// Synthesize renders text with the requested voice (or the configured
// default) and returns the full mp3 payload.
func (s *Service) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if len([]rune(text)) > MaxTextRunes {
		return nil, ErrTextTooLong
	}
	if s.client == nil {
		return nil, ErrUnavailable
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.Model),
		Input:          text,
		Voice:          s.resolveVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return audio, nil
}

// resolveVoice maps a client-requested voice onto the supported set, falling
// back to the configured default for anything unknown.
func (s *Service) resolveVoice(voice string) openai.SpeechVoice {
	switch v := openai.SpeechVoice(strings.ToLower(strings.TrimSpace(voice))); v {
	case openai.VoiceAlloy, openai.VoiceEcho, openai.VoiceFable,
		openai.VoiceOnyx, openai.VoiceNova, openai.VoiceShimmer:
		return v
	}
	return openai.SpeechVoice(s.DefaultVoice)
}
