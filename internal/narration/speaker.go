package narration

import "github.com/rs/zerolog"

// LogSpeaker is the server-side stand-in for the browser speech engine: it
// records each delivered script so operators can follow the narration flow.
// Deployments with a hardware voice channel swap in their own Speaker.
type LogSpeaker struct {
	Log zerolog.Logger
}

// Cancel implements Speaker. Logging has nothing to interrupt.
func (LogSpeaker) Cancel() {}

// Speak implements Speaker.
func (s LogSpeaker) Speak(script string) error {
	s.Log.Info().Str("script", script).Msg("narration delivered")
	return nil
}
