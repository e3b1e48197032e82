package main

import (
	"context"
	"log/slog"

	orchestration "github.com/lingting/rehab-core/core"
	"github.com/lingting/rehab-core/core/events"
)

// newEventLogger returns a handler that writes each orchestrator event to
// logger. Failures are logged at warn level.
func newEventLogger(logger *slog.Logger) orchestration.EventHandler {
	return func(e events.Event) {
		attrs := []any{
			"kind", string(e.Kind()),
			"namespace", e.Kind().Namespace(),
			"sequence", e.Sequence(),
		}
		level := slog.LevelDebug

		switch e := e.(type) {
		case events.UserSentenceEnded:
			attrs = append(attrs, "transcript", e.Transcript, "request_id", e.RequestID)
			level = slog.LevelInfo
		case events.TurnStarted:
			attrs = append(attrs, "transcript", e.Transcript)
		case events.AssistantReplyGenerated:
			attrs = append(attrs, "reply", e.Reply)
		case events.TurnCompleted:
			attrs = append(attrs, "transcript", e.Transcript, "reply", e.Reply)
			level = slog.LevelInfo
		case events.TurnFailed:
			attrs = append(attrs, "transcript", e.Transcript, "error", e.Err)
			level = slog.LevelWarn
		case events.RecognitionFailed:
			attrs = append(attrs, "error", e.Err)
			level = slog.LevelWarn
		}

		logger.Log(context.Background(), level, "orchestrator event", attrs...)
	}
}
