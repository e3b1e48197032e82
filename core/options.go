package orchestration

import (
	"context"
	"time"

	"github.com/lingting/rehab-core/core/llms"
	"github.com/lingting/rehab-core/core/reports"
	"github.com/lingting/rehab-core/core/speechtotext"
)

type OrchestratorOption func(*Orchestrator)

// Speaker speaks a reply and returns once playback has finished.
type Speaker interface {
	SendText(ctx context.Context, text string) error
}

// Broadcaster publishes one line of text to the display clients.
type Broadcaster interface {
	Broadcast(message string)
}

// TrainingLog records one exercise item per completed turn.
type TrainingLog interface {
	Append(ctx context.Context, detail reports.Detail) error
}

func WithAudioInput(input AudioInput) OrchestratorOption {
	return func(o *Orchestrator) { o.audioInput = input }
}

// WithRecognizer sets the recognizer. A fresh recognition session is started
// on it for every Run and ListenOnce call.
func WithRecognizer(recognizer speechtotext.Recognizer) OrchestratorOption {
	return func(o *Orchestrator) { o.recognizer = recognizer }
}

// WithGenerator enables dialogue turns. Without a generator the orchestrator
// only republishes transcripts.
func WithGenerator(generator llms.Generator) OrchestratorOption {
	return func(o *Orchestrator) { o.generator = generator }
}

func WithSpeaker(speaker Speaker) OrchestratorOption {
	return func(o *Orchestrator) { o.speaker = speaker }
}

func WithBroadcaster(broadcaster Broadcaster) OrchestratorOption {
	return func(o *Orchestrator) { o.broadcaster = broadcaster }
}

func WithSystemPrompt(prompt string) OrchestratorOption {
	return func(o *Orchestrator) { o.conversation = newConversation(prompt) }
}

func WithTrainingLog(log TrainingLog) OrchestratorOption {
	return func(o *Orchestrator) { o.trainingLog = log }
}

// WithTranscriptFormatter rewrites transcripts before they are broadcast.
func WithTranscriptFormatter(format func(string) string) OrchestratorOption {
	return func(o *Orchestrator) {
		if format != nil {
			o.formatTranscript = format
		}
	}
}

func WithEventHandler(handler EventHandler) OrchestratorOption {
	return func(o *Orchestrator) {
		if handler == nil {
			o.eventHandler = noopEventHandler
			return
		}
		o.eventHandler = handler
	}
}

// WithStopTimeout bounds how long stopping the recognizer may take when a run
// ends.
func WithStopTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.stopTimeout = timeout
		}
	}
}
