package orchestration

import "github.com/lingting/rehab-core/core/events"

// EventHandler observes orchestrator events. It is called synchronously from
// the goroutine that produced the event and must not block.
type EventHandler func(events.Event)

func noopEventHandler(events.Event) {}

func (o *Orchestrator) emit(event events.Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("event handler panicked",
				"namespace", event.Kind().Namespace(),
				"kind", event.Kind(),
				"sequence", event.Sequence(),
				"panic", recovered)
		}
	}()
	o.eventHandler(event)
}
