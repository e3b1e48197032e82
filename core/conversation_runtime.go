package orchestration

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const conversationEventQueueCapacity = 10

type queuedSentence struct {
	transcript string
	requestID  string
	queuedAt   time.Time
}

// conversationRuntime serializes sentence ends so that only one turn is ever
// in flight. Sentences arriving during a turn wait in the queue.
type conversationRuntime struct {
	queue   chan queuedSentence
	closeCh chan struct{}
	done    chan struct{}

	endOnce sync.Once
	pending atomic.Int32
}

func newConversationRuntime() *conversationRuntime {
	return &conversationRuntime{
		queue:   make(chan queuedSentence, conversationEventQueueCapacity),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// enqueue blocks while the queue is full and gives up once the runtime ends.
func (runtime *conversationRuntime) enqueue(sentence queuedSentence) bool {
	select {
	case <-runtime.closeCh:
		return false
	default:
	}

	runtime.pending.Add(1)
	select {
	case runtime.queue <- sentence:
		return true
	case <-runtime.closeCh:
		runtime.pending.Add(-1)
		return false
	}
}

// waiting reports how many sentences are queued behind the current turn.
func (runtime *conversationRuntime) waiting() int {
	return int(runtime.pending.Load())
}

func (runtime *conversationRuntime) run(process func(context.Context, queuedSentence)) func(context.Context) error {
	return func(ctx context.Context) error {
		defer close(runtime.done)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-runtime.closeCh:
				return nil
			case sentence := <-runtime.queue:
				runtime.pending.Add(-1)
				process(ctx, sentence)
			}
		}
	}
}

func (runtime *conversationRuntime) end() {
	runtime.endOnce.Do(func() {
		close(runtime.closeCh)
	})
}
