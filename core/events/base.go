package events

import (
	"sync/atomic"
	"time"
)

type Kind string

// Namespace returns the part of the kind before the first dot.
func (k Kind) Namespace() string {
	for i := range len(k) {
		if k[i] == '.' {
			return string(k[:i])
		}
	}
	return string(k)
}

type Event interface {
	Kind() Kind
	// Sequence increases with every event created in the process, so
	// observers can restore creation order after asynchronous delivery.
	Sequence() uint64
	Timestamp() time.Time
}

var sequence atomic.Uint64

type Base struct {
	kind      Kind
	sequence  uint64
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, sequence: sequence.Add(1), timestamp: time.Now()}
}

func (b Base) Kind() Kind           { return b.kind }
func (b Base) Sequence() uint64     { return b.sequence }
func (b Base) Timestamp() time.Time { return b.timestamp }
