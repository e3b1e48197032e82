package reports

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// TimeLayout is the layout of Record.Time.
const TimeLayout = "2006-01-02 15:04:05"

type Type int

const (
	TypeDialogue  Type = 0
	TypeChoice    Type = 1
	TypeDirection Type = 2
)

func (t Type) String() string {
	switch t {
	case TypeDialogue:
		return "dialogue"
	case TypeChoice:
		return "choice"
	case TypeDirection:
		return "direction"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Result grades a single exercise item. Dialogue items are not graded.
type Result int

const (
	ResultNone      Result = 0
	ResultCorrect   Result = 1
	ResultIncorrect Result = 2
)

func Grade(correct bool) Result {
	if correct {
		return ResultCorrect
	}
	return ResultIncorrect
}

type Detail struct {
	Question      string `json:"question" jsonschema:"description=Prompt shown or played to the user, empty for dialogue"`
	UserAnswer    string `json:"user_answer" jsonschema:"description=Recognized user answer or utterance"`
	CorrectAnswer string `json:"correct_answer" jsonschema:"description=Expected answer, or the assistant reply for dialogue"`
	Result        Result `json:"result" jsonschema:"enum=0,enum=1,enum=2"`
}

// Record is one training session.
type Record struct {
	ID     int      `json:"id"`
	Time   string   `json:"time"`
	Type   Type     `json:"type" jsonschema:"enum=0,enum=1,enum=2"`
	Detail []Detail `json:"detail"`
	Report string   `json:"report,omitempty" jsonschema:"description=Generated HTML report body"`
}

// Sink persists records. Save is called with the whole record after every
// item, so implementations overwrite by ID.
type Sink interface {
	Save(ctx context.Context, record Record) error
}

// Log is the in-memory training log of one session.
type Log struct {
	mu     sync.Mutex
	record Record
	sink   Sink
}

func NewLog(id int, recordType Type, sink Sink) *Log {
	return &Log{
		record: Record{
			ID:     id,
			Time:   time.Now().Format(TimeLayout),
			Type:   recordType,
			Detail: []Detail{},
		},
		sink: sink,
	}
}

// Append adds an item and forwards the updated record to the sink.
func (l *Log) Append(ctx context.Context, detail Detail) error {
	l.mu.Lock()
	l.record.Detail = append(l.record.Detail, detail)
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	if l.sink == nil {
		return nil
	}
	if err := l.sink.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to save training record %d: %w", snapshot.ID, err)
	}
	return nil
}

func (l *Log) Record() Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Log) snapshotLocked() Record {
	snapshot := l.record
	snapshot.Detail = slices.Clone(l.record.Detail)
	return snapshot
}
