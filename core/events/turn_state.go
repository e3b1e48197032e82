package events

const (
	KindTurnStarted   Kind = "turn_state.started"
	KindTurnCompleted Kind = "turn_state.completed"
	KindTurnFailed    Kind = "turn_state.failed"
)

type TurnStarted struct {
	Base
	Transcript string
}

func NewTurnStarted(transcript string) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted), Transcript: transcript}
}

type TurnCompleted struct {
	Base
	Transcript string
	Reply      string
}

func NewTurnCompleted(transcript, reply string) TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted), Transcript: transcript, Reply: reply}
}

type TurnFailed struct {
	Base
	Transcript string
	Err        error
}

func NewTurnFailed(transcript string, err error) TurnFailed {
	return TurnFailed{Base: NewBase(KindTurnFailed), Transcript: transcript, Err: err}
}
