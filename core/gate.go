package orchestration

import "sync/atomic"

// TurnGate decides whether captured audio reaches the recognizer. It is busy
// for the whole generate/synthesize/play cycle of a turn so the microphone
// never records the assistant's own voice.
type TurnGate struct {
	busy atomic.Bool
}

// NewTurnGate returns a gate in the capturing state.
func NewTurnGate() *TurnGate {
	return &TurnGate{}
}

func (g *TurnGate) SetBusy()          { g.busy.Store(true) }
func (g *TurnGate) SetCapturing()     { g.busy.Store(false) }
func (g *TurnGate) IsCapturing() bool { return !g.busy.Load() }
