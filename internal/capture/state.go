package capture

import (
	"fmt"

	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// State is a capture controller state.
type State int

const (
	Idle State = iota
	Recording
	Finalizing
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Finalizing:
		return "finalizing"
	case Failed:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions is the controller's transition table. Anything missing is rejected.
var transitions = map[State][]State{
	Idle:       {Recording},
	Recording:  {Finalizing, Idle},
	Finalizing: {Idle, Failed},
	Failed:     {Idle},
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to State) error {
	if !allowed(from, to) {
		return fmt.Errorf("%w: %s -> %s", contracts.ErrInvalidTransition, from, to)
	}
	return nil
}
