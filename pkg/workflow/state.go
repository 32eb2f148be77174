package workflow

import "fmt"

// State is the stage a composition run is in.
type State int

const (
	StateIdle State = iota
	StateSaving
	StateAssembling
	StateCollectingVariables
	StateDelivering
	// StateCoolingDown follows every run until the cool-down elapses.
	StateCoolingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSaving:
		return "saving"
	case StateAssembling:
		return "assembling"
	case StateCollectingVariables:
		return "collecting_variables"
	case StateDelivering:
		return "delivering"
	case StateCoolingDown:
		return "cooling_down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
