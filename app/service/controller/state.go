package controller

// State is the interaction mode. Exactly one holds at a time.
type State int

const (
	StateIdle State = iota
	StateSleeping
	StateChatMode
)

func (s State) String() string {
	switch s {
	case StateSleeping:
		return "sleeping"
	case StateChatMode:
		return "chat"
	default:
		return "idle"
	}
}

type trigger int

const (
	triggerNone trigger = iota
	triggerWake
	triggerAwake
	triggerTerminate
)

func (t trigger) String() string {
	switch t {
	case triggerWake:
		return "wake_word"
	case triggerAwake:
		return "wake_up_phrase"
	case triggerTerminate:
		return "termination_phrase"
	default:
		return "none"
	}
}
