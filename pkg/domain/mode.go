package domain

import "fmt"

// ExecutionMode selects where the assembled text is delivered.
type ExecutionMode int

const (
	// ModeClipboard copies the text to the clipboard only.
	ModeClipboard ExecutionMode = iota
	// ModeTransfer hands the text to the target application.
	ModeTransfer
	// ModeExecute hands the text over and triggers it immediately.
	ModeExecute

	modeCount = 3
)

// DefaultMode is used when no valid mode was persisted.
const DefaultMode = ModeTransfer

// Valid reports whether m is one of the known modes.
func (m ExecutionMode) Valid() bool {
	return m >= 0 && m < modeCount
}

// Next returns the following mode, wrapping around.
func (m ExecutionMode) Next() ExecutionMode {
	if !m.Valid() {
		return DefaultMode
	}
	return (m + 1) % modeCount
}

func (m ExecutionMode) String() string {
	switch m {
	case ModeClipboard:
		return "clipboard"
	case ModeTransfer:
		return "transfer"
	case ModeExecute:
		return "execute"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a mode name back to an ExecutionMode.
func ParseMode(s string) (ExecutionMode, error) {
	for m := ExecutionMode(0); m < modeCount; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return DefaultMode, fmt.Errorf("unknown execution mode %q", s)
}

// MarshalText encodes the mode by name.
func (m ExecutionMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *ExecutionMode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
