package controller

import (
	"fmt"
	"strings"

	"github.com/nerrad567/vhtoggle/internal/device"
)

// Mode selects what a cycle may do.
type Mode uint8

const (
	// ModeBackground only observes and records.
	ModeBackground Mode = iota

	// ModeInteractive also toggles the device.
	ModeInteractive
)

// String returns "background" or "interactive".
func (m Mode) String() string {
	switch m {
	case ModeBackground:
		return device.StateHistorySourceBackground
	case ModeInteractive:
		return device.StateHistorySourceInteractive
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode parses "background" / "interactive" (also "refresh" / "toggle").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "background", "refresh":
		return ModeBackground, nil
	case "interactive", "toggle":
		return ModeInteractive, nil
	default:
		return ModeBackground, fmt.Errorf("unknown mode %q", s)
	}
}
