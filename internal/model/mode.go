package model

import "strings"

// Mode selects how the per-row fallback handles duplicate fact keys.
type Mode string

const (
	ModeSkip      Mode = "skip"
	ModeOverwrite Mode = "overwrite"
	ModeError     Mode = "error"
)

// ParseMode maps user input to a Mode. Unknown values fall back to ModeSkip.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeOverwrite:
		return ModeOverwrite
	case ModeError:
		return ModeError
	default:
		return ModeSkip
	}
}
