// Package drift defines distribution drift levels reported by the live monitor.
package drift

import (
	"fmt"
	"strings"
)

// Level describes how far production data has drifted from the training
// distribution.
type Level int

const (
	// LevelUnknown represents a missing or invalid drift reading.
	LevelUnknown Level = iota
	// LevelLow indicates drift within normal bounds.
	LevelLow
	// LevelModerate indicates drift worth watching but not blocking.
	LevelModerate
	// LevelHigh indicates drift that invalidates offline evaluation.
	LevelHigh
	// LevelCritical indicates severe drift requiring immediate review.
	LevelCritical
)

// BlocksPromotion reports whether this drift level fails evaluation
// unconditionally. The training distribution may no longer hold.
func (l Level) BlocksPromotion() bool {
	return l == LevelHigh || l == LevelCritical
}

// Label returns a stable label for a drift level.
func (l Level) Label() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelModerate:
		return "MODERATE"
	case LevelHigh:
		return "HIGH"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// FromLabel parses a string label into a Level.
func FromLabel(value string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "LOW":
		return LevelLow, nil
	case "MODERATE":
		return LevelModerate, nil
	case "HIGH":
		return LevelHigh, nil
	case "CRITICAL":
		return LevelCritical, nil
	case "":
		return LevelUnknown, fmt.Errorf("drift level is required")
	default:
		return LevelUnknown, fmt.Errorf("unknown drift level: %s", value)
	}
}
