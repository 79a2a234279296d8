package types

import (
	"fmt"
	"strings"
)

// PressureLevel is the system memory pressure as seen by the governor
type PressureLevel int

const (
	PressureNormal PressureLevel = iota
	PressureLow
	PressureCritical
)

// String returns the string representation of the level
func (l PressureLevel) String() string {
	switch l {
	case PressureLow:
		return "low"
	case PressureCritical:
		return "critical"
	default:
		return "normal"
	}
}

// ParsePressureLevel parses "normal", "low" or "critical"
func ParsePressureLevel(s string) (PressureLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "":
		return PressureNormal, nil
	case "low":
		return PressureLow, nil
	case "critical":
		return PressureCritical, nil
	default:
		return PressureNormal, fmt.Errorf("unknown pressure level %q", s)
	}
}
