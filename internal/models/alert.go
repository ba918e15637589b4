package models

import (
	"fmt"
	"strconv"
)

// Severity is the ordered alert level of a location. The zero value is SeverityNormal.
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityOrange
	SeverityRed
)

func (s Severity) String() string {
	switch s {
	case SeverityNormal:
		return "normal"
	case SeverityOrange:
		return "orange"
	case SeverityRed:
		return "red"
	default:
		return "severity(" + strconv.Itoa(int(s)) + ")"
	}
}

// Valid reports whether s is one of the defined levels.
func (s Severity) Valid() bool {
	return s >= SeverityNormal && s <= SeverityRed
}

// ParseSeverity accepts either the level number or its name.
func ParseSeverity(v string) (Severity, error) {
	switch v {
	case "normal", "0":
		return SeverityNormal, nil
	case "orange", "1":
		return SeverityOrange, nil
	case "red", "2":
		return SeverityRed, nil
	}
	return SeverityNormal, fmt.Errorf("unknown severity %q", v)
}

// MaxSeverity returns the higher of a and b.
func MaxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

// AlertRecord is the outcome of evaluating one observation.
type AlertRecord struct {
	Alerts            []string `json:"alerts"`
	Severity          Severity `json:"severity"`
	SeverityIncreased bool     `json:"severityIncreased"`
}
