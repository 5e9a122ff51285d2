package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is the level attached to an audit issue and to an analyzer result.
//
// Levels are ordered so that the worst level of a set of issues is simply
// the maximum value.
type Severity int

const (
	// SeveritySuccess marks a check that passed.
	SeveritySuccess Severity = iota

	// SeverityInfo marks an observation that needs no action.
	SeverityInfo

	// SeverityWarning marks a problem that is likely to hurt ranking.
	// Examples: thin content, near-duplicate pages.
	SeverityWarning

	// SeverityError marks a problem that search engines act on directly.
	// Examples: empty pages, exact duplicate pages.
	SeverityError
)

// String returns the upper-case name of the severity level.
func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "SUCCESS"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity converts a severity name (case-insensitive) back to a Severity.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "SUCCESS":
		return SeveritySuccess, nil
	case "INFO":
		return SeverityInfo, nil
	case "WARNING":
		return SeverityWarning, nil
	case "ERROR":
		return SeverityError, nil
	default:
		return SeveritySuccess, fmt.Errorf("unknown severity %q", name)
	}
}

// MarshalJSON encodes the severity as its lower-case name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToLower(s.String()))
}

// UnmarshalJSON decodes a severity name produced by MarshalJSON.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// DetermineSeverity returns the worst severity among issues.
// An empty list is a success.
func DetermineSeverity(issues []Issue) Severity {
	worst := SeveritySuccess
	for _, issue := range issues {
		if issue.Severity > worst {
			worst = issue.Severity
		}
	}
	return worst
}
