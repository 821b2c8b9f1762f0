package entities

import (
	"fmt"
	"strings"
)

// Severity is the ordered risk level attached to a finding or a scan result
type Severity int

// Severity levels, lowest first so that comparisons follow risk order
const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{"INFO", "LOW", "MEDIUM", "HIGH", "CRITICAL"}

// severityWeights feeds the aggregation formula
var severityWeights = [...]int{1, 10, 25, 50, 100}

// AllSeverities lists every severity from most to least severe
func AllSeverities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}
}

// Valid reports whether s is one of the defined levels
func (s Severity) Valid() bool {
	return s >= SeverityInfo && s <= SeverityCritical
}

func (s Severity) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// Weight returns the numeric weight used by the risk score
func (s Severity) Weight() int {
	if !s.Valid() {
		return 0
	}
	return severityWeights[s]
}

// ParseSeverity converts a case-insensitive level name into a Severity
func ParseSeverity(value string) (Severity, error) {
	name := strings.ToUpper(strings.TrimSpace(value))
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return SeverityInfo, fmt.Errorf("unknown severity %q", value)
}

// MarshalText encodes the severity by name
func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
