package entities

import (
	"fmt"
	"strings"
	"time"
)

// Recommendation is the install decision derived from the overall risk
type Recommendation string

// Recommendations from least to most restrictive
const (
	RecommendInstall Recommendation = "INSTALL"
	RecommendCaution Recommendation = "CAUTION"
	RecommendReview  Recommendation = "REVIEW"
	RecommendBlock   Recommendation = "BLOCK"
)

var recommendationRank = map[Recommendation]int{
	RecommendInstall: 0,
	RecommendCaution: 1,
	RecommendReview:  2,
	RecommendBlock:   3,
}

// ParseRecommendation accepts a case-insensitive recommendation name
func ParseRecommendation(value string) (Recommendation, error) {
	for r := range recommendationRank {
		if strings.EqualFold(string(r), strings.TrimSpace(value)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown recommendation %q", value)
}

// AtMost reports whether r is no more restrictive than limit
func (r Recommendation) AtMost(limit Recommendation) bool {
	rank, ok := recommendationRank[r]
	if !ok {
		return false
	}
	return rank <= recommendationRank[limit]
}

// Subject identifies what was scanned
type Subject struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Path    string `json:"path"`
	Owner   string `json:"owner,omitempty"`
	Source  string `json:"source"`
}

// Assessment is the aggregator output for one set of findings
type Assessment struct {
	OverallRisk       Severity
	Recommendation    Recommendation
	RiskScore         int
	Breakdown         map[Severity]int
	WeaknessBreakdown map[string]int
}

// ScanResult is the finalized outcome of one scan
type ScanResult struct {
	ID                string           `json:"id"`
	Subject           Subject          `json:"subject"`
	Findings          []Finding        `json:"findings"`
	FilesScanned      int              `json:"filesScanned"`
	OverallRisk       Severity         `json:"overallRisk"`
	Recommendation    Recommendation   `json:"recommendation"`
	RiskScore         int              `json:"riskScore"`
	Breakdown         map[Severity]int `json:"breakdown"`
	WeaknessBreakdown map[string]int   `json:"weaknessBreakdown,omitempty"`
	Timestamp         time.Time        `json:"timestamp"`
	Duration          time.Duration    `json:"durationNs"`
}

// NewScanResult assembles a result from findings and their assessment.
// The findings slice is copied so the result never aliases analyzer state.
func NewScanResult(id string, subject Subject, findings []Finding, filesScanned int, a Assessment, at time.Time) *ScanResult {
	owned := make([]Finding, len(findings))
	copy(owned, findings)

	return &ScanResult{
		ID:                id,
		Subject:           subject,
		Findings:          owned,
		FilesScanned:      filesScanned,
		OverallRisk:       a.OverallRisk,
		Recommendation:    a.Recommendation,
		RiskScore:         a.RiskScore,
		Breakdown:         a.Breakdown,
		WeaknessBreakdown: a.WeaknessBreakdown,
		Timestamp:         at,
	}
}

// LogLine renders the one-line human summary "[ts] name: RISK - RECOMMENDATION"
func (r *ScanResult) LogLine() string {
	return fmt.Sprintf("[%s] %s: %s - %s",
		r.Timestamp.UTC().Format(time.RFC3339), r.Subject.Name, r.OverallRisk, r.Recommendation)
}

// Quarantined reports whether the result must be held back for a human
func (r *ScanResult) Quarantined() bool {
	return r.Recommendation == RecommendBlock || r.Recommendation == RecommendReview
}

// CountAtLeast returns how many findings are at or above the given severity
func (r *ScanResult) CountAtLeast(min Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity >= min {
			n++
		}
	}
	return n
}
