package services

import (
	"testing"

	"github.com/ochairo/pkgguard/internal/domain/entities"
)

func findingsOf(severities ...entities.Severity) []entities.Finding {
	out := make([]entities.Finding, 0, len(severities))
	for _, s := range severities {
		out = append(out, entities.Finding{Category: entities.CategorySignature, Severity: s, Message: s.String()})
	}
	return out
}

// TestAggregate tests the weighted, file-normalized risk formula
func TestAggregate(t *testing.T) {
	tests := []struct {
		name           string
		findings       []entities.Finding
		filesScanned   int
		expectedScore  int
		expectedRisk   entities.Severity
		expectedAction entities.Recommendation
	}{
		{
			name:           "no findings",
			expectedScore:  0,
			expectedRisk:   entities.SeverityInfo,
			expectedAction: entities.RecommendInstall,
		},
		{
			name:           "one critical in one file",
			findings:       findingsOf(entities.SeverityCritical),
			filesScanned:   1,
			expectedScore:  100,
			expectedRisk:   entities.SeverityCritical,
			expectedAction: entities.RecommendBlock,
		},
		{
			name:           "one high with nothing scanned",
			findings:       findingsOf(entities.SeverityHigh),
			filesScanned:   0,
			expectedScore:  50,
			expectedRisk:   entities.SeverityHigh,
			expectedAction: entities.RecommendReview,
		},
		{
			name:           "one medium",
			findings:       findingsOf(entities.SeverityMedium),
			filesScanned:   1,
			expectedScore:  25,
			expectedRisk:   entities.SeverityMedium,
			expectedAction: entities.RecommendCaution,
		},
		{
			name:           "one low",
			findings:       findingsOf(entities.SeverityLow),
			filesScanned:   1,
			expectedScore:  10,
			expectedRisk:   entities.SeverityLow,
			expectedAction: entities.RecommendInstall,
		},
		{
			name:           "critical diluted across four files",
			findings:       findingsOf(entities.SeverityCritical),
			filesScanned:   4,
			expectedScore:  25,
			expectedRisk:   entities.SeverityMedium,
			expectedAction: entities.RecommendCaution,
		},
		{
			name:           "half rounds up",
			findings:       findingsOf(entities.SeverityHigh, entities.SeverityInfo),
			filesScanned:   2,
			expectedScore:  26, // 51 / 2 = 25.5
			expectedRisk:   entities.SeverityMedium,
			expectedAction: entities.RecommendCaution,
		},
		{
			name:           "below low threshold",
			findings:       findingsOf(entities.SeverityLow, entities.SeverityLow, entities.SeverityLow),
			filesScanned:   4,
			expectedScore:  8, // 30 / 4 = 7.5
			expectedRisk:   entities.SeverityInfo,
			expectedAction: entities.RecommendInstall,
		},
	}

	agg := NewRiskAggregator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := agg.Aggregate(tt.findings, tt.filesScanned)
			if a.RiskScore != tt.expectedScore {
				t.Errorf("RiskScore = %d, want %d", a.RiskScore, tt.expectedScore)
			}
			if a.OverallRisk != tt.expectedRisk {
				t.Errorf("OverallRisk = %v, want %v", a.OverallRisk, tt.expectedRisk)
			}
			if a.Recommendation != tt.expectedAction {
				t.Errorf("Recommendation = %v, want %v", a.Recommendation, tt.expectedAction)
			}
		})
	}
}

func TestAggregate_Breakdowns(t *testing.T) {
	findings := []entities.Finding{
		{Category: entities.CategoryVulnerability, WeaknessID: "CWE-79", Severity: entities.SeverityCritical},
		{Category: entities.CategoryVulnerability, WeaknessID: "CWE-79", Severity: entities.SeverityHigh},
		{Category: entities.CategorySignature, Severity: entities.SeverityHigh},
	}

	a := NewRiskAggregator().Aggregate(findings, 1)

	if a.Breakdown[entities.SeverityHigh] != 2 || a.Breakdown[entities.SeverityCritical] != 1 {
		t.Errorf("Breakdown = %v", a.Breakdown)
	}
	if a.WeaknessBreakdown["CWE-79"] != 2 || len(a.WeaknessBreakdown) != 1 {
		t.Errorf("WeaknessBreakdown = %v", a.WeaknessBreakdown)
	}
}

// TestRecommendationFor checks the mapping is total over every severity
func TestRecommendationFor(t *testing.T) {
	want := map[entities.Severity]entities.Recommendation{
		entities.SeverityCritical: entities.RecommendBlock,
		entities.SeverityHigh:     entities.RecommendReview,
		entities.SeverityMedium:   entities.RecommendCaution,
		entities.SeverityLow:      entities.RecommendInstall,
		entities.SeverityInfo:     entities.RecommendInstall,
	}
	for _, s := range entities.AllSeverities() {
		if got := RecommendationFor(s); got != want[s] {
			t.Errorf("RecommendationFor(%v) = %v, want %v", s, got, want[s])
		}
	}
}

func TestRiskForScore_Thresholds(t *testing.T) {
	tests := []struct {
		score int
		want  entities.Severity
	}{
		{75, entities.SeverityCritical},
		{74, entities.SeverityHigh},
		{50, entities.SeverityHigh},
		{49, entities.SeverityMedium},
		{25, entities.SeverityMedium},
		{24, entities.SeverityLow},
		{10, entities.SeverityLow},
		{9, entities.SeverityInfo},
		{0, entities.SeverityInfo},
	}
	for _, tt := range tests {
		if got := RiskForScore(tt.score); got != tt.want {
			t.Errorf("RiskForScore(%d) = %v, want %v", tt.score, got, tt.want)
		}
	}
}
