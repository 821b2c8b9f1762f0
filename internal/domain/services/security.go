// Package services implements domain business logic and use cases.
package services

import (
	"math"

	"github.com/ochairo/pkgguard/internal/domain/entities"
	"github.com/ochairo/pkgguard/internal/domain/interfaces/services"
)

// Score thresholds for the overall risk tier
const (
	criticalScore = 75
	highScore     = 50
	mediumScore   = 25
	lowScore      = 10
)

// riskAggregator implements RiskAggregator with the weighted, file-normalized formula
type riskAggregator struct{}

// NewRiskAggregator creates the risk aggregator
func NewRiskAggregator() services.RiskAggregator {
	return &riskAggregator{}
}

// Aggregate sums severity weights, divides by max(filesScanned, 1), rounds,
// and maps the score onto a tier and a recommendation. Nothing else feeds the
// decision: trust signals must arrive as findings.
func (r *riskAggregator) Aggregate(findings []entities.Finding, filesScanned int) entities.Assessment {
	raw := 0
	breakdown := make(map[entities.Severity]int)
	weaknesses := make(map[string]int)

	for _, f := range findings {
		raw += f.Severity.Weight()
		breakdown[f.Severity]++
		if f.WeaknessID != "" {
			weaknesses[f.WeaknessID]++
		}
	}

	score := RiskScore(raw, filesScanned)
	risk := RiskForScore(score)

	a := entities.Assessment{
		OverallRisk:    risk,
		Recommendation: RecommendationFor(risk),
		RiskScore:      score,
		Breakdown:      breakdown,
	}
	if len(weaknesses) > 0 {
		a.WeaknessBreakdown = weaknesses
	}
	return a
}

// RiskScore normalizes a raw weight sum by the number of scanned files
func RiskScore(raw, filesScanned int) int {
	return int(math.Round(float64(raw) / float64(max(filesScanned, 1))))
}

// RiskForScore maps a normalized score onto a severity tier
func RiskForScore(score int) entities.Severity {
	switch {
	case score >= criticalScore:
		return entities.SeverityCritical
	case score >= highScore:
		return entities.SeverityHigh
	case score >= mediumScore:
		return entities.SeverityMedium
	case score >= lowScore:
		return entities.SeverityLow
	default:
		return entities.SeverityInfo
	}
}

// RecommendationFor is the total mapping from overall risk to recommendation
func RecommendationFor(risk entities.Severity) entities.Recommendation {
	switch risk {
	case entities.SeverityCritical:
		return entities.RecommendBlock
	case entities.SeverityHigh:
		return entities.RecommendReview
	case entities.SeverityMedium:
		return entities.RecommendCaution
	default:
		return entities.RecommendInstall
	}
}
