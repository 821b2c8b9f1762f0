// Package services defines interfaces for domain service contracts.
package services

import (
	"github.com/ochairo/pkgguard/internal/domain/entities"
)

// NameAnalyzer holds the name-based checks that run before any file is read
type NameAnalyzer interface {
	// DetectTyposquatting returns at most three matches, HIGH risk first
	DetectTyposquatting(candidate string) []entities.SimilarityMatch

	// InspectSubject converts typosquatting matches, suspicious name tokens,
	// known-malicious names and owner reputation into findings
	InspectSubject(subject entities.Subject) []entities.Finding
}

// RiskAggregator turns findings into the overall risk and recommendation
type RiskAggregator interface {
	Aggregate(findings []entities.Finding, filesScanned int) entities.Assessment
}
