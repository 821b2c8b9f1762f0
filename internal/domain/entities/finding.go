package entities

import (
	"fmt"
	"strings"
)

// Category classifies which analysis produced a finding
type Category string

// Finding categories
const (
	CategorySignature       Category = "SIGNATURE"
	CategoryCriticalPattern Category = "CRITICAL_PATTERN"
	CategoryVulnerability   Category = "VULNERABILITY"
	CategoryTyposquatting   Category = "TYPOSQUATTING"
	CategoryObfuscation     Category = "OBFUSCATION"
	CategoryPermission      Category = "PERMISSION"
	CategoryManifest        Category = "MANIFEST"
)

// MaxSnippetLength bounds how much matched text is copied into a report
const MaxSnippetLength = 80

// Location points at where a finding was observed
type Location struct {
	Path    string `json:"path"`
	Line    int    `json:"line,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

func (l Location) String() string {
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.Path, l.Line)
	}
	return l.Path
}

// Finding is one discrete, located, severity-tagged observation
type Finding struct {
	Category   Category `json:"category"`
	WeaknessID string   `json:"weaknessId,omitempty"` // e.g. CWE-79
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Location   Location `json:"location"`
}

// Key identifies a finding by (category, message, location) for set comparisons
func (f Finding) Key() string {
	return string(f.Category) + "|" + f.Message + "|" + f.Location.String()
}

// NewFinding builds a finding at a plain location
func NewFinding(category Category, severity Severity, message, path string) Finding {
	return Finding{
		Category: category,
		Severity: severity,
		Message:  message,
		Location: Location{Path: path},
	}
}

// TruncateSnippet collapses whitespace and caps the text at MaxSnippetLength runes
func TruncateSnippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= MaxSnippetLength {
		return text
	}
	return string(runes[:MaxSnippetLength-3]) + "..."
}
