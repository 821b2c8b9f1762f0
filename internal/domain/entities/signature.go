package entities

import "regexp"

// Signature is a literal substring searched for in raw source text
type Signature struct {
	Needle      string
	Description string
	Severity    Severity
}

// Pattern is a compiled regular expression with its reporting metadata
type Pattern struct {
	Expr       *regexp.Regexp
	Severity   Severity
	WeaknessID string
	Message    string
}

// VulnerabilityClass groups the patterns of one weakness family (xss, sqlInjection, ...)
type VulnerabilityClass struct {
	Name     string
	Patterns []Pattern
}

// PopularPackage is a well-known name worth protecting against typosquatting
type PopularPackage struct {
	Name string
	Risk Severity
}

// KnownMalicious is a package name with a documented compromise
type KnownMalicious struct {
	Name        string
	Description string
}

// SignatureDatabase is the immutable rule set shared by every analyzer.
// Nothing mutates it after construction; concurrent scans read it freely.
type SignatureDatabase struct {
	Signatures            []Signature
	CriticalPatterns      []Pattern
	ScriptPatterns        []Pattern
	VulnerabilityClasses  []VulnerabilityClass
	ObfuscationIndicators []*regexp.Regexp
	Base64Payload         *regexp.Regexp
	PopularPackages       []PopularPackage
	SuspiciousNameTokens  []string
	SuspiciousOwnerTokens []string
	TrustedOwners         []string
	KnownMalicious        map[string]KnownMalicious
	PermissionFlags       []string
	Lockfiles             []string
	NpmrcUnsafePerm       *regexp.Regexp
}

// PatternCount returns the number of compiled regular expressions
func (db *SignatureDatabase) PatternCount() int {
	n := len(db.CriticalPatterns) + len(db.ScriptPatterns) + len(db.ObfuscationIndicators)
	for _, c := range db.VulnerabilityClasses {
		n += len(c.Patterns)
	}
	return n
}

// IsKnownMalicious looks a lowercased package name up in the malicious table
func (db *SignatureDatabase) IsKnownMalicious(name string) (KnownMalicious, bool) {
	km, ok := db.KnownMalicious[name]
	return km, ok
}
