// Package signatures holds the built-in rule set and compiles rule definitions
// into the immutable entities.SignatureDatabase shared by the analyzers.
package signatures

// SignatureSpec is a literal needle; Severity may be empty and is then derived from Description
type SignatureSpec struct {
	Needle      string
	Description string
	Severity    string
}

// PatternSpec is an uncompiled regular expression rule
type PatternSpec struct {
	Pattern  string
	Severity string
	CWE      string
	Message  string
}

// ClassSpec groups vulnerability patterns under a weakness family name
type ClassSpec struct {
	Name     string
	Patterns []PatternSpec
}

// PopularSpec is a protected package name and the risk of resembling it
type PopularSpec struct {
	Name string
	Risk string
}

// MaliciousSpec is a package name with a documented compromise
type MaliciousSpec struct {
	Name        string
	Description string
}

// Definition is the raw, uncompiled rule set. Packs loaded from disk are
// merged on top of Default() before compilation.
type Definition struct {
	Signatures            []SignatureSpec
	CriticalPatterns      []PatternSpec
	ScriptPatterns        []PatternSpec
	VulnerabilityClasses  []ClassSpec
	ObfuscationIndicators []string
	Base64Payload         string
	PopularPackages       []PopularSpec
	SuspiciousNameTokens  []string
	SuspiciousOwnerTokens []string
	TrustedOwners         []string
	KnownMalicious        []MaliciousSpec
	PermissionFlags       []string
	Lockfiles             []string
	NpmrcUnsafePerm       string
}

// Merge appends every list of pack onto base. Vulnerability classes with the
// same name are extended rather than duplicated, and non-empty scalar
// patterns in pack replace the ones in base.
func Merge(base Definition, packs ...Definition) Definition {
	out := base
	out.Signatures = append([]SignatureSpec(nil), base.Signatures...)
	out.CriticalPatterns = append([]PatternSpec(nil), base.CriticalPatterns...)
	out.ScriptPatterns = append([]PatternSpec(nil), base.ScriptPatterns...)
	out.ObfuscationIndicators = append([]string(nil), base.ObfuscationIndicators...)
	out.PopularPackages = append([]PopularSpec(nil), base.PopularPackages...)
	out.SuspiciousNameTokens = append([]string(nil), base.SuspiciousNameTokens...)
	out.SuspiciousOwnerTokens = append([]string(nil), base.SuspiciousOwnerTokens...)
	out.TrustedOwners = append([]string(nil), base.TrustedOwners...)
	out.KnownMalicious = append([]MaliciousSpec(nil), base.KnownMalicious...)
	out.PermissionFlags = append([]string(nil), base.PermissionFlags...)
	out.Lockfiles = append([]string(nil), base.Lockfiles...)

	out.VulnerabilityClasses = make([]ClassSpec, 0, len(base.VulnerabilityClasses))
	for _, c := range base.VulnerabilityClasses {
		out.VulnerabilityClasses = append(out.VulnerabilityClasses, ClassSpec{
			Name:     c.Name,
			Patterns: append([]PatternSpec(nil), c.Patterns...),
		})
	}

	for _, p := range packs {
		out.Signatures = append(out.Signatures, p.Signatures...)
		out.CriticalPatterns = append(out.CriticalPatterns, p.CriticalPatterns...)
		out.ScriptPatterns = append(out.ScriptPatterns, p.ScriptPatterns...)
		out.ObfuscationIndicators = append(out.ObfuscationIndicators, p.ObfuscationIndicators...)
		out.PopularPackages = append(out.PopularPackages, p.PopularPackages...)
		out.SuspiciousNameTokens = append(out.SuspiciousNameTokens, p.SuspiciousNameTokens...)
		out.SuspiciousOwnerTokens = append(out.SuspiciousOwnerTokens, p.SuspiciousOwnerTokens...)
		out.TrustedOwners = append(out.TrustedOwners, p.TrustedOwners...)
		out.KnownMalicious = append(out.KnownMalicious, p.KnownMalicious...)
		out.PermissionFlags = append(out.PermissionFlags, p.PermissionFlags...)
		out.Lockfiles = append(out.Lockfiles, p.Lockfiles...)

		for _, c := range p.VulnerabilityClasses {
			merged := false
			for i := range out.VulnerabilityClasses {
				if out.VulnerabilityClasses[i].Name == c.Name {
					out.VulnerabilityClasses[i].Patterns = append(out.VulnerabilityClasses[i].Patterns, c.Patterns...)
					merged = true
					break
				}
			}
			if !merged {
				out.VulnerabilityClasses = append(out.VulnerabilityClasses, ClassSpec{
					Name:     c.Name,
					Patterns: append([]PatternSpec(nil), c.Patterns...),
				})
			}
		}

		if p.Base64Payload != "" {
			out.Base64Payload = p.Base64Payload
		}
		if p.NpmrcUnsafePerm != "" {
			out.NpmrcUnsafePerm = p.NpmrcUnsafePerm
		}
	}

	return out
}
