package signatures

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ochairo/pkgguard/internal/domain/entities"
)

var (
	highKeywords   = []string{"shell", "execution", "pipe"}
	mediumKeywords = []string{"access", "operation"}
)

// DeriveSeverity maps a signature description onto a severity when no
// explicit level is configured: shell/execution/pipe -> HIGH,
// access/operation -> MEDIUM, anything else -> LOW.
func DeriveSeverity(description string) entities.Severity {
	lower := strings.ToLower(description)
	for _, k := range highKeywords {
		if strings.Contains(lower, k) {
			return entities.SeverityHigh
		}
	}
	for _, k := range mediumKeywords {
		if strings.Contains(lower, k) {
			return entities.SeverityMedium
		}
	}
	return entities.SeverityLow
}

// Compile validates every entry of def and builds the immutable database.
// All problems are reported together so a broken pack can be fixed in one pass.
func Compile(def Definition) (*entities.SignatureDatabase, error) {
	var errs []error
	db := &entities.SignatureDatabase{
		KnownMalicious: make(map[string]entities.KnownMalicious, len(def.KnownMalicious)),
	}

	for i, s := range def.Signatures {
		if s.Needle == "" {
			errs = append(errs, fmt.Errorf("signature %d: empty needle", i))
			continue
		}
		sev := DeriveSeverity(s.Description)
		if s.Severity != "" {
			parsed, err := entities.ParseSeverity(s.Severity)
			if err != nil {
				errs = append(errs, fmt.Errorf("signature %q: %w", s.Needle, err))
				continue
			}
			sev = parsed
		}
		db.Signatures = append(db.Signatures, entities.Signature{
			Needle:      s.Needle,
			Description: s.Description,
			Severity:    sev,
		})
	}

	db.CriticalPatterns = compilePatterns("critical pattern", def.CriticalPatterns, &errs)
	db.ScriptPatterns = compilePatterns("script pattern", def.ScriptPatterns, &errs)

	seenClass := make(map[string]bool)
	for _, c := range def.VulnerabilityClasses {
		if c.Name == "" {
			errs = append(errs, errors.New("vulnerability class without a name"))
			continue
		}
		if seenClass[c.Name] {
			errs = append(errs, fmt.Errorf("vulnerability class %q defined twice", c.Name))
			continue
		}
		seenClass[c.Name] = true
		db.VulnerabilityClasses = append(db.VulnerabilityClasses, entities.VulnerabilityClass{
			Name:     c.Name,
			Patterns: compilePatterns(c.Name, c.Patterns, &errs),
		})
	}

	for _, expr := range def.ObfuscationIndicators {
		re, err := regexp.Compile(caseInsensitive(expr))
		if err != nil {
			errs = append(errs, fmt.Errorf("obfuscation indicator %q: %w", expr, err))
			continue
		}
		db.ObfuscationIndicators = append(db.ObfuscationIndicators, re)
	}

	if def.Base64Payload != "" {
		re, err := regexp.Compile(def.Base64Payload)
		if err != nil {
			errs = append(errs, fmt.Errorf("base64 payload pattern: %w", err))
		}
		db.Base64Payload = re
	}
	if def.NpmrcUnsafePerm != "" {
		re, err := regexp.Compile(def.NpmrcUnsafePerm)
		if err != nil {
			errs = append(errs, fmt.Errorf("npmrc unsafe-perm pattern: %w", err))
		}
		db.NpmrcUnsafePerm = re
	}

	seenPopular := make(map[string]bool)
	for _, p := range def.PopularPackages {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" || seenPopular[name] {
			continue
		}
		risk, err := entities.ParseSeverity(p.Risk)
		if err != nil {
			errs = append(errs, fmt.Errorf("popular package %q: %w", p.Name, err))
			continue
		}
		seenPopular[name] = true
		db.PopularPackages = append(db.PopularPackages, entities.PopularPackage{Name: name, Risk: risk})
	}

	for _, m := range def.KnownMalicious {
		name := strings.ToLower(strings.TrimSpace(m.Name))
		if name == "" {
			errs = append(errs, errors.New("known-malicious entry without a name"))
			continue
		}
		db.KnownMalicious[name] = entities.KnownMalicious{Name: name, Description: m.Description}
	}

	db.SuspiciousNameTokens = lowerUnique(def.SuspiciousNameTokens)
	db.SuspiciousOwnerTokens = lowerUnique(def.SuspiciousOwnerTokens)
	db.TrustedOwners = lowerUnique(def.TrustedOwners)
	db.PermissionFlags = unique(def.PermissionFlags)
	db.Lockfiles = unique(def.Lockfiles)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid signature database: %w", err)
	}
	return db, nil
}

// MustDefault compiles the built-in rule set; it panics only if the shipped tables are broken
func MustDefault() *entities.SignatureDatabase {
	db, err := Compile(Default())
	if err != nil {
		panic(err)
	}
	return db
}

func compilePatterns(group string, specs []PatternSpec, errs *[]error) []entities.Pattern {
	out := make([]entities.Pattern, 0, len(specs))
	for _, s := range specs {
		re, err := regexp.Compile(caseInsensitive(s.Pattern))
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s %q: %w", group, s.Pattern, err))
			continue
		}
		sev, err := entities.ParseSeverity(s.Severity)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s %q: %w", group, s.Pattern, err))
			continue
		}
		msg := s.Message
		if msg == "" {
			msg = s.Pattern
		}
		out = append(out, entities.Pattern{Expr: re, Severity: sev, WeaknessID: s.CWE, Message: msg})
	}
	return out
}

func caseInsensitive(expr string) string {
	if strings.HasPrefix(expr, "(?i)") {
		return expr
	}
	return "(?i)" + expr
}

func unique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func lowerUnique(values []string) []string {
	lowered := make([]string, len(values))
	for i, v := range values {
		lowered[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return unique(lowered)
}
