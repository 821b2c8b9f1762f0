// Package yaml loads configuration and signature packs from YAML files.
package yaml

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ochairo/pkgguard/internal/signatures"
)

// yamlPack represents the raw YAML structure of a signature pack
type yamlPack struct {
	Name                  string          `yaml:"name"`
	Description           string          `yaml:"description"`
	Signatures            []yamlSignature `yaml:"signatures"`
	CriticalPatterns      []yamlPattern   `yaml:"critical_patterns"`
	ScriptPatterns        []yamlPattern   `yaml:"script_patterns"`
	VulnerabilityClasses  []yamlClass     `yaml:"vulnerability_classes"`
	ObfuscationIndicators []string        `yaml:"obfuscation_indicators"`
	Base64Payload         string          `yaml:"base64_payload"`
	PopularPackages       []yamlPopular   `yaml:"popular_packages"`
	SuspiciousNameTokens  []string        `yaml:"suspicious_name_tokens"`
	SuspiciousOwnerTokens []string        `yaml:"suspicious_owner_tokens"`
	TrustedOwners         []string        `yaml:"trusted_owners"`
	KnownMalicious        []yamlMalicious `yaml:"known_malicious"`
	PermissionFlags       []string        `yaml:"permission_flags"`
	Lockfiles             []string        `yaml:"lockfiles"`
	NpmrcUnsafePerm       string          `yaml:"npmrc_unsafe_perm"`
}

type yamlSignature struct {
	Needle      string `yaml:"needle"`
	Description string `yaml:"description"`
	Severity    string `yaml:"severity"`
}

type yamlPattern struct {
	Pattern  string `yaml:"pattern"`
	Severity string `yaml:"severity"`
	CWE      string `yaml:"cwe"`
	Message  string `yaml:"message"`
}

type yamlClass struct {
	Name     string        `yaml:"name"`
	Patterns []yamlPattern `yaml:"patterns"`
}

type yamlPopular struct {
	Name string `yaml:"name"`
	Risk string `yaml:"risk"`
}

type yamlMalicious struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// SignaturePack is a named rule set layered on top of the built-in database
type SignaturePack struct {
	Name        string
	Description string
	Definition  signatures.Definition
}

// PackParser parses YAML signature packs
type PackParser struct{}

// NewPackParser creates a new YAML pack parser
func NewPackParser() *PackParser {
	return &PackParser{}
}

// ParseFile parses a YAML signature pack file
func (p *PackParser) ParseFile(filePath string) (*SignaturePack, error) {
	//nolint:gosec // G304: filePath is a signature pack path from configuration
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	pack, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return pack, nil
}

// Parse parses YAML bytes into a signature pack. Unknown keys are rejected
// so a misspelled section does not silently disable rules.
func (p *PackParser) Parse(data []byte) (*SignaturePack, error) {
	var raw yamlPack
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if raw.Name == "" {
		return nil, fmt.Errorf("signature pack must have a name")
	}

	return &SignaturePack{
		Name:        raw.Name,
		Description: raw.Description,
		Definition:  convertPack(raw),
	}, nil
}

func convertPack(raw yamlPack) signatures.Definition {
	def := signatures.Definition{
		CriticalPatterns:      convertPatterns(raw.CriticalPatterns),
		ScriptPatterns:        convertPatterns(raw.ScriptPatterns),
		ObfuscationIndicators: raw.ObfuscationIndicators,
		Base64Payload:         raw.Base64Payload,
		SuspiciousNameTokens:  raw.SuspiciousNameTokens,
		SuspiciousOwnerTokens: raw.SuspiciousOwnerTokens,
		TrustedOwners:         raw.TrustedOwners,
		PermissionFlags:       raw.PermissionFlags,
		Lockfiles:             raw.Lockfiles,
		NpmrcUnsafePerm:       raw.NpmrcUnsafePerm,
	}

	for _, s := range raw.Signatures {
		def.Signatures = append(def.Signatures, signatures.SignatureSpec{
			Needle:      s.Needle,
			Description: s.Description,
			Severity:    s.Severity,
		})
	}
	for _, c := range raw.VulnerabilityClasses {
		def.VulnerabilityClasses = append(def.VulnerabilityClasses, signatures.ClassSpec{
			Name:     c.Name,
			Patterns: convertPatterns(c.Patterns),
		})
	}
	for _, pp := range raw.PopularPackages {
		def.PopularPackages = append(def.PopularPackages, signatures.PopularSpec{Name: pp.Name, Risk: pp.Risk})
	}
	for _, m := range raw.KnownMalicious {
		def.KnownMalicious = append(def.KnownMalicious, signatures.MaliciousSpec{Name: m.Name, Description: m.Description})
	}
	return def
}

func convertPatterns(in []yamlPattern) []signatures.PatternSpec {
	if len(in) == 0 {
		return nil
	}
	out := make([]signatures.PatternSpec, 0, len(in))
	for _, p := range in {
		out = append(out, signatures.PatternSpec{
			Pattern:  p.Pattern,
			Severity: p.Severity,
			CWE:      p.CWE,
			Message:  p.Message,
		})
	}
	return out
}
