package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ochairo/pkgguard/internal/domain/entities"
	"github.com/ochairo/pkgguard/internal/domain/interfaces"
)

// ManifestFile is the manifest name looked up at a package root
const ManifestFile = "package.json"

const npmrcFile = ".npmrc"

// manifestSchema describes the package.json fields the analyzer relies on
const manifestSchema = `{
  "type": "object",
  "properties": {
    "name":    {"type": "string"},
    "version": {"type": "string"},
    "scripts": {"type": "object", "additionalProperties": {"type": "string"}},
    "dependencies":         {"type": "object", "additionalProperties": {"type": "string"}},
    "optionalDependencies": {"type": "object", "additionalProperties": {"type": "string"}},
    "config":  {"type": "object"}
  }
}`

// manifestAnalyzer implements ManifestAnalyzer for npm-style packages
type manifestAnalyzer struct {
	db     *entities.SignatureDatabase
	schema *gojsonschema.Schema
	logger interfaces.Logger
}

// NewManifestAnalyzer creates the manifest and permission analyzer
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewManifestAnalyzer(db *entities.SignatureDatabase, logger interfaces.Logger) (*manifestAnalyzer, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(manifestSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile manifest schema: %w", err)
	}
	return &manifestAnalyzer{db: db, schema: schema, logger: interfaces.OrNoOp(logger)}, nil
}

// AnalyzeManifest checks install scripts, permission flags, .npmrc,
// lockfile presence and declared dependencies. A missing or malformed
// manifest yields a single INFO finding and stops the analysis.
func (a *manifestAnalyzer) AnalyzeManifest(_ context.Context, root string) (*entities.ManifestAnalysis, error) {
	out := &entities.ManifestAnalysis{}
	manifestPath := filepath.Join(root, ManifestFile)

	//nolint:gosec // G304: Manifest path is built from the package root under inspection
	data, err := os.ReadFile(manifestPath)
	if errors.Is(err, fs.ErrNotExist) {
		out.Findings = append(out.Findings, entities.NewFinding(entities.CategoryManifest, entities.SeverityInfo,
			"no manifest found", ManifestFile))
		return out, nil
	}
	if err != nil {
		out.Findings = append(out.Findings, entities.NewFinding(entities.CategoryManifest, entities.SeverityInfo,
			fmt.Sprintf("manifest unreadable: %v", err), ManifestFile))
		return out, nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		out.Findings = append(out.Findings, entities.NewFinding(entities.CategoryManifest, entities.SeverityInfo,
			fmt.Sprintf("manifest parse error: %v", err), ManifestFile))
		return out, nil
	}

	out.Findings = append(out.Findings, a.validate(raw)...)

	manifest := extractManifest(raw)
	out.Manifest = manifest

	out.Findings = append(out.Findings, a.checkScripts(manifest.Scripts)...)
	out.Findings = append(out.Findings, a.checkPermissionFlags(raw)...)
	out.Findings = append(out.Findings, a.checkNpmrc(root)...)
	out.Findings = append(out.Findings, a.checkLockfile(root)...)
	out.Findings = append(out.Findings, a.checkDependencies(manifest.Dependencies)...)

	return out, nil
}

func (a *manifestAnalyzer) validate(raw map[string]interface{}) []entities.Finding {
	result, err := a.schema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		a.logger.Warn("manifest schema validation failed", interfaces.Err(err))
		return nil
	}

	var findings []entities.Finding
	for _, e := range result.Errors() {
		findings = append(findings, entities.NewFinding(entities.CategoryManifest, entities.SeverityInfo,
			fmt.Sprintf("manifest field %s: %s", e.Field(), e.Description()), ManifestFile))
	}
	return findings
}

func (a *manifestAnalyzer) checkScripts(scripts map[string]string) []entities.Finding {
	var findings []entities.Finding

	for _, name := range sortedKeys(scripts) {
		script := scripts[name]
		loc := entities.Location{
			Path:    "manifest scripts." + name,
			Snippet: entities.TruncateSnippet(script),
		}

		for _, p := range a.db.CriticalPatterns {
			if p.Expr.MatchString(script) {
				findings = append(findings, entities.Finding{
					Category: entities.CategoryCriticalPattern,
					Severity: p.Severity,
					Message:  fmt.Sprintf("Script '%s': %s", name, p.Message),
					Location: loc,
				})
			}
		}
		for _, p := range a.db.ScriptPatterns {
			if p.Expr.MatchString(script) {
				findings = append(findings, entities.Finding{
					Category: entities.CategorySignature,
					Severity: p.Severity,
					Message:  fmt.Sprintf("Script '%s': %s", name, p.Message),
					Location: loc,
				})
			}
		}
	}
	return findings
}

func (a *manifestAnalyzer) checkPermissionFlags(raw map[string]interface{}) []entities.Finding {
	var findings []entities.Finding
	config, _ := raw["config"].(map[string]interface{})

	for _, flag := range a.db.PermissionFlags {
		if truthy(raw[flag]) {
			findings = append(findings, entities.NewFinding(entities.CategoryPermission, entities.SeverityHigh,
				fmt.Sprintf("High-risk flag enabled: %s", flag), "manifest "+flag))
		}
		if config != nil && truthy(config[flag]) {
			findings = append(findings, entities.NewFinding(entities.CategoryPermission, entities.SeverityHigh,
				fmt.Sprintf("High-risk flag enabled in config: %s", flag), "manifest config."+flag))
		}
	}
	return findings
}

func (a *manifestAnalyzer) checkNpmrc(root string) []entities.Finding {
	if a.db.NpmrcUnsafePerm == nil {
		return nil
	}
	//nolint:gosec // G304: .npmrc path is built from the package root under inspection
	data, err := os.ReadFile(filepath.Join(root, npmrcFile))
	if err != nil {
		return nil
	}
	if !a.db.NpmrcUnsafePerm.Match(data) {
		return nil
	}
	return []entities.Finding{entities.NewFinding(entities.CategoryPermission, entities.SeverityHigh,
		"unsafe-perm enabled in .npmrc", npmrcFile)}
}

func (a *manifestAnalyzer) checkLockfile(root string) []entities.Finding {
	for _, name := range a.db.Lockfiles {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			return nil
		}
	}
	return []entities.Finding{entities.NewFinding(entities.CategoryManifest, entities.SeverityLow,
		"no lockfile found", "package root")}
}

func (a *manifestAnalyzer) checkDependencies(deps map[string]string) []entities.Finding {
	var findings []entities.Finding
	for _, name := range sortedKeys(deps) {
		if km, ok := a.db.IsKnownMalicious(strings.ToLower(name)); ok {
			findings = append(findings, entities.NewFinding(entities.CategoryManifest, entities.SeverityHigh,
				fmt.Sprintf("Depends on known malicious package %s: %s", name, km.Description),
				"manifest dependencies."+name))
		}
	}
	return findings
}

// ReadManifestIdentity returns the declared name and version of the manifest at root, if any
func ReadManifestIdentity(root string) (name, version string, ok bool) {
	//nolint:gosec // G304: Manifest path is built from a package root chosen by the caller
	data, err := os.ReadFile(filepath.Join(root, ManifestFile))
	if err != nil {
		return "", "", false
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", "", false
	}
	m := extractManifest(raw)
	return m.Name, m.Version, m.Name != ""
}

func extractManifest(raw map[string]interface{}) *entities.PackageManifest {
	m := &entities.PackageManifest{
		Scripts:      stringMap(raw["scripts"]),
		Dependencies: stringMap(raw["dependencies"]),
		Raw:          raw,
	}
	m.Name, _ = raw["name"].(string)
	m.Version, _ = raw["version"].(string)
	for k, v := range stringMap(raw["optionalDependencies"]) {
		m.Dependencies[k] = v
	}
	return m
}

// stringMap keeps the string-valued entries of a JSON object
func stringMap(v interface{}) map[string]string {
	out := make(map[string]string)
	obj, ok := v.(map[string]interface{})
	if !ok {
		return out
	}
	for k, val := range obj {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	default:
		return false
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
