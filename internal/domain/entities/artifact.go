// Package entities defines core domain models and data structures.
package entities

// SourceKind tells where a subject comes from
type SourceKind string

// Source kinds
const (
	SourceLocal    SourceKind = "local"
	SourceRegistry SourceKind = "npm"
	SourceSkill    SourceKind = "skill"
)

// PackageRef is a parsed subject identifier
type PackageRef struct {
	Raw     string
	Kind    SourceKind
	Name    string
	Version string
}

// String renders the reference the way a registry expects it
func (r PackageRef) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + "@" + r.Version
}

// ResolvedPackage is a subject materialized as a local directory tree
type ResolvedPackage struct {
	Subject Subject
	Root    string
	// Cleanup removes anything the resolver created; nil for local trees
	Cleanup func() error
}

// PackageManifest holds the fields of package.json the analyzers consume
type PackageManifest struct {
	Name         string
	Version      string
	Scripts      map[string]string
	Dependencies map[string]string
	// Raw keeps every top-level key for permission-flag lookups
	Raw map[string]interface{}
}

// ManifestAnalysis is the manifest analyzer output
type ManifestAnalysis struct {
	Findings []Finding
	Manifest *PackageManifest
}

// ContentScan is the file scanner output
type ContentScan struct {
	Findings     []Finding
	FilesScanned int
	FilesVisited int
}
