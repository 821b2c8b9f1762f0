package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ochairo/pkgguard/internal/domain/entities"
)

// DefaultConfigFile is read when no --config flag is given and the file exists
const DefaultConfigFile = "pkgguard.yml"

// Config is the pkgguard configuration file
type Config struct {
	Log            LogConfig      `yaml:"log"`
	ReportDir      string         `yaml:"report_dir"`
	HistoryDB      string         `yaml:"history_db"`
	MetricsFile    string         `yaml:"metrics_file"`
	NATS           NATSConfig     `yaml:"nats"`
	Scan           ScanConfig     `yaml:"scan"`
	Registry       RegistryConfig `yaml:"registry"`
	Skill          SkillConfig    `yaml:"skill"`
	SignaturePacks []string       `yaml:"signature_packs"`
	// InstallAllow is the most restrictive recommendation that still passes the gate
	InstallAllow string `yaml:"install_allow"`
}

// LogConfig controls the structured logger and the scan log files
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

// NATSConfig enables publishing results when URL is set
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ScanConfig tunes the content scanner and batch scans
type ScanConfig struct {
	ObfuscationThreshold int      `yaml:"obfuscation_threshold"`
	MaxFileSize          int64    `yaml:"max_file_size"`
	ExcludeDirs          []string `yaml:"exclude_dirs"`
	Extensions           []string `yaml:"extensions"`
	Workers              int      `yaml:"workers"`
	Parallel             int      `yaml:"parallel"`
	NameCacheSize        int      `yaml:"name_cache_size"`
}

// RegistryConfig configures the npm registry fetcher
type RegistryConfig struct {
	URL              string        `yaml:"url"`
	Timeout          time.Duration `yaml:"timeout"`
	KeyringFile      string        `yaml:"keyring_file"`
	RequireSignature bool          `yaml:"require_signature"`
}

// SkillConfig configures the command fetcher for skill references
type SkillConfig struct {
	InstallCommand string        `yaml:"install_command"`
	Timeout        time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		NATS: NATSConfig{Subject: "pkgguard.scans"},
		Scan: ScanConfig{
			ObfuscationThreshold: 2,
			MaxFileSize:          5 << 20,
			Parallel:             4,
			NameCacheSize:        1024,
		},
		Registry: RegistryConfig{
			URL:     "https://registry.npmjs.org",
			Timeout: 60 * time.Second,
		},
		Skill: SkillConfig{
			Timeout: 120 * time.Second,
		},
		InstallAllow: string(entities.RecommendInstall),
	}
}

// LoadConfig reads path over the defaults, applies PKGGUARD_* environment
// overrides and validates the result. An empty path falls back to
// DefaultConfigFile, whose absence is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	//nolint:gosec // G304: config path is provided by the operator
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.parse(data); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := cfg.ApplyEnvOverrides(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) parse(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

// ApplyEnvOverrides overrides file values from PKGGUARD_* variables
func (c *Config) ApplyEnvOverrides(getenv func(string) string) error {
	str := map[string]*string{
		"PKGGUARD_LOG_LEVEL":        &c.Log.Level,
		"PKGGUARD_LOG_FORMAT":       &c.Log.Format,
		"PKGGUARD_LOG_DIR":          &c.Log.Dir,
		"PKGGUARD_REPORT_DIR":       &c.ReportDir,
		"PKGGUARD_HISTORY_DB":       &c.HistoryDB,
		"PKGGUARD_METRICS_FILE":     &c.MetricsFile,
		"PKGGUARD_NATS_URL":         &c.NATS.URL,
		"PKGGUARD_NATS_SUBJECT":     &c.NATS.Subject,
		"PKGGUARD_REGISTRY_URL":     &c.Registry.URL,
		"PKGGUARD_SKILL_COMMAND":    &c.Skill.InstallCommand,
		"PKGGUARD_INSTALL_ALLOW":    &c.InstallAllow,
		"PKGGUARD_REGISTRY_KEYRING": &c.Registry.KeyringFile,
	}
	for key, dst := range str {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if v := getenv("PKGGUARD_OBFUSCATION_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PKGGUARD_OBFUSCATION_THRESHOLD %q: %w", v, err)
		}
		c.Scan.ObfuscationThreshold = n
	}
	if v := getenv("PKGGUARD_REGISTRY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PKGGUARD_REGISTRY_TIMEOUT %q: %w", v, err)
		}
		c.Registry.Timeout = d
	}
	if v := getenv("PKGGUARD_SIGNATURE_PACKS"); v != "" {
		c.SignaturePacks = nil
		for _, p := range strings.Split(v, string(os.PathListSeparator)) {
			if p = strings.TrimSpace(p); p != "" {
				c.SignaturePacks = append(c.SignaturePacks, p)
			}
		}
	}
	return nil
}

// Validate rejects values the scanner cannot run with
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Scan.ObfuscationThreshold < 0 {
		errs = append(errs, fmt.Errorf("scan.obfuscation_threshold must not be negative"))
	}
	if c.Scan.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("scan.max_file_size must not be negative"))
	}
	if c.Scan.Parallel < 0 || c.Scan.Workers < 0 {
		errs = append(errs, fmt.Errorf("scan.parallel and scan.workers must not be negative"))
	}
	if gate, err := entities.ParseRecommendation(c.InstallAllow); err != nil {
		errs = append(errs, fmt.Errorf("install_allow: %w", err))
	} else if !gate.AtMost(entities.RecommendCaution) {
		errs = append(errs, fmt.Errorf("install_allow must be install or caution, got %q", c.InstallAllow))
	}
	if c.Skill.InstallCommand != "" && !strings.Contains(c.Skill.InstallCommand, "{ref}") {
		errs = append(errs, fmt.Errorf("skill.install_command must contain {ref}"))
	}
	return errors.Join(errs...)
}

// AllowedRecommendation returns the parsed install gate
func (c *Config) AllowedRecommendation() entities.Recommendation {
	r, err := entities.ParseRecommendation(c.InstallAllow)
	if err != nil {
		return entities.RecommendInstall
	}
	return r
}
