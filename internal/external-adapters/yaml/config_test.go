package yaml

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/pkgguard/internal/domain/entities"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgguard.yml")
	content := `log:
  level: debug
  format: json
report_dir: /var/lib/pkgguard/reports
scan:
  obfuscation_threshold: 4
  exclude_dirs: [vendor]
registry:
  timeout: 15s
skill:
  install_command: "clawhub install {ref} --dir {dir}"
install_allow: caution
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/var/lib/pkgguard/reports", cfg.ReportDir)
	assert.Equal(t, 4, cfg.Scan.ObfuscationThreshold)
	assert.Equal(t, []string{"vendor"}, cfg.Scan.ExcludeDirs)
	assert.Equal(t, int64(5<<20), cfg.Scan.MaxFileSize, "unset keys keep defaults")
	assert.Equal(t, 15*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, "https://registry.npmjs.org", cfg.Registry.URL)
	assert.Equal(t, entities.RecommendCaution, cfg.AllowedRecommendation())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err, "an explicit path must exist")

	t.Chdir(t.TempDir())
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Scan, cfg.Scan)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown key", content: "scan:\n  obfuscation: 3\n"},
		{name: "bad format", content: "log:\n  format: xml\n"},
		{name: "bad gate", content: "install_allow: maybe\n"},
		{name: "review gate", content: "install_allow: review\n"},
		{name: "block gate", content: "install_allow: BLOCK\n"},
		{name: "template without ref", content: "skill:\n  install_command: clawhub install\n"},
		{name: "negative threshold", content: "scan:\n  obfuscation_threshold: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnvOverrides(envMap(map[string]string{
		"PKGGUARD_LOG_LEVEL":             "warn",
		"PKGGUARD_NATS_URL":              "nats://127.0.0.1:4222",
		"PKGGUARD_OBFUSCATION_THRESHOLD": "5",
		"PKGGUARD_REGISTRY_TIMEOUT":      "3s",
		"PKGGUARD_SIGNATURE_PACKS":       "a.yml" + string(os.PathListSeparator) + " b.yml ",
	}))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, 5, cfg.Scan.ObfuscationThreshold)
	assert.Equal(t, 3*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, []string{"a.yml", "b.yml"}, cfg.SignaturePacks)
	assert.Equal(t, "text", cfg.Log.Format, "unset variables leave values alone")

	err = DefaultConfig().ApplyEnvOverrides(envMap(map[string]string{"PKGGUARD_OBFUSCATION_THRESHOLD": "many"}))
	assert.Error(t, err)
}
