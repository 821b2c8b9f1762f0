package gateways

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/pkgguard/internal/domain/entities"
)

func sampleResult(name string, rec entities.Recommendation, risk entities.Severity) *entities.ScanResult {
	findings := []entities.Finding{
		entities.NewFinding(entities.CategoryVulnerability, entities.SeverityCritical, "Code injection via eval", "index.js"),
	}
	return entities.NewScanResult("0f8fad5b-d9cb-469f-a165-70867728950e",
		entities.Subject{Name: name, Path: "/tmp/" + name, Source: "local"},
		findings, 1,
		entities.Assessment{OverallRisk: risk, Recommendation: rec, RiskScore: 100,
			Breakdown: map[entities.Severity]int{entities.SeverityCritical: 1}},
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestReportSink_Publish(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	sink := NewReportSink(dir)
	result := sampleResult("demo", entities.RecommendBlock, entities.SeverityCritical)

	require.NoError(t, sink.Publish(context.Background(), result))

	path := sink.PathFor(result)
	assert.Equal(t, "scan_20260301T120000Z_0f8fad5b.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "BLOCK", decoded["recommendation"])
	assert.Equal(t, "CRITICAL", decoded["overallRisk"])
	assert.Equal(t, float64(1), decoded["filesScanned"])
}

func TestLogLineSink_Publish(t *testing.T) {
	dir := t.TempDir()
	sink := NewLogLineSink(dir)

	require.NoError(t, sink.Publish(context.Background(), sampleResult("bad", entities.RecommendBlock, entities.SeverityCritical)))
	require.NoError(t, sink.Publish(context.Background(), sampleResult("good", entities.RecommendInstall, entities.SeverityInfo)))

	scans, err := os.ReadFile(filepath.Join(dir, ScanLogFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(scans)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[2026-03-01T12:00:00Z] bad: CRITICAL - BLOCK", lines[0])
	assert.Equal(t, "[2026-03-01T12:00:00Z] good: INFO - INSTALL", lines[1])

	quarantine, err := os.ReadFile(filepath.Join(dir, QuarantineLogFile))
	require.NoError(t, err)
	assert.Equal(t, "[2026-03-01T12:00:00Z] bad: CRITICAL - BLOCK\n", string(quarantine))
}

func TestMetricsSink_Publish(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgguard.prom")
	sink := NewMetricsSink(path)

	require.NoError(t, sink.Publish(context.Background(), sampleResult("bad", entities.RecommendBlock, entities.SeverityCritical)))
	require.NoError(t, sink.Publish(context.Background(), sampleResult("bad", entities.RecommendBlock, entities.SeverityCritical)))

	assert.Equal(t, float64(2), testutil.ToFloat64(sink.scans.WithLabelValues("BLOCK")))
	assert.Equal(t, float64(2), testutil.ToFloat64(sink.findings.WithLabelValues("CRITICAL", "VULNERABILITY")))
	assert.Equal(t, float64(100), testutil.ToFloat64(sink.score.WithLabelValues("bad")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `pkgguard_scans_total{recommendation="BLOCK"} 2`)
}
