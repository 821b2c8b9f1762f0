// Package orchestrators coordinates the domain services and gateways into use cases.
package orchestrators

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ochairo/pkgguard/internal/domain/entities"
	"github.com/ochairo/pkgguard/internal/domain/interfaces"
	"github.com/ochairo/pkgguard/internal/domain/interfaces/gateways"
	"github.com/ochairo/pkgguard/internal/domain/interfaces/services"
)

// ResolveFailureMessage is the finding reported when a subject cannot be materialized
const ResolveFailureMessage = "could not resolve package"

// ScanDependencies are the collaborators of one ScanOrchestrator
type ScanDependencies struct {
	Resolver   gateways.PackageResolver
	Names      services.NameAnalyzer
	Content    gateways.ContentScanner
	Manifest   gateways.ManifestAnalyzer
	Aggregator services.RiskAggregator
	Sinks      []gateways.ResultSink
}

// ScanOrchestrator runs the full scan workflow for one subject:
// resolve, name inspection, content scan, manifest analysis, aggregation.
// It never returns an error; every failure becomes a finding.
type ScanOrchestrator struct {
	deps   ScanDependencies
	logger interfaces.Logger
	now    func() time.Time
	newID  func() string
}

// NewScanOrchestrator creates a new scan orchestrator
func NewScanOrchestrator(deps ScanDependencies, logger interfaces.Logger) *ScanOrchestrator {
	return &ScanOrchestrator{
		deps:   deps,
		logger: interfaces.OrNoOp(logger),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Scan resolves identifier and returns its finalized result. Temporary
// trees created by the resolver are removed before Scan returns.
func (o *ScanOrchestrator) Scan(ctx context.Context, identifier string) *entities.ScanResult {
	start := o.now()
	id := o.newID()
	log := o.logger.With(interfaces.F("scan_id", id), interfaces.F("subject", identifier))

	resolved, err := o.deps.Resolver.Resolve(ctx, identifier)
	if err != nil {
		log.Warn("package resolution failed", interfaces.Err(err))
		result := o.unresolved(id, identifier, err, start)
		o.publish(ctx, log, result)
		return result
	}
	if resolved.Cleanup != nil {
		defer func() {
			if cerr := resolved.Cleanup(); cerr != nil {
				log.Warn("failed to clean up resolved package", interfaces.F("root", resolved.Root), interfaces.Err(cerr))
			}
		}()
	}

	var findings []entities.Finding
	filesScanned := 0

	// Step 1: Name inspection
	findings = append(findings, o.guard(log, "name analysis", func() ([]entities.Finding, error) {
		return o.deps.Names.InspectSubject(resolved.Subject), nil
	})...)

	// Step 2: Content scan
	findings = append(findings, o.guard(log, "content scan", func() ([]entities.Finding, error) {
		scan, err := o.deps.Content.ScanFiles(ctx, resolved.Root)
		if err != nil {
			return nil, err
		}
		filesScanned = scan.FilesScanned
		return scan.Findings, nil
	})...)

	// Step 3: Manifest and permissions
	findings = append(findings, o.guard(log, "manifest analysis", func() ([]entities.Finding, error) {
		analysis, err := o.deps.Manifest.AnalyzeManifest(ctx, resolved.Root)
		if err != nil {
			return nil, err
		}
		return analysis.Findings, nil
	})...)

	assessment := o.deps.Aggregator.Aggregate(findings, filesScanned)
	result := entities.NewScanResult(id, resolved.Subject, findings, filesScanned, assessment, start)
	result.Duration = o.now().Sub(start)

	log.Info("scan complete",
		interfaces.F("risk", result.OverallRisk.String()),
		interfaces.F("recommendation", string(result.Recommendation)),
		interfaces.F("score", result.RiskScore),
		interfaces.F("findings", len(result.Findings)),
		interfaces.F("files", filesScanned))

	o.publish(ctx, log, result)
	return result
}

// unresolved builds the fixed REVIEW result for a subject that could not be materialized
func (o *ScanOrchestrator) unresolved(id, identifier string, cause error, start time.Time) *entities.ScanResult {
	f := entities.NewFinding(entities.CategoryManifest, entities.SeverityHigh, ResolveFailureMessage, identifier)
	f.Location.Snippet = entities.TruncateSnippet(cause.Error())
	findings := []entities.Finding{f}

	subject := entities.Subject{Name: identifier, Path: identifier, Source: "unresolved"}

	// One HIGH finding over zero files scores 50, which maps to REVIEW
	assessment := o.deps.Aggregator.Aggregate(findings, 0)
	result := entities.NewScanResult(id, subject, findings, 0, assessment, start)
	result.Duration = o.now().Sub(start)
	return result
}

// guard runs one analysis step, converting errors and panics into an INFO finding
func (o *ScanOrchestrator) guard(log interfaces.Logger, step string, fn func() ([]entities.Finding, error)) (findings []entities.Finding) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("analysis step panicked",
				interfaces.F("step", step),
				interfaces.F("panic", fmt.Sprint(r)),
				interfaces.F("stack", string(debug.Stack())))
			findings = []entities.Finding{degraded(step, fmt.Errorf("panic: %v", r))}
		}
	}()

	out, err := fn()
	if err != nil {
		log.Warn("analysis step failed", interfaces.F("step", step), interfaces.Err(err))
		return []entities.Finding{degraded(step, err)}
	}
	return out
}

func degraded(step string, err error) entities.Finding {
	return entities.NewFinding(entities.CategoryManifest, entities.SeverityInfo,
		fmt.Sprintf("%s degraded: %v", step, err), "analysis")
}

func (o *ScanOrchestrator) publish(ctx context.Context, log interfaces.Logger, result *entities.ScanResult) {
	for _, sink := range o.deps.Sinks {
		if err := sink.Publish(ctx, result); err != nil {
			log.Warn("failed to publish scan result", interfaces.F("sink", sink.Name()), interfaces.Err(err))
		}
	}
}

// ScanAll scans every identifier with at most parallel concurrent scans.
// Results keep the order of identifiers.
func (o *ScanOrchestrator) ScanAll(ctx context.Context, identifiers []string, parallel int) []*entities.ScanResult {
	results := make([]*entities.ScanResult, len(identifiers))
	if parallel <= 0 {
		parallel = 1
	}

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, identifier := range identifiers {
		g.Go(func() error {
			results[i] = o.Scan(ctx, identifier)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Summary counts batch results by recommendation
type Summary struct {
	Total            int
	ByRecommendation map[entities.Recommendation]int
	Failed           []string
}

// Summarize evaluates results against the install gate allow
func Summarize(results []*entities.ScanResult, allow entities.Recommendation) Summary {
	s := Summary{
		Total:            len(results),
		ByRecommendation: make(map[entities.Recommendation]int),
	}
	for _, r := range results {
		s.ByRecommendation[r.Recommendation]++
		if !r.Recommendation.AtMost(allow) {
			s.Failed = append(s.Failed, r.Subject.Name)
		}
	}
	return s
}

// Passed reports whether every result cleared the install gate
func (s Summary) Passed() bool {
	return len(s.Failed) == 0
}

// String renders the one-line batch summary
func (s Summary) String() string {
	return fmt.Sprintf("%d scanned: %d INSTALL, %d CAUTION, %d REVIEW, %d BLOCK",
		s.Total,
		s.ByRecommendation[entities.RecommendInstall],
		s.ByRecommendation[entities.RecommendCaution],
		s.ByRecommendation[entities.RecommendReview],
		s.ByRecommendation[entities.RecommendBlock])
}
