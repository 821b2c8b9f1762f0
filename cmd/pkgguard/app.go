package main

import (
	"context"
	"fmt"
	"io"

	"github.com/ochairo/pkgguard/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/pkgguard/internal/domain-orchestrators"
	"github.com/ochairo/pkgguard/internal/domain/entities"
	"github.com/ochairo/pkgguard/internal/domain/interfaces"
	ifgateways "github.com/ochairo/pkgguard/internal/domain/interfaces/gateways"
	"github.com/ochairo/pkgguard/internal/domain/services"
	"github.com/ochairo/pkgguard/internal/external-adapters/bolt"
	"github.com/ochairo/pkgguard/internal/external-adapters/gpg"
	"github.com/ochairo/pkgguard/internal/external-adapters/natsbus"
	"github.com/ochairo/pkgguard/internal/external-adapters/slogger"
	"github.com/ochairo/pkgguard/internal/external-adapters/yaml"
)

// app holds everything a scan needs, built once from the configuration
type app struct {
	cfg          *yaml.Config
	logger       interfaces.Logger
	db           *entities.SignatureDatabase
	orchestrator *orchestrators.ScanOrchestrator
	history      *bolt.HistoryStore
	closers      []func()
}

// newApp loads the signature database and wires the scan pipeline.
// Every error it returns is a configuration error.
func newApp(ctx context.Context, cfg *yaml.Config, logOut io.Writer) (*app, error) {
	logger := slogger.New(logOut, cfg.Log.Level, cfg.Log.Format)
	a := &app{cfg: cfg, logger: logger}

	db, err := yaml.NewSignatureRepository(cfg.SignaturePacks...).LoadDatabase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load signature database: %w", err)
	}
	a.db = db

	resolver, err := a.resolver()
	if err != nil {
		return nil, err
	}

	manifest, err := gateways.NewManifestAnalyzer(db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest analyzer: %w", err)
	}

	sinks, err := a.sinks()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.orchestrator = orchestrators.NewScanOrchestrator(orchestrators.ScanDependencies{
		Resolver:   resolver,
		Names:      services.NewNameAnalyzer(db, cfg.Scan.NameCacheSize),
		Content:    gateways.NewContentScanner(db, scanOptions(cfg), logger),
		Manifest:   manifest,
		Aggregator: services.NewRiskAggregator(),
		Sinks:      sinks,
	}, logger)

	return a, nil
}

func (a *app) resolver() (ifgateways.PackageResolver, error) {
	regOpts := gateways.RegistryOptions{
		BaseURL: a.cfg.Registry.URL,
		Timeout: a.cfg.Registry.Timeout,
	}
	if a.cfg.Registry.RequireSignature {
		if a.cfg.Registry.KeyringFile == "" {
			return nil, fmt.Errorf("registry.require_signature needs registry.keyring_file")
		}
		verifier := gpg.NewVerifier()
		if err := verifier.ImportKeyFromFile(a.cfg.Registry.KeyringFile); err != nil {
			return nil, fmt.Errorf("failed to load registry keyring: %w", err)
		}
		regOpts.Signatures = verifier
	}

	fetchers := []ifgateways.PackageFetcher{gateways.NewRegistryFetcher(regOpts, a.logger)}
	if a.cfg.Skill.InstallCommand != "" {
		skills, err := gateways.NewCommandFetcher(gateways.CommandOptions{
			Template: a.cfg.Skill.InstallCommand,
			Timeout:  a.cfg.Skill.Timeout,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("invalid skill install command: %w", err)
		}
		fetchers = append(fetchers, skills)
	}

	return gateways.NewCompositeResolver(a.logger, fetchers...), nil
}

func (a *app) sinks() ([]ifgateways.ResultSink, error) {
	var sinks []ifgateways.ResultSink
	if a.cfg.ReportDir != "" {
		sinks = append(sinks, gateways.NewReportSink(a.cfg.ReportDir))
	}
	if a.cfg.Log.Dir != "" {
		sinks = append(sinks, gateways.NewLogLineSink(a.cfg.Log.Dir))
	}
	if a.cfg.MetricsFile != "" {
		sinks = append(sinks, gateways.NewMetricsSink(a.cfg.MetricsFile))
	}
	if a.cfg.HistoryDB != "" {
		store, err := bolt.Open(a.cfg.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		a.history = store
		a.closers = append(a.closers, func() { _ = store.Close() })
		sinks = append(sinks, store)
	}
	if a.cfg.NATS.URL != "" {
		pub, err := natsbus.Connect(a.cfg.NATS.URL, a.cfg.NATS.Subject, a.logger)
		if err != nil {
			// The bus is optional
			a.logger.Warn("NATS unavailable, results will not be published", interfaces.Err(err))
		} else {
			a.closers = append(a.closers, pub.Close)
			sinks = append(sinks, pub)
		}
	}
	return sinks, nil
}

// Close releases the history store and the NATS connection
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// scanOptions overlays configured values on the stock walker settings
func scanOptions(cfg *yaml.Config) gateways.ScanOptions {
	opts := gateways.DefaultScanOptions()
	if len(cfg.Scan.ExcludeDirs) > 0 {
		opts.ExcludeDirs = cfg.Scan.ExcludeDirs
	}
	if len(cfg.Scan.Extensions) > 0 {
		opts.Extensions = cfg.Scan.Extensions
	}
	if cfg.Scan.MaxFileSize > 0 {
		opts.MaxFileSize = cfg.Scan.MaxFileSize
	}
	opts.ObfuscationThreshold = cfg.Scan.ObfuscationThreshold
	opts.Workers = cfg.Scan.Workers
	return opts
}
