package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olehluchkiv/scopescan/internal/engine"
	"github.com/olehluchkiv/scopescan/internal/gotypes"
	"github.com/olehluchkiv/scopescan/internal/metrics"
	"github.com/olehluchkiv/scopescan/internal/report"
	"github.com/olehluchkiv/scopescan/internal/resolver"
	"github.com/olehluchkiv/scopescan/internal/scope"
	"github.com/olehluchkiv/scopescan/internal/universe"
)

// AnalysisConfig holds parameters for the analysis pipeline.
type AnalysisConfig struct {
	Input       string   // module directory, sub-package path or GitHub URL
	Snapshot    string   // YAML type snapshot; replaces Input when set
	CatalogFile string   // TOML or YAML scope catalog; empty uses the built-in one
	Scopes      []string // scope names to run; empty runs the whole catalog
	PublicOnly  bool
	Exclude     []string
	IncludeDeps bool
	Workers     int
}

// RunAnalysis executes the full catalog → universe → analyze → report
// pipeline. Scopes that fail to resolve are recorded in the report and do not
// fail the run. collector may be nil.
func RunAnalysis(ctx context.Context, cfg AnalysisConfig, collector *metrics.Collector, logger *slog.Logger) (*report.Report, error) {
	logger = logger.With("component", "analysis")
	start := time.Now()

	// Step 1: Load and select scopes.
	catalog, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	defs, err := catalog.Select(cfg.Scopes...)
	if err != nil {
		return nil, err
	}
	rc := catalog.Restrictions
	rc.PublicOnly = rc.PublicOnly || cfg.PublicOnly
	rc.Exclude = append(append([]string(nil), rc.Exclude...), cfg.Exclude...)
	policy := rc.Policy()

	// Step 2: Build the type universe.
	u, input, modPath, err := loadUniverse(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Step 3: Resolve every scope against the universe.
	rep := report.New(input, modPath)
	var (
		analyzers []*engine.Analyzer
		resolved  []*scope.Definition
	)
	for _, def := range defs {
		a, err := engine.New(def, u, policy, logger)
		if err != nil {
			logger.Warn("scope not resolved", "scope", def.Name(), "error", err)
			rep.AddFailure(def, err)
			if collector != nil {
				collector.RecordResolutionFailure(def.Name())
			}
			continue
		}
		analyzers = append(analyzers, a)
		resolved = append(resolved, def)
	}

	// Step 4: Visit every candidate type.
	opts := engine.Options{Workers: cfg.Workers}
	if collector != nil {
		opts.Recorder = collector
	}
	results, visited, err := engine.Run(ctx, u, analyzers, opts)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	for i, res := range results {
		rep.AddMatches(resolved[i], res.Entities)
	}
	rep.Finish(visited)
	if collector != nil {
		collector.RecordRun(visited, time.Since(start))
	}

	logger.Info("analysis complete",
		"run_id", rep.RunID,
		"scopes", len(rep.Scopes),
		"failed_scopes", len(rep.Failures()),
		"types_visited", visited,
		"entities", rep.EntityCount())
	return rep, nil
}

func loadCatalog(path string) (*scope.Catalog, error) {
	if path == "" {
		return scope.DefaultCatalog()
	}
	return scope.LoadCatalogFile(path)
}

// loadUniverse returns the universe to analyse, the input it came from and
// the module path when the input is a Go module.
func loadUniverse(ctx context.Context, cfg AnalysisConfig, logger *slog.Logger) (universe.Universe, string, string, error) {
	if cfg.Snapshot != "" {
		logger.Info("loading type snapshot", "path", cfg.Snapshot)
		m, err := universe.LoadSnapshot(cfg.Snapshot)
		if err != nil {
			return nil, "", "", err
		}
		return m, cfg.Snapshot, "", nil
	}

	logger.Info("resolving input", "input", cfg.Input)
	target, cleanup, err := resolver.Resolve(ctx, cfg.Input, logger)
	defer cleanup()
	if err != nil {
		return nil, "", "", fmt.Errorf("resolve: %w", err)
	}

	logger.Info("loading packages", "dir", target.Dir)
	u, err := gotypes.Load(ctx, target.Dir, gotypes.Options{IncludeDeps: cfg.IncludeDeps}, logger)
	if err != nil {
		return nil, "", "", fmt.Errorf("load: %w", err)
	}
	return u, cfg.Input, target.ModulePath, nil
}
