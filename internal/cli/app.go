package cli

import (
	"context"
	"fmt"

	"applysharp/internal/ai"
	"applysharp/internal/config"
	"applysharp/internal/errors"
	"applysharp/internal/extract"
	"applysharp/internal/generate"
	"applysharp/internal/intel"
	"applysharp/internal/intersect"
	"applysharp/internal/lexicon"
	"applysharp/internal/observability"
	"applysharp/internal/pipeline"
	"applysharp/internal/search"
	"applysharp/internal/session"
)

// app is the fully wired pipeline and everything that must be closed
// with it.
type app struct {
	Pipeline  *pipeline.Service
	Sessions  *session.Store
	AI        *ai.Service
	Extractor *extract.PDFExtractor
	Lexicon   *lexicon.Store

	cache   *search.Cache
	om      *observability.ObservabilityManager
	closers []func()
}

// buildApp wires search, intelligence, detection, sessions and generation.
func buildApp(ctx context.Context, cfg *config.Config, logger *errors.Logger) (*app, error) {
	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	metrics := om.GetMetrics()

	a := &app{om: om}

	var searcher search.Searcher = search.NewTavilyClient(cfg.Search, logger)
	if cfg.Search.Cache.Enabled {
		a.cache = search.NewCache(cfg.Search.Cache, logger)
		searcher = search.NewCachedSearcher(searcher, a.cache)
	}

	lex, err := lexicon.NewStore(cfg.Detect.LexiconFile, logger)
	if err != nil {
		a.Close()
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to load lexicon", err)
	}
	a.Lexicon = lex
	if cfg.Detect.WatchLexicon {
		if err := lex.Watch(); err != nil {
			logger.Warn("Lexicon hot reload disabled", "error", err)
		} else {
			a.closers = append(a.closers, func() { _ = lex.Stop() })
		}
	}

	a.Sessions = session.NewStore(cfg.Session, logger, session.WithMetrics(metrics))
	a.Sessions.StartSweeper(ctx, cfg.Session.SweepInterval)
	a.closers = append(a.closers, a.Sessions.Stop)

	aiService, err := ai.NewService(cfg, metrics, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.AI = aiService
	a.closers = append(a.closers, func() { _ = aiService.Close() })

	a.Extractor = extract.NewPDFExtractor(cfg.App.MaxFileSize, cfg.App.MinExtractedChars, logger)

	a.Pipeline = pipeline.New(pipeline.Deps{
		Extractor:   a.Extractor,
		Gatherer:    intel.NewGatherer(searcher, cfg.Search, cfg.Intel, metrics, logger),
		Intersector: intersect.NewEngine(cfg.Intel),
		Lexicon:     lex,
		Sessions:    a.Sessions,
		Generator:   generate.NewEngine(a.Sessions, aiService, lex, metrics, logger,
			generate.WithBudget(cfg.AI.GenerationBudget)),
	}, cfg, metrics, logger)

	return a, nil
}

// Observability returns the manager the app reports through
func (a *app) Observability() *observability.ObservabilityManager {
	return a.om
}

// Close releases background workers, the cache and telemetry exporters.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.om != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.om.Shutdown(ctx)
	}
}
