package app

import (
	"context"
	"fmt"
	"log/slog"

	"PerspectiveEngine/internal/config"
	"PerspectiveEngine/internal/domain"
	"PerspectiveEngine/internal/infrastructure/llm"
	"PerspectiveEngine/internal/infrastructure/storage"
	"PerspectiveEngine/internal/logging"
	"PerspectiveEngine/internal/ports"
	"PerspectiveEngine/internal/scoring"
	"PerspectiveEngine/internal/usecase"
)

// Application wires configs to use cases.
type Application struct {
	cfg     config.Config
	store   *storage.SQLStore
	matcher *usecase.Matcher
	feed    *usecase.FeedBuilder
	logger  *slog.Logger
}

// New opens the database and builds the analysis client from cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	client := llm.NewClient(cfg.Analysis, baseLogger.With("component", "analysis"))
	analyzer := llm.NewCachedAnalyzer(client, cfg.Analysis.CacheSize, cfg.Analysis.CacheTTL)

	application, err := NewWithDeps(cfg, store, analyzer, baseLogger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return application, nil
}

// NewWithDeps builds the application over an already opened store and analyzer.
func NewWithDeps(cfg config.Config, store *storage.SQLStore, analyzer ports.TextAnalyzer, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.Discard()
	}

	strategy, err := scoring.DefaultRegistry(cfg.Matching.MaxConcurrency).Resolve(cfg.Matching.Strategy)
	if err != nil {
		return nil, fmt.Errorf("resolve scoring strategy: %w", err)
	}

	matcher := usecase.NewMatcher(usecase.MatcherDeps{
		Articles:        store,
		Sources:         store,
		Cache:           store,
		Analyzer:        analyzer,
		Strategy:        strategy,
		AnalysisTimeout: cfg.Analysis.Timeout,
		StoreTimeout:    cfg.Matching.StoreTimeout,
		Logger:          baseLogger.With("component", "matcher"),
	})

	feed := usecase.NewFeedBuilder(usecase.FeedBuilderDeps{
		Articles:     store,
		Sources:      store,
		DefaultLimit: cfg.Feed.DefaultLimit,
		StoreTimeout: cfg.Matching.StoreTimeout,
		Logger:       baseLogger.With("component", "feed"),
	})

	return &Application{
		cfg:     cfg,
		store:   store,
		matcher: matcher,
		feed:    feed,
		logger:  baseLogger,
	}, nil
}

// Migrate creates the database schema.
func (a *Application) Migrate(ctx context.Context) error {
	return a.store.Migrate(ctx)
}

// FindPerspectives resolves the country code and runs the matcher with configured options.
func (a *Application) FindPerspectives(ctx context.Context, articleID, countryCode string, opts usecase.Options) (domain.PerspectivesResult, error) {
	country, err := domain.ParseCountry(countryCode)
	if err != nil {
		return domain.PerspectivesResult{}, err
	}
	return a.matcher.FindPerspectives(ctx, articleID, country, opts)
}

// BalancedFeed resolves the country code and builds the feed.
func (a *Application) BalancedFeed(ctx context.Context, countryCode string, limit, page int) (domain.BalancedFeed, error) {
	country, err := domain.ParseCountry(countryCode)
	if err != nil {
		return domain.BalancedFeed{}, err
	}
	return a.feed.GetBalancedFeed(ctx, country, limit, page)
}

// MatchOptions returns the matcher options derived from configuration.
func (a *Application) MatchOptions() usecase.Options {
	return usecase.OptionsFromConfig(a.cfg.Matching)
}

// Close releases the database.
func (a *Application) Close() error {
	return a.store.Close()
}
