package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"PerspectiveEngine/internal/config"
	"PerspectiveEngine/internal/domain"
	"PerspectiveEngine/internal/metrics"
	"PerspectiveEngine/internal/ports"
	"PerspectiveEngine/internal/scoring"
	"PerspectiveEngine/internal/similarity"
)

// Options tunes one FindPerspectives call.
type Options struct {
	TimeWindow        time.Duration
	EntityThreshold   float64
	CombinedThreshold float64
	MaxResults        int
	CandidateLimit    int
	TieBand           float64
}

// DefaultOptions returns the built-in matcher settings.
func DefaultOptions() Options {
	return Options{
		TimeWindow:        defaultTimeWindow,
		EntityThreshold:   0.25,
		CombinedThreshold: 0.65,
		MaxResults:        5,
		CandidateLimit:    defaultCandidateLimit,
		TieBand:           0.1,
	}
}

// OptionsFromConfig converts the matching section of the configuration.
func OptionsFromConfig(cfg config.MatchingConfig) Options {
	return Options{
		TimeWindow:        cfg.TimeWindow(),
		EntityThreshold:   cfg.EntityThreshold,
		CombinedThreshold: cfg.CombinedThreshold,
		MaxResults:        cfg.MaxResults,
		CandidateLimit:    cfg.CandidateLimit,
		TieBand:           cfg.TieBand,
	}.withDefaults()
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TimeWindow <= 0 {
		o.TimeWindow = d.TimeWindow
	}
	if o.EntityThreshold < 0 {
		o.EntityThreshold = d.EntityThreshold
	}
	if o.CombinedThreshold < 0 {
		o.CombinedThreshold = d.CombinedThreshold
	}
	if o.MaxResults <= 0 {
		o.MaxResults = d.MaxResults
	}
	if o.CandidateLimit <= 0 {
		o.CandidateLimit = d.CandidateLimit
	}
	if o.TieBand < 0 {
		o.TieBand = d.TieBand
	}
	return o
}

// MatcherDeps wires the driven adapters into the matcher.
type MatcherDeps struct {
	Articles        ports.ArticleStore
	Sources         ports.SourceRegistry
	Cache           ports.PerspectiveCache
	Analyzer        ports.TextAnalyzer
	Strategy        scoring.Strategy
	AnalysisTimeout time.Duration
	StoreTimeout    time.Duration
	Logger          *slog.Logger
}

// Matcher finds articles from other outlets that cover the same story.
type Matcher struct {
	articles     ports.ArticleStore
	sources      ports.SourceRegistry
	cache        ports.PerspectiveCache
	selector     *CandidateSelector
	extractor    *EntityExtractor
	semantic     *SemanticScorer
	strategy     scoring.Strategy
	storeTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewMatcher constructs the matcher. A nil strategy scores sequentially.
func NewMatcher(deps MatcherDeps) *Matcher {
	logger := orDiscard(deps.Logger)
	strategy := deps.Strategy
	if strategy == nil {
		strategy = scoring.Sequential{}
	}

	return &Matcher{
		articles:     deps.Articles,
		sources:      deps.Sources,
		cache:        deps.Cache,
		selector:     NewCandidateSelector(deps.Articles, deps.StoreTimeout),
		extractor:    NewEntityExtractor(deps.Analyzer, deps.AnalysisTimeout, logger),
		semantic:     NewSemanticScorer(deps.Analyzer, deps.AnalysisTimeout, logger),
		strategy:     strategy,
		storeTimeout: deps.StoreTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

// run carries the state of one FindPerspectives call.
type run struct {
	id            string
	logger        *slog.Logger
	opts          Options
	main          domain.Article
	mainSource    domain.PrimarySource
	hasMainSource bool
	mainAlignment domain.Alignment
	mainEntities  domain.ExtractedEntities

	embedOnce  sync.Once
	mainVector []float32
	mainVecOK  bool
}

// slot is the outcome of scoring the candidate at the same index.
type slot struct {
	scored *scoredCandidate
	err    error
}

// FindPerspectives returns up to opts.MaxResults articles from other outlets
// covering the same story as articleID. Only domain.ErrNotFound, *domain.StoreError
// and context errors are returned.
func (m *Matcher) FindPerspectives(ctx context.Context, articleID string, country domain.Country, opts Options) (domain.PerspectivesResult, error) {
	started := m.now()
	opts = opts.withDefaults()

	r := &run{id: uuid.NewString(), opts: opts}
	r.logger = m.logger.With("run_id", r.id, "article_id", articleID, "country", string(country))

	main, found, err := m.articleByID(ctx, country, articleID)
	if err != nil {
		return domain.PerspectivesResult{}, fmt.Errorf("load main article: %w", err)
	}
	if !found {
		return domain.PerspectivesResult{}, fmt.Errorf("article %s: %w", articleID, domain.ErrNotFound)
	}
	main.Country = country
	r.main = main

	r.mainSource, r.hasMainSource, err = m.primarySource(ctx, country, main.ID)
	if err != nil {
		return domain.PerspectivesResult{}, fmt.Errorf("load main source: %w", err)
	}
	r.mainAlignment, err = m.alignment(ctx, r.mainSource, r.hasMainSource)
	if err != nil {
		return domain.PerspectivesResult{}, fmt.Errorf("load main alignment: %w", err)
	}

	result := domain.PerspectivesResult{
		MainArticle: domain.MainArticleView{
			ID:             main.ID,
			Title:          main.Title,
			Summary:        main.Summary,
			SourceName:     r.mainSource.SourceName,
			AlignmentScore: r.mainAlignment.Score,
			AlignmentLabel: r.mainAlignment.Label,
		},
		RelatedPerspectives: []domain.RelatedPerspective{},
	}

	related, hit, err := m.fromCache(ctx, r)
	if err != nil {
		return domain.PerspectivesResult{}, err
	}
	if hit {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		metrics.FindDuration.WithLabelValues("cache").Observe(m.now().Sub(started).Seconds())
		r.logger.Info("perspectives served from cache", "related", len(related))
		result.RelatedPerspectives = related
		result.FromCache = true
		return result, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	related, err = m.compute(ctx, r)
	if err != nil {
		return domain.PerspectivesResult{}, err
	}

	metrics.FindDuration.WithLabelValues("computed").Observe(m.now().Sub(started).Seconds())
	r.logger.Info("perspectives computed", "related", len(related), "duration", m.now().Sub(started))
	result.RelatedPerspectives = related
	return result, nil
}

// fromCache rebuilds the result from stored matches joined with live article and
// source data. hit is false when no stored row is still displayable.
func (m *Matcher) fromCache(ctx context.Context, r *run) ([]domain.RelatedPerspective, bool, error) {
	callCtx, cancel := withTimeout(ctx, m.storeTimeout)
	rows, err := m.cache.CachedMatches(callCtx, r.main.Country, r.main.ID, r.opts.MaxResults)
	cancel()
	if err != nil {
		return nil, false, fmt.Errorf("load cached matches: %w", err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	related := make([]domain.RelatedPerspective, 0, len(rows))
	for _, row := range rows {
		article, found, err := m.articleByID(ctx, r.main.Country, row.RelatedArticleID)
		if err != nil {
			return nil, false, fmt.Errorf("load cached related article: %w", err)
		}
		if !found || article.IsFiltered {
			r.logger.Debug("skipping stale cache row", "related_id", row.RelatedArticleID, "found", found)
			continue
		}

		src, hasSrc, err := m.primarySource(ctx, r.main.Country, article.ID)
		if err != nil {
			return nil, false, fmt.Errorf("load cached related source: %w", err)
		}
		alignment, err := m.alignment(ctx, src, hasSrc)
		if err != nil {
			return nil, false, fmt.Errorf("load cached related alignment: %w", err)
		}

		related = append(related, perspectiveOf(article, src, alignment, row.SimilarityScore, row.MatchedEntities))
	}

	return related, len(related) > 0, nil
}

// compute scores fresh candidates, ranks them and stores the winners.
func (m *Matcher) compute(ctx context.Context, r *run) ([]domain.RelatedPerspective, error) {
	candidates, err := m.selector.SelectCandidates(ctx, r.main, r.opts.TimeWindow, r.opts.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	if len(candidates) == 0 {
		r.logger.Debug("no candidates in window")
		return []domain.RelatedPerspective{}, nil
	}

	r.mainEntities = m.extractor.Extract(ctx, r.main.AnalysisText())

	slots := make([]slot, len(candidates))
	runErr := m.strategy.Run(ctx, len(candidates), func(ctx context.Context, i int) {
		slots[i] = m.scoreCandidate(ctx, r, i, candidates[i])
	})
	if runErr != nil {
		return nil, runErr
	}

	matched := make([]scoredCandidate, 0, len(candidates))
	for _, s := range slots {
		if s.err != nil {
			return nil, s.err
		}
		if s.scored != nil {
			matched = append(matched, *s.scored)
		}
	}

	for i := range matched {
		alignment, err := m.alignment(ctx, matched[i].source, matched[i].source.SourceName != "")
		if err != nil {
			return nil, fmt.Errorf("load candidate alignment: %w", err)
		}
		matched[i].alignment = alignment
	}

	ranked := rankCandidates(matched, r.mainAlignment.Score, r.opts.TieBand)
	if len(ranked) > r.opts.MaxResults {
		ranked = ranked[:r.opts.MaxResults]
	}

	createdAt := m.now().UTC()
	related := make([]domain.RelatedPerspective, 0, len(ranked))
	for rank, c := range ranked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.persist(ctx, r, c, rank, createdAt); err != nil {
			return nil, err
		}
		related = append(related, perspectiveOf(c.article, c.source, c.alignment, c.combined, c.common))
	}

	return related, nil
}

func (m *Matcher) scoreCandidate(ctx context.Context, r *run, i int, candidate domain.Article) slot {
	log := r.logger.With("candidate_id", candidate.ID, "position", i)

	src, hasSrc, err := m.primarySource(ctx, r.main.Country, candidate.ID)
	if err != nil {
		return slot{err: fmt.Errorf("load candidate source: %w", err)}
	}
	if r.hasMainSource && hasSrc && strings.EqualFold(src.SourceName, r.mainSource.SourceName) {
		metrics.CandidateOutcomes.WithLabelValues(metrics.OutcomeSameSource).Inc()
		log.Debug("candidate skipped", "reason", metrics.OutcomeSameSource)
		return slot{}
	}

	entities := m.extractor.Extract(ctx, candidate.AnalysisText())
	overlap := similarity.EntityOverlap(r.mainEntities, entities)
	if overlap < r.opts.EntityThreshold {
		metrics.CandidateOutcomes.WithLabelValues(metrics.OutcomeBelowEntity).Inc()
		log.Debug("candidate skipped", "reason", metrics.OutcomeBelowEntity, "overlap", overlap)
		return slot{}
	}
	if ctx.Err() != nil {
		return slot{}
	}

	semantic := m.semanticAgainstMain(ctx, r, candidate)
	combined := similarity.Combined(overlap, semantic)
	if combined <= 0 || combined < r.opts.CombinedThreshold {
		metrics.CandidateOutcomes.WithLabelValues(metrics.OutcomeBelowCombined).Inc()
		log.Debug("candidate skipped", "reason", metrics.OutcomeBelowCombined, "overlap", overlap, "semantic", semantic, "combined", combined)
		return slot{}
	}

	metrics.CandidateOutcomes.WithLabelValues(metrics.OutcomeMatched).Inc()
	log.Debug("candidate matched", "overlap", overlap, "semantic", semantic, "combined", combined)

	if !hasSrc {
		src = domain.PrimarySource{}
	}
	return slot{scored: &scoredCandidate{
		index:    i,
		article:  candidate,
		source:   src,
		overlap:  overlap,
		semantic: semantic,
		combined: combined,
		common:   similarity.CommonEntities(r.mainEntities, entities),
	}}
}

// semanticAgainstMain embeds the main article at most once per run.
func (m *Matcher) semanticAgainstMain(ctx context.Context, r *run, candidate domain.Article) float64 {
	r.embedOnce.Do(func() {
		r.mainVector, r.mainVecOK = m.semantic.Embed(ctx, r.main.AnalysisText())
	})
	if !r.mainVecOK {
		return 0
	}

	vector, ok := m.semantic.Embed(ctx, candidate.AnalysisText())
	if !ok {
		return 0
	}
	return clampUnit(similarity.Cosine(r.mainVector, vector))
}

func (m *Matcher) persist(ctx context.Context, r *run, c scoredCandidate, rank int, createdAt time.Time) error {
	callCtx, cancel := withTimeout(ctx, m.storeTimeout)
	defer cancel()

	inserted, err := m.cache.InsertIfAbsent(callCtx, domain.PerspectiveMatch{
		MainArticleID:    r.main.ID,
		RelatedArticleID: c.article.ID,
		SimilarityScore:  c.combined,
		MatchedEntities:  c.common,
		Rank:             rank,
		CreatedAt:        createdAt,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("store perspective match: %w", err)
	}

	if inserted {
		metrics.CacheWrites.WithLabelValues("inserted").Inc()
	} else {
		metrics.CacheWrites.WithLabelValues("duplicate").Inc()
		r.logger.Debug("perspective match already stored", "related_id", c.article.ID)
	}
	return nil
}

func (m *Matcher) articleByID(ctx context.Context, country domain.Country, id string) (domain.Article, bool, error) {
	callCtx, cancel := withTimeout(ctx, m.storeTimeout)
	defer cancel()
	return m.articles.ArticleByID(callCtx, country, id)
}

func (m *Matcher) primarySource(ctx context.Context, country domain.Country, articleID string) (domain.PrimarySource, bool, error) {
	callCtx, cancel := withTimeout(ctx, m.storeTimeout)
	defer cancel()
	return m.articles.PrimarySource(callCtx, country, articleID)
}

// alignment resolves the live alignment of a primary source. Unknown sources are unrated.
func (m *Matcher) alignment(ctx context.Context, src domain.PrimarySource, hasSrc bool) (domain.Alignment, error) {
	if !hasSrc || src.SourceName == "" {
		return domain.AlignmentOf(domain.Source{}, false), nil
	}

	callCtx, cancel := withTimeout(ctx, m.storeTimeout)
	defer cancel()

	source, found, err := m.sources.SourceByName(callCtx, src.SourceName)
	if err != nil {
		return domain.Alignment{}, err
	}
	return domain.AlignmentOf(source, found), nil
}

func perspectiveOf(a domain.Article, src domain.PrimarySource, alignment domain.Alignment, score float64, entities []string) domain.RelatedPerspective {
	if entities == nil {
		entities = []string{}
	}
	return domain.RelatedPerspective{
		ID:              a.ID,
		Title:           a.Title,
		Summary:         a.Summary,
		PublishedAt:     a.PublishedAt,
		SourceName:      src.SourceName,
		SourceLogoURL:   src.LogoURL,
		SourceURL:       src.SourceURL,
		AlignmentScore:  alignment.Score,
		AlignmentLabel:  alignment.Label,
		SimilarityScore: score,
		MatchedEntities: entities,
	}
}
