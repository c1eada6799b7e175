package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"PerspectiveEngine/internal/domain"
	"PerspectiveEngine/internal/ports"
)

type pairKey struct{ main, related string }

// memStore is an in-memory article store, source registry and perspective cache.
type memStore struct {
	mu       sync.Mutex
	articles map[string]domain.Article
	primary  map[string]domain.PrimarySource
	sources  map[string]domain.Source
	matches  map[pairKey]domain.PerspectiveMatch
	failOps  map[string]bool
	inserts  int
}

var (
	_ ports.ArticleStore     = (*memStore)(nil)
	_ ports.SourceRegistry   = (*memStore)(nil)
	_ ports.PerspectiveCache = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		articles: map[string]domain.Article{},
		primary:  map[string]domain.PrimarySource{},
		sources:  map[string]domain.Source{},
		matches:  map[pairKey]domain.PerspectiveMatch{},
		failOps:  map[string]bool{},
	}
}

func (s *memStore) addArticle(a domain.Article, sourceName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Country == "" {
		a.Country = domain.CountryTR
	}
	s.articles[a.ID] = a
	if sourceName != "" {
		s.primary[a.ID] = domain.PrimarySource{
			SourceName: sourceName,
			LogoURL:    "https://logo/" + sourceName,
			SourceURL:  "https://" + sourceName + "/" + a.ID,
		}
	}
}

func (s *memStore) addSource(name string, score int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[name] = domain.Source{
		ID:                  "src-" + name,
		Name:                name,
		Country:             domain.CountryTR,
		AlignmentScore:      score,
		AlignmentConfidence: 0.9,
		Active:              true,
	}
}

func (s *memStore) setAlignment(name string, score int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.sources[name]
	src.AlignmentScore = score
	s.sources[name] = src
}

func (s *memStore) fail(op string) error {
	if s.failOps[op] {
		return domain.NewStoreError(op, errors.New("connection refused"))
	}
	return nil
}

func (s *memStore) ArticleByID(_ context.Context, country domain.Country, id string) (domain.Article, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("article by id"); err != nil {
		return domain.Article{}, false, err
	}
	a, ok := s.articles[id]
	if !ok || a.Country != country {
		return domain.Article{}, false, nil
	}
	return a, true, nil
}

func (s *memStore) ArticlesInWindow(_ context.Context, country domain.Country, start, end time.Time, excludeID string, limit int) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("articles in window"); err != nil {
		return nil, err
	}

	var out []domain.Article
	for _, a := range s.articles {
		if a.Country != country || a.ID == excludeID || a.IsFiltered {
			continue
		}
		if a.PublishedAt.Before(start) || a.PublishedAt.After(end) {
			continue
		}
		out = append(out, a)
	}
	sortNewestFirst(out, func(i int) (time.Time, string) { return out[i].PublishedAt, out[i].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) PrimarySource(_ context.Context, _ domain.Country, articleID string) (domain.PrimarySource, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("primary source"); err != nil {
		return domain.PrimarySource{}, false, err
	}
	src, ok := s.primary[articleID]
	return src, ok, nil
}

func (s *memStore) RecentArticlesBySources(_ context.Context, country domain.Country, sourceNames []string, limit, offset int) ([]domain.SourcedArticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("recent articles by sources"); err != nil {
		return nil, err
	}

	wanted := map[string]bool{}
	for _, n := range sourceNames {
		wanted[n] = true
	}

	var out []domain.SourcedArticle
	for id, a := range s.articles {
		src, ok := s.primary[id]
		if !ok || !wanted[src.SourceName] || a.IsFiltered || a.Country != country {
			continue
		}
		out = append(out, domain.SourcedArticle{Article: a, Source: src})
	}
	sortNewestFirst(out, func(i int) (time.Time, string) { return out[i].Article.PublishedAt, out[i].Article.ID })

	if offset >= len(out) {
		return []domain.SourcedArticle{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) SourceByName(_ context.Context, name string) (domain.Source, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("source by name"); err != nil {
		return domain.Source{}, false, err
	}
	src, ok := s.sources[name]
	return src, ok, nil
}

func (s *memStore) ActiveSources(_ context.Context, country domain.Country) ([]domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("active sources"); err != nil {
		return nil, err
	}

	var out []domain.Source
	for _, src := range s.sources {
		if src.Active && src.Country == country {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) CachedMatches(_ context.Context, country domain.Country, mainArticleID string, limit int) ([]domain.PerspectiveMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("cached matches"); err != nil {
		return nil, err
	}

	var out []domain.PerspectiveMatch
	for k, m := range s.matches {
		if k.main != mainArticleID {
			continue
		}
		if a, ok := s.articles[k.related]; !ok || a.IsFiltered || a.Country != country {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		if out[i].SimilarityScore != out[j].SimilarityScore {
			return out[i].SimilarityScore > out[j].SimilarityScore
		}
		return out[i].RelatedArticleID < out[j].RelatedArticleID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) InsertIfAbsent(_ context.Context, match domain.PerspectiveMatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("insert perspective"); err != nil {
		return false, err
	}

	key := pairKey{match.MainArticleID, match.RelatedArticleID}
	if _, ok := s.matches[key]; ok {
		return false, nil
	}
	s.matches[key] = match
	s.inserts++
	return true, nil
}

func (s *memStore) matchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}

func sortNewestFirst[T any](items []T, key func(i int) (time.Time, string)) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, idi := key(i)
		tj, idj := key(j)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return idi < idj
	})
}

// memAnalyzer answers from fixed tables keyed by the submitted text.
type memAnalyzer struct {
	mu         sync.Mutex
	entities   map[string]domain.ExtractedEntities
	vectors    map[string][]float32
	failTexts  map[string]bool
	failEmbeds map[string]bool
	onExtract  func(text string)

	entityCalls atomic.Int32
	embedCalls  atomic.Int32
}

var _ ports.TextAnalyzer = (*memAnalyzer)(nil)

func newMemAnalyzer() *memAnalyzer {
	return &memAnalyzer{
		entities:   map[string]domain.ExtractedEntities{},
		vectors:    map[string][]float32{},
		failTexts:  map[string]bool{},
		failEmbeds: map[string]bool{},
	}
}

func (a *memAnalyzer) set(text string, entities domain.ExtractedEntities, vector []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entities[text] = entities
	if vector != nil {
		a.vectors[text] = vector
	}
}

func (a *memAnalyzer) ExtractEntities(ctx context.Context, text string) (domain.ExtractedEntities, error) {
	a.entityCalls.Add(1)
	if a.onExtract != nil {
		a.onExtract(text)
	}
	if err := ctx.Err(); err != nil {
		return domain.ExtractedEntities{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failTexts[text] {
		return domain.ExtractedEntities{}, errors.New("analysis unavailable")
	}
	return a.entities[text], nil
}

func (a *memAnalyzer) Embed(ctx context.Context, text string) ([]float32, error) {
	a.embedCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failEmbeds[text] {
		return nil, errors.New("analysis unavailable")
	}
	v, ok := a.vectors[text]
	if !ok {
		return nil, errors.New("no embedding")
	}
	return v, nil
}
