package ports

import (
	"context"
	"time"

	"PerspectiveEngine/internal/domain"
)

// ArticleStore reads persisted articles for one country edition.
type ArticleStore interface {
	ArticleByID(ctx context.Context, country domain.Country, id string) (domain.Article, bool, error)
	// ArticlesInWindow returns non-suppressed articles published within [start, end],
	// newest first, excluding excludeID.
	ArticlesInWindow(ctx context.Context, country domain.Country, start, end time.Time, excludeID string, limit int) ([]domain.Article, error)
	PrimarySource(ctx context.Context, country domain.Country, articleID string) (domain.PrimarySource, bool, error)
	// RecentArticlesBySources returns non-suppressed articles whose primary source is
	// one of sourceNames, newest first.
	RecentArticlesBySources(ctx context.Context, country domain.Country, sourceNames []string, limit, offset int) ([]domain.SourcedArticle, error)
}

// SourceRegistry exposes moderated outlet alignment data.
type SourceRegistry interface {
	SourceByName(ctx context.Context, name string) (domain.Source, bool, error)
	ActiveSources(ctx context.Context, country domain.Country) ([]domain.Source, error)
}

// TextAnalyzer is the external, rate-limited analysis service.
type TextAnalyzer interface {
	ExtractEntities(ctx context.Context, text string) (domain.ExtractedEntities, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PerspectiveCache stores write-once perspective matches.
type PerspectiveCache interface {
	// CachedMatches returns matches for mainArticleID in stored rank order, then highest
	// score first. Rows whose related article is missing from the edition or suppressed
	// are skipped before limit applies.
	CachedMatches(ctx context.Context, country domain.Country, mainArticleID string, limit int) ([]domain.PerspectiveMatch, error)
	// InsertIfAbsent stores match unless the pair already exists; inserted reports which.
	InsertIfAbsent(ctx context.Context, match domain.PerspectiveMatch) (inserted bool, err error)
}
