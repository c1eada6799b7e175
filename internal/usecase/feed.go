package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"PerspectiveEngine/internal/domain"
	"PerspectiveEngine/internal/metrics"
	"PerspectiveEngine/internal/ports"
)

const defaultFeedLimit = 30

// FeedBuilderDeps wires the read-only stores of the balanced feed.
type FeedBuilderDeps struct {
	Articles     ports.ArticleStore
	Sources      ports.SourceRegistry
	DefaultLimit int
	StoreTimeout time.Duration
	Logger       *slog.Logger
}

// FeedBuilder partitions recent articles of an edition by source alignment.
type FeedBuilder struct {
	articles     ports.ArticleStore
	sources      ports.SourceRegistry
	defaultLimit int
	storeTimeout time.Duration
	logger       *slog.Logger
}

// NewFeedBuilder constructs the feed builder.
func NewFeedBuilder(deps FeedBuilderDeps) *FeedBuilder {
	limit := deps.DefaultLimit
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	return &FeedBuilder{
		articles:     deps.Articles,
		sources:      deps.Sources,
		defaultLimit: limit,
		storeTimeout: deps.StoreTimeout,
		logger:       orDiscard(deps.Logger),
	}
}

var feedBuckets = []domain.AlignmentBucket{domain.BucketProGov, domain.BucketMixed, domain.BucketAntiGov}

// GetBalancedFeed returns up to ceil(limit/3) articles per alignment bucket.
// page is 1-based; every bucket pages independently.
func (f *FeedBuilder) GetBalancedFeed(ctx context.Context, country domain.Country, limit, page int) (domain.BalancedFeed, error) {
	if limit <= 0 {
		limit = f.defaultLimit
	}
	if page < 1 {
		page = 1
	}
	perBucket := (limit + 2) / 3
	offset := (page - 1) * perBucket

	callCtx, cancel := withTimeout(ctx, f.storeTimeout)
	sources, err := f.sources.ActiveSources(callCtx, country)
	cancel()
	if err != nil {
		return domain.BalancedFeed{}, fmt.Errorf("load active sources: %w", err)
	}

	// A name belongs to exactly one bucket: the first source seen with it wins.
	byName := make(map[string]domain.Source, len(sources))
	names := make(map[domain.AlignmentBucket][]string, len(feedBuckets))
	for _, src := range sources {
		if _, dup := byName[src.Name]; dup {
			continue
		}
		byName[src.Name] = src
		bucket := domain.BucketFor(src.AlignmentScore)
		names[bucket] = append(names[bucket], src.Name)
	}

	buckets := make(map[domain.AlignmentBucket][]domain.FeedArticle, len(feedBuckets))
	for _, bucket := range feedBuckets {
		articles, err := f.bucketArticles(ctx, country, names[bucket], byName, perBucket, offset)
		if err != nil {
			return domain.BalancedFeed{}, fmt.Errorf("load %s articles: %w", bucket, err)
		}
		buckets[bucket] = articles
		metrics.FeedArticles.WithLabelValues(string(bucket)).Observe(float64(len(articles)))
	}

	f.logger.Debug("balanced feed built",
		"country", string(country),
		"page", page,
		"per_bucket", perBucket,
		"pro_gov", len(buckets[domain.BucketProGov]),
		"mixed", len(buckets[domain.BucketMixed]),
		"anti_gov", len(buckets[domain.BucketAntiGov]),
	)

	return domain.BalancedFeed{
		ProGov:  buckets[domain.BucketProGov],
		Mixed:   buckets[domain.BucketMixed],
		AntiGov: buckets[domain.BucketAntiGov],
	}, nil
}

func (f *FeedBuilder) bucketArticles(ctx context.Context, country domain.Country, names []string, byName map[string]domain.Source, limit, offset int) ([]domain.FeedArticle, error) {
	out := []domain.FeedArticle{}
	if len(names) == 0 {
		return out, nil
	}

	callCtx, cancel := withTimeout(ctx, f.storeTimeout)
	defer cancel()

	rows, err := f.articles.RecentArticlesBySources(callCtx, country, names, limit, offset)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if row.Article.IsFiltered {
			continue
		}
		src, ok := byName[row.Source.SourceName]
		if !ok {
			continue
		}
		out = append(out, domain.FeedArticle{
			ID:             row.Article.ID,
			Title:          row.Article.Title,
			Summary:        row.Article.Summary,
			PublishedAt:    row.Article.PublishedAt,
			SourceName:     row.Source.SourceName,
			SourceLogoURL:  row.Source.LogoURL,
			AlignmentScore: src.AlignmentScore,
			AlignmentLabel: src.Label(),
		})
	}
	return out, nil
}
