package usecase

import (
	"context"
	"time"

	"PerspectiveEngine/internal/domain"
	"PerspectiveEngine/internal/ports"
)

const (
	defaultTimeWindow     = 24 * time.Hour
	defaultCandidateLimit = 50
)

// CandidateSelector finds same-edition articles published around a main article.
type CandidateSelector struct {
	articles     ports.ArticleStore
	storeTimeout time.Duration
}

// NewCandidateSelector builds a selector over articles.
func NewCandidateSelector(articles ports.ArticleStore, storeTimeout time.Duration) *CandidateSelector {
	return &CandidateSelector{articles: articles, storeTimeout: storeTimeout}
}

// SelectCandidates returns non-filtered articles within window of main, newest first.
// No candidates is a valid, empty result.
func (c *CandidateSelector) SelectCandidates(ctx context.Context, main domain.Article, window time.Duration, maxResults int) ([]domain.Article, error) {
	if window <= 0 {
		window = defaultTimeWindow
	}
	if maxResults <= 0 {
		maxResults = defaultCandidateLimit
	}

	callCtx, cancel := withTimeout(ctx, c.storeTimeout)
	defer cancel()

	candidates, err := c.articles.ArticlesInWindow(callCtx, main.Country,
		main.PublishedAt.Add(-window), main.PublishedAt.Add(window), main.ID, maxResults)
	if err != nil {
		return nil, err
	}
	if candidates == nil {
		candidates = []domain.Article{}
	}
	return candidates, nil
}
