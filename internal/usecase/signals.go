package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"PerspectiveEngine/internal/domain"
	"PerspectiveEngine/internal/logging"
	"PerspectiveEngine/internal/metrics"
	"PerspectiveEngine/internal/ports"
	"PerspectiveEngine/internal/similarity"
	"PerspectiveEngine/internal/textutil"
)

const (
	signalEntities  = "entities"
	signalEmbedding = "embedding"
)

// EntityExtractor turns article text into named entities. Failures yield empty sets.
type EntityExtractor struct {
	analyzer ports.TextAnalyzer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewEntityExtractor wraps analyzer with a per-call timeout.
func NewEntityExtractor(analyzer ports.TextAnalyzer, timeout time.Duration, logger *slog.Logger) *EntityExtractor {
	return &EntityExtractor{analyzer: analyzer, timeout: timeout, logger: orDiscard(logger)}
}

// Extract returns the entities of text, or empty sets when the service cannot answer.
func (e *EntityExtractor) Extract(ctx context.Context, text string) domain.ExtractedEntities {
	prepared := textutil.Prepare(text, textutil.MaxEntityChars)
	if prepared == "" || e.analyzer == nil {
		return domain.ExtractedEntities{}
	}

	callCtx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	entities, err := e.analyzer.ExtractEntities(callCtx, prepared)
	if err != nil {
		degrade(ctx, e.logger, signalEntities, err)
		return domain.ExtractedEntities{}
	}
	return entities
}

// SemanticScorer compares texts through embeddings. Failures yield zero similarity.
type SemanticScorer struct {
	analyzer ports.TextAnalyzer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSemanticScorer wraps analyzer with a per-call timeout.
func NewSemanticScorer(analyzer ports.TextAnalyzer, timeout time.Duration, logger *slog.Logger) *SemanticScorer {
	return &SemanticScorer{analyzer: analyzer, timeout: timeout, logger: orDiscard(logger)}
}

// Embed returns the embedding of text; ok is false when none could be obtained.
func (s *SemanticScorer) Embed(ctx context.Context, text string) ([]float32, bool) {
	prepared := textutil.Prepare(text, textutil.MaxEmbeddingChars)
	if prepared == "" || s.analyzer == nil {
		return nil, false
	}

	callCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	vector, err := s.analyzer.Embed(callCtx, prepared)
	if err != nil {
		degrade(ctx, s.logger, signalEmbedding, err)
		return nil, false
	}
	return vector, len(vector) > 0
}

// SemanticSimilarity embeds both texts and returns their cosine similarity clamped to [0, 1].
func (s *SemanticScorer) SemanticSimilarity(ctx context.Context, textA, textB string) float64 {
	a, ok := s.Embed(ctx, textA)
	if !ok {
		return 0
	}
	b, ok := s.Embed(ctx, textB)
	if !ok {
		return 0
	}
	return clampUnit(similarity.Cosine(a, b))
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// degrade records a failed analysis call. A caller that went away is not a degradation.
func degrade(ctx context.Context, logger *slog.Logger, signal string, err error) {
	if ctx.Err() != nil {
		logger.Debug("analysis call abandoned", "signal", signal, "error", ctx.Err())
		return
	}
	metrics.DegradedSignals.WithLabelValues(signal).Inc()
	logger.Warn("analysis signal degraded", "signal", signal, "error", fmt.Errorf("%w: %v", domain.ErrDegradedSignal, err))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return logging.Discard()
	}
	return logger
}
