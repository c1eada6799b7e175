package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"PerspectiveEngine/internal/config"
	"PerspectiveEngine/internal/metrics"
	"PerspectiveEngine/internal/ports"
)

const (
	breakerName   = "text-analysis"
	maxRetryAfter = 10 * time.Second
	maxBodyBytes  = 8 << 20
)

var (
	// ErrRateLimited is returned when the service keeps answering 429.
	ErrRateLimited = errors.New("analysis service rate limited")
	// ErrMalformedResponse is returned when a 200 response cannot be interpreted.
	ErrMalformedResponse = errors.New("malformed analysis response")

	errLimiterWait = errors.New("rate limiter wait")
)

// Client talks to an OpenAI-compatible service for entity extraction and embeddings.
type Client struct {
	baseURL        string
	apiKey         string
	entityModel    string
	embeddingModel string
	maxRetries     int

	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
	backoff func(attempt int, resp *http.Response) time.Duration
	logger  *slog.Logger
}

var _ ports.TextAnalyzer = (*Client)(nil)

// NewClient creates a reusable HTTP client guarded by a rate limiter and a circuit breaker.
func NewClient(cfg config.AnalysisConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		entityModel:    cfg.EntityModel,
		embeddingModel: cfg.EmbeddingModel,
		maxRetries:     cfg.MaxRetries,
		http:           &http.Client{Timeout: 30 * time.Second},
		limiter:        rate.NewLimiter(limit, burst),
		backoff:        retryDelay,
		logger:         logger,
	}
	c.breaker = newBreaker(cfg.Breaker, logger)
	return c
}

func newBreaker(cfg config.BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[struct{}] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 10
	}
	ratio := cfg.FailureRatio
	if ratio <= 0 {
		ratio = 0.6
	}

	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		// A cancelled caller or a local limiter wait is not a service failure.
		// A call that runs out its deadline waiting on the service is.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, errLimiterWait)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// post sends payload to path and hands the 200 body to decode. A body decode
// rejects is retried like a 5xx answer and counts against the breaker.
func (c *Client) post(ctx context.Context, endpoint, path string, payload any, decode func([]byte) error) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.doWithRetry(ctx, endpoint, path, body, decode)
	})
	return err
}

// doWithRetry retries 429, 5xx and undecodable 200 answers, honouring Retry-After on 429.
func (c *Client) doWithRetry(ctx context.Context, endpoint, path string, body []byte, decode func([]byte) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", errLimiterWait, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			metrics.AnalysisRequests.WithLabelValues(endpoint, "error").Inc()
			if ctx.Err() != nil {
				return fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			return fmt.Errorf("do request: %w", err)
		}

		payload, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
		metrics.AnalysisRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		if readErr != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			return fmt.Errorf("read response: %w", readErr)
		}

		if resp.StatusCode == http.StatusOK {
			decodeErr := decode(payload)
			if decodeErr == nil {
				return nil
			}
			lastErr = decodeErr
		} else {
			retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
			lastErr = fmt.Errorf("unexpected status %s: %s", resp.Status, snippet(payload))
			if resp.StatusCode == http.StatusTooManyRequests {
				lastErr = fmt.Errorf("%w: %s", ErrRateLimited, snippet(payload))
			}
			if !retryable {
				return lastErr
			}
		}

		if attempt < c.maxRetries {
			c.logger.Debug("retrying analysis request", "endpoint", endpoint, "attempt", attempt+1, "status", resp.StatusCode)
			select {
			case <-ctx.Done():
				return fmt.Errorf("request cancelled during retry: %w", ctx.Err())
			case <-time.After(c.backoff(attempt, resp)):
			}
		}
	}

	return fmt.Errorf("all retries exhausted: %w", lastErr)
}

func retryDelay(attempt int, resp *http.Response) time.Duration {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
			delay := time.Duration(seconds) * time.Second
			if delay > maxRetryAfter {
				delay = maxRetryAfter
			}
			return delay
		}
	}
	return (500 * time.Millisecond) << attempt
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}
