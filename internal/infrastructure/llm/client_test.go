package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PerspectiveEngine/internal/config"
	"PerspectiveEngine/internal/domain"
	"PerspectiveEngine/internal/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default().Analysis
	cfg.BaseURL = server.URL
	cfg.APIKey = "sk-test"
	cfg.RequestsPerSecond = 0
	cfg.Breaker.MinRequests = 3
	cfg.Breaker.FailureRatio = 1
	cfg.Breaker.OpenTimeout = time.Hour

	c := NewClient(cfg, logging.Discard())
	c.backoff = func(int, *http.Response) time.Duration { return 0 }
	return c
}

func chatAnswer(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(payload)
}

func TestClient_ExtractEntities(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req chatRequest
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Equal(t, "json_object", req.ResponseFormat["type"])
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "Minister visits Ankara", req.Messages[1].Content)
		}

		_, _ = w.Write([]byte(chatAnswer(`{"persons":[" Mehmet Simsek ","mehmet simsek"],"organizations":["Treasury"],"locations":["Ankara",""],"events":[]}`)))
	})

	got, err := c.ExtractEntities(context.Background(), "Minister visits Ankara")
	require.NoError(t, err)
	assert.Equal(t, domain.ExtractedEntities{
		Persons:       []string{"Mehmet Simsek"},
		Organizations: []string{"Treasury"},
		Locations:     []string{"Ankara"},
		Events:        []string{},
	}, got)
}

func TestClient_ExtractEntities_MalformedContent(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chatAnswer("Sure! Here are the entities: Ankara")))
	})

	_, err := c.ExtractEntities(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_Embed_RetriesRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"slow down"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	})

	vec, err := c.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Embed_RateLimitExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(c.maxRetries+1), calls.Load())
}

func TestClient_Embed_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad input"}`))
	})

	_, err := c.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Embed_EmptyData(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	_, err := c.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_BreakerOpensAfterFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	for i := 0; i < 3; i++ {
		_, err := c.Embed(context.Background(), "text")
		require.Error(t, err)
	}
	require.Equal(t, int32(3), calls.Load())

	_, err := c.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(3), calls.Load(), "open breaker must not reach the service")
}

func TestClient_CancelledContext(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Embed(ctx, strings.Repeat("x", 10))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Embed_RetriesMalformedBody(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"data":`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,0.5]}]}`))
	})

	vec, err := c.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())
}

func TestClient_ExtractEntities_RetriesMalformedContent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(chatAnswer(`{"persons":["Simsek"`)))
			return
		}
		_, _ = w.Write([]byte(chatAnswer(`{"persons":["Simsek"],"organizations":[],"locations":[],"events":[]}`)))
	})

	got, err := c.ExtractEntities(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []string{"Simsek"}, got.Persons)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_MalformedBodiesTripBreaker(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":`))
	})

	for i := 0; i < 3; i++ {
		_, err := c.Embed(context.Background(), "text")
		require.ErrorIs(t, err, ErrMalformedResponse)
	}
	assert.Equal(t, int32(3*(c.maxRetries+1)), calls.Load())
	assert.Equal(t, gobreaker.StateOpen, c.breaker.State())
}

func TestClient_HungServiceTripsBreaker(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-r.Context().Done()
	})

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := c.Embed(ctx, "text")
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}
	require.Equal(t, gobreaker.StateOpen, c.breaker.State())

	started := time.Now()
	_, err := c.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Less(t, time.Since(started), time.Second, "an open breaker fails fast")
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_CallerCancellationKeepsBreakerClosed(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		stop := time.AfterFunc(10*time.Millisecond, cancel)
		_, err := c.Embed(ctx, "text")
		stop.Stop()
		cancel()
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())
}
