package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"

	"github.com/leonardoSolisMobiik/tec-salud-poc-sub004/internal/platform/retry"
)

// EmbedderConfig configures the embedding collaborator.
type EmbedderConfig struct {
	Model    string
	BaseURL  string  // Ollama server URL
	RPS      float64 // rate limit toward the embedding service
	Burst    int
	Attempts int // retry attempts for transient failures
}

// Embedder wraps the embedding model behind a rate limiter so batch workers
// cannot exceed the collaborator's throughput.
type Embedder struct {
	config  EmbedderConfig
	model   *ollama.LLM
	limiter *rate.Limiter
}

// embedCallError marks embedding transport failures as retryable. Requests
// the collaborator rejected outright are not wrapped.
type embedCallError struct{ err error }

func (e *embedCallError) Error() string   { return e.err.Error() }
func (e *embedCallError) Unwrap() error   { return e.err }
func (e *embedCallError) Transient() bool { return true }

// NewEmbedder builds a ready-to-use embedder or returns an initialization
// error. There is no lazy setup: a returned Embedder has a live client.
func NewEmbedder(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.RPS <= 0 {
		config.RPS = 5
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.Attempts <= 0 {
		config.Attempts = 3
	}

	model, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize embedding model: %w", err)
	}

	return &Embedder{
		config:  config,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(config.RPS), config.Burst),
	}, nil
}

// EmbedTexts returns one vector per input text, in order. Each request waits
// on the rate limiter and transient failures are retried with backoff.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limiter: %w", err)
	}

	var vectors [][]float32
	err := retry.Do(ctx, e.config.Attempts, time.Second, func() error {
		v, err := e.model.CreateEmbedding(ctx, texts)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return &embedCallError{err: err}
		}
		vectors = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding collaborator returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
