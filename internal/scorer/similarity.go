package scorer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/smartgrade/grader-api/internal/observability"
)

// SimilarityScorer computes a bounded semantic-closeness score between two
// texts. Implementations fail open: any backend failure scores 0.0 and is
// logged, never propagated.
type SimilarityScorer interface {
	Score(ctx context.Context, modelAnswer, studentAnswer string) float64
	// ScoreBatch computes 1:1 paired similarities for parallel answer lists,
	// preserving positional correspondence.
	ScoreBatch(ctx context.Context, modelAnswers, studentAnswers []string) []float64
}

// Embedder produces one embedding vector per input text.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// EmbedderConfig defines configuration options for the OpenAI embedder.
type EmbedderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIEmbedder implements Embedder against the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder builds an embedder using the provided configuration.
func NewOpenAIEmbedder(cfg EmbedderConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embeddings api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(config),
		model:  openai.EmbeddingModel(cfg.Model),
	}, nil
}

// Embed requests embeddings for all inputs in a single call.
func (e *OpenAIEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embeddings response size mismatch: got %d, want %d", len(resp.Data), len(inputs))
	}

	out := make([][]float32, len(inputs))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		out[idx] = d.Embedding
	}
	return out, nil
}

type similarityScorer struct {
	embedder Embedder
	model    string
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewSimilarityScorer wraps an embedder in the cosine-similarity contract.
// A nil embedder is tolerated and scores everything 0.0 (degraded mode).
func NewSimilarityScorer(embedder Embedder, model string, logger zerolog.Logger) SimilarityScorer {
	return &similarityScorer{
		embedder: embedder,
		model:    model,
		tracer:   otel.Tracer("github.com/smartgrade/grader-api/internal/scorer"),
		logger:   logger.With().Str("component", "similarity_scorer").Logger(),
	}
}

func (s *similarityScorer) Score(ctx context.Context, modelAnswer, studentAnswer string) float64 {
	// defined short-circuit: empty inputs score zero without touching the backend
	if modelAnswer == "" || studentAnswer == "" {
		return 0.0
	}

	ctx, span := s.tracer.Start(ctx, "similarity.score", trace.WithAttributes(
		attribute.String("similarity.model", s.model),
	))
	defer span.End()

	vectors, err := s.embed(ctx, []string{modelAnswer, studentAnswer})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding_failed")
		s.logger.Error().Err(err).Msg("semantic similarity failed; scoring 0")
		return 0.0
	}

	sim := clamp01(cosine(vectors[0], vectors[1]))
	s.logger.Debug().Float64("similarity", sim).Msg("scored answer pair")
	return sim
}

func (s *similarityScorer) ScoreBatch(ctx context.Context, modelAnswers, studentAnswers []string) []float64 {
	n := len(modelAnswers)
	if len(studentAnswers) < n {
		n = len(studentAnswers)
	}
	scores := make([]float64, n)

	// only pairs with both sides non-empty reach the backend
	var indices []int
	var left, right []string
	for i := 0; i < n; i++ {
		if modelAnswers[i] == "" || studentAnswers[i] == "" {
			continue
		}
		indices = append(indices, i)
		left = append(left, modelAnswers[i])
		right = append(right, studentAnswers[i])
	}
	if len(indices) == 0 {
		return scores
	}

	ctx, span := s.tracer.Start(ctx, "similarity.score_batch", trace.WithAttributes(
		attribute.String("similarity.model", s.model),
		attribute.Int("similarity.pairs", len(indices)),
	))
	defer span.End()

	leftVecs, err := s.embed(ctx, left)
	if err == nil {
		var rightVecs [][]float32
		rightVecs, err = s.embed(ctx, right)
		if err == nil {
			for j, i := range indices {
				scores[i] = clamp01(cosine(leftVecs[j], rightVecs[j]))
			}
			return scores
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "embedding_failed")
	s.logger.Error().Err(err).Int("pairs", len(indices)).Msg("batch similarity failed; scoring 0")
	return scores
}

func (s *similarityScorer) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("no embedding backend configured")
	}
	start := time.Now()
	vectors, err := s.embedder.Embed(ctx, inputs)
	observability.SimilarityDuration().WithLabelValues(s.model).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.SimilarityFailures().WithLabelValues(s.model).Inc()
		return nil, err
	}
	return vectors, nil
}

// cosine returns the cosine similarity of two vectors; zero vectors score 0.
func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// clamp01 floors negative cosines to 0; anti-similarity is not meaningful for
// answer grading.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
