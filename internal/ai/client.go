package ai

import (
	"context"
	"fmt"
	"time"

	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// Client wraps the Gemini SDK with a circuit breaker and a client-side
// request limiter so a misbehaving upstream degrades instead of
// cascading.
type Client struct {
	client          *genai.Client
	breaker         *gobreaker.CircuitBreaker
	rateLimiter     *rate.Limiter
	model           string
	embeddingsModel string
}

type rateLimits struct {
	RPM int // Requests per minute
}

func getRateLimits(tier string) rateLimits {
	switch tier {
	case "tier1":
		return rateLimits{RPM: 1000}
	case "tier2":
		return rateLimits{RPM: 2000}
	default:
		return rateLimits{RPM: 10}
	}
}

func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	limits := getRateLimits(cfg.GeminiTier)
	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10+1)

	return &Client{
		client:          client,
		breaker:         breaker,
		rateLimiter:     rateLimiter,
		model:           cfg.GeminiModel,
		embeddingsModel: cfg.EmbeddingsModel,
	}, nil
}

func (c *Client) execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := c.breaker.Execute(fn)
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("model provider unavailable: %w", err)
		}
		return nil, err
	}
	return result, nil
}

// EmbedText returns the embedding vector for one text span.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.embed_content")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", c.embeddingsModel),
		attribute.Int("gemini.text_len", len(text)),
	)

	result, err := c.execute(ctx, func() (interface{}, error) {
		model := c.client.EmbeddingModel(c.embeddingsModel)
		return model.EmbedContent(ctx, genai.Text(text))
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, err
	}

	resp := result.(*genai.EmbedContentResponse)
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch embeds every text in order, one vector per input.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.batch_embed_contents")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", c.embeddingsModel),
		attribute.Int("gemini.batch_size", len(texts)),
	)

	result, err := c.execute(ctx, func() (interface{}, error) {
		model := c.client.EmbeddingModel(c.embeddingsModel)
		batch := model.NewBatch()
		for _, text := range texts {
			batch.AddContent(genai.Text(text))
		}
		return model.BatchEmbedContents(ctx, batch)
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, err
	}

	resp := result.(*genai.BatchEmbedContentsResponse)
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Close the underlying SDK client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
