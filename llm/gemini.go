// Package llm wraps the Gemini generation API behind a circuit breaker and
// rate limiter.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// ErrModelUnavailable indicates the generation call failed, timed out, or the
// circuit breaker is open. It is propagated as-is; there is no local fallback.
var ErrModelUnavailable = errors.New("llm: model unavailable")

const generationTimeout = 120 * time.Second

// Generator produces text from a prompt. Satisfied by *Client; test doubles
// implement it directly.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client calls the Gemini generateContent API.
type Client struct {
	client  *genai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *zap.Logger
}

// rateLimitFor returns a requests-per-minute budget for the API tier.
func rateLimitFor(tier string) int {
	switch tier {
	case "tier1":
		return 1000
	case "tier2":
		return 2000
	default: // free
		return 10
	}
}

// NewClient creates a generation client for the given model. tier selects the
// request-per-minute budget ("free", "tier1", "tier2").
func NewClient(ctx context.Context, apiKey, model, tier string, logger *zap.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiGeneration",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	rpm := rateLimitFor(tier)
	limiter := rate.NewLimiter(rate.Limit(float64(rpm)*0.9/60.0), rpm/10+1)

	return &Client{
		client:  client,
		model:   model,
		breaker: breaker,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Generate runs a single inference call and returns the model's text output
// unmodified. Failures and timeouts surface as ErrModelUnavailable.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, generationTimeout)
		defer cancel()

		model := c.client.GenerativeModel(c.model)
		resp, err := model.GenerateContent(callCtx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}
		return extractText(resp)
	})
	if err != nil {
		c.logger.Error("generation call failed", zap.String("model", c.model), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return result.(string), nil
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.client.Close()
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", errors.New("API returned no candidates")
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	out := b.String()
	if out == "" {
		return "", errors.New("API returned empty content")
	}
	return out, nil
}
