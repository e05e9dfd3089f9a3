package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"

	maxRetries     = 3
	initialBackoff = time.Second
	batchSize      = 100
)

type embedRequest struct {
	Model                string       `json:"model"`
	Content              contentInput `json:"content"`
	TaskType             string       `json:"task_type,omitempty"`
	OutputDimensionality int          `json:"output_dimensionality,omitempty"`
}

type contentInput struct {
	Parts []partInput `json:"parts"`
}

type partInput struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

type batchEmbedRequest struct {
	Requests []embedRequest `json:"requests"`
}

// The batch API returns bare value arrays, with no nested "embedding" key.
type batchEmbedResponse struct {
	Embeddings []struct {
		Values []float64 `json:"values"`
	} `json:"embeddings"`
}

// GeminiEmbedder embeds text through the Gemini embedContent REST API.
// Vectors are L2-normalized so cosine similarity reduces to a dot product.
type GeminiEmbedder struct {
	apiKey     string
	model      string
	dimension  int
	baseURL    string
	httpClient *http.Client
}

// GeminiOption configures a GeminiEmbedder.
type GeminiOption func(*GeminiEmbedder)

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(url string) GeminiOption {
	return func(e *GeminiEmbedder) {
		e.baseURL = url
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) GeminiOption {
	return func(e *GeminiEmbedder) {
		e.httpClient = c
	}
}

// NewGeminiEmbedder creates an embedder for the given model and output
// dimensionality (e.g. "gemini-embedding-001" at 768).
func NewGeminiEmbedder(apiKey, model string, dimension int, opts ...GeminiOption) *GeminiEmbedder {
	e := &GeminiEmbedder{
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimension returns the configured output dimensionality.
func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

// EmbedDocuments embeds corpus texts in batches, preserving input order.
func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedQuery embeds a query with the RETRIEVAL_QUERY task type, in the same
// vector space the documents were indexed in.
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	reqBody := e.request(text, taskRetrievalQuery)
	url := fmt.Sprintf("%s/models/%s:embedContent", e.baseURL, e.model)

	var resp embedResponse
	if err := e.post(ctx, url, reqBody, &resp); err != nil {
		return nil, err
	}
	vec := resp.Embedding.Values
	if len(vec) != e.dimension {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", ErrEmbeddingFailed, e.dimension, len(vec))
	}
	normalize(vec)
	return vec, nil
}

func (e *GeminiEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	reqs := make([]embedRequest, len(texts))
	for i, t := range texts {
		reqs[i] = e.request(t, taskRetrievalDocument)
	}
	url := fmt.Sprintf("%s/models/%s:batchEmbedContents", e.baseURL, e.model)

	var resp batchEmbedResponse
	if err := e.post(ctx, url, batchEmbedRequest{Requests: reqs}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingFailed, len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float64, len(resp.Embeddings))
	for i, item := range resp.Embeddings {
		if len(item.Values) != e.dimension {
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, expected %d",
				ErrEmbeddingFailed, i, len(item.Values), e.dimension)
		}
		normalize(item.Values)
		vectors[i] = item.Values
	}
	return vectors, nil
}

func (e *GeminiEmbedder) request(text, taskType string) embedRequest {
	return embedRequest{
		Model:                "models/" + e.model,
		Content:              contentInput{Parts: []partInput{{Text: text}}},
		TaskType:             taskType,
		OutputDimensionality: e.dimension,
	}
}

func (e *GeminiEmbedder) post(ctx context.Context, url string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrEmbeddingFailed, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", e.apiKey)

		resp, err := e.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusOK {
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				lastErr = fmt.Errorf("failed to decode response: %w", err)
				continue
			}
			return nil
		}
		resp.Body.Close()

		// Client errors will not improve on retry.
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: API error %d", ErrEmbeddingFailed, resp.StatusCode)
		}
		lastErr = fmt.Errorf("API error %d", resp.StatusCode)
	}
	return fmt.Errorf("%w: after %d attempts: %v", ErrEmbeddingFailed, maxRetries, lastErr)
}

func normalize(vec []float64) {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] /= norm
	}
}
