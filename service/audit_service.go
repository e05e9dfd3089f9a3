package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"regintel-backend/embedding"
	"regintel-backend/llm"
	"regintel-backend/models"
	"regintel-backend/vectorstore"
)

var (
	ErrInvalidInput     = errors.New("protocol text is required")
	ErrRetrievalFailed  = errors.New("failed to retrieve regulatory context")
	ErrGenerationFailed = errors.New("failed to generate audit narrative")
)

// AuditService runs the online audit pipeline: validate the protocol text,
// retrieve the most similar regulation chunks, then generate the compliance
// narrative grounded on them. A failure in either step aborts the run; there
// is no partial recovery.
type AuditService struct {
	store     vectorstore.Store
	embedder  embedding.Embedder
	generator llm.Generator
	topK      int
	logger    *zap.Logger
}

// AuditServiceOption is a functional option for AuditService
type AuditServiceOption func(*AuditService)

// AuditWithStore sets the vector store
func AuditWithStore(store vectorstore.Store) AuditServiceOption {
	return func(s *AuditService) {
		s.store = store
	}
}

// AuditWithEmbedder sets the query embedder
func AuditWithEmbedder(e embedding.Embedder) AuditServiceOption {
	return func(s *AuditService) {
		s.embedder = e
	}
}

// AuditWithGenerator sets the generation client
func AuditWithGenerator(g llm.Generator) AuditServiceOption {
	return func(s *AuditService) {
		s.generator = g
	}
}

// AuditWithTopK sets how many chunks each query retrieves
func AuditWithTopK(k int) AuditServiceOption {
	return func(s *AuditService) {
		s.topK = k
	}
}

// AuditWithLogger sets the logger
func AuditWithLogger(logger *zap.Logger) AuditServiceOption {
	return func(s *AuditService) {
		s.logger = logger
	}
}

// NewAuditService creates a new audit service
func NewAuditService(opts ...AuditServiceOption) *AuditService {
	s := &AuditService{
		topK:   5,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes the full pipeline for one submission and returns the terminal
// audit record. ErrInvalidInput is returned before any retrieval occurs when
// the protocol text is empty or blank.
func (s *AuditService) Run(ctx context.Context, protocolText string) (*models.AuditRequest, error) {
	if strings.TrimSpace(protocolText) == "" {
		return nil, ErrInvalidInput
	}

	req := &models.AuditRequest{
		ID:           uuid.New(),
		Status:       models.AuditStatusPending,
		ProtocolText: protocolText,
		CreatedAt:    time.Now().UTC(),
	}

	regulations, err := s.Retrieve(ctx, protocolText)
	if err != nil {
		req.Status = models.AuditStatusFailed
		return req, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}
	req.RetrievedRegulations = regulations
	req.Status = models.AuditStatusRetrieved

	narrative, err := s.Audit(ctx, protocolText, regulations)
	if err != nil {
		req.Status = models.AuditStatusFailed
		return req, err
	}
	req.AuditResults = narrative
	req.Status = models.AuditStatusAudited
	now := time.Now().UTC()
	req.CompletedAt = &now

	s.logger.Info("audit completed",
		zap.String("audit_id", req.ID.String()),
		zap.Int("retrieved_chunks", len(regulations)),
		zap.Int("narrative_length", len(narrative)))
	return req, nil
}

// Retrieve embeds the protocol text as a query and returns the texts of the
// top-k most similar stored chunks, in descending similarity order. Ranking
// is purely by embedding-space proximity; no category filtering is applied.
// Read-only: the index is never modified.
func (s *AuditService) Retrieve(ctx context.Context, protocolText string) ([]string, error) {
	vector, err := s.embedder.EmbedQuery(ctx, protocolText)
	if err != nil {
		return nil, err
	}
	chunks, err := s.store.Query(ctx, vector, s.topK)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts, nil
}

// Audit builds the grounded auditor prompt and invokes the generation model,
// returning its output unmodified. An empty regulation list is a documented
// quality degradation, not an error: the call proceeds with a warning.
func (s *AuditService) Audit(ctx context.Context, protocolText string, regulations []string) (string, error) {
	if len(regulations) == 0 {
		s.logger.Warn("auditing without retrieved regulatory context; output quality is degraded")
	}
	prompt := buildAuditPrompt(protocolText, regulations)
	narrative, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return narrative, nil
}
