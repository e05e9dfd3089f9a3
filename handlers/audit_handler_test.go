package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"regintel-backend/ecfr"
	"regintel-backend/llm"
	"regintel-backend/models"
	"regintel-backend/service"
	"regintel-backend/vectorstore"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1}
	}
	return out, nil
}
func (stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	return []float64{1}, nil
}
func (stubEmbedder) Dimension() int { return 1 }

type stubStore struct {
	chunks []models.RegulationChunk
}

func (s *stubStore) Add(ctx context.Context, entries []vectorstore.Entry) error { return nil }
func (s *stubStore) Query(ctx context.Context, vector []float64, k int) ([]models.RegulationChunk, error) {
	if k > len(s.chunks) {
		k = len(s.chunks)
	}
	return s.chunks[:k], nil
}
func (s *stubStore) Count(ctx context.Context) (int, error) { return len(s.chunks), nil }
func (s *stubStore) Clear(ctx context.Context) error        { return nil }
func (s *stubStore) Close() error                           { return nil }

type stubGenerator struct {
	narrative string
	err       error
}

func (g stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.narrative, nil
}

func newTestRouter(store vectorstore.Store, gen llm.Generator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auditService := service.NewAuditService(
		service.AuditWithStore(store),
		service.AuditWithEmbedder(stubEmbedder{}),
		service.AuditWithGenerator(gen),
	)
	handler := NewAuditHandler(auditService, nil, ecfr.Locator{Title: 21, Part: "11", Date: "2024-02-01"}, zap.NewNop())

	r := gin.New()
	r.POST("/api/audits", handler.RunAudit)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/audits", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRunAudit(t *testing.T) {
	store := &stubStore{chunks: []models.RegulationChunk{
		{Section: "§ 11.10", Text: "closed systems shall employ procedures"},
	}}
	r := newTestRouter(store, stubGenerator{narrative: "Finding: authenticity gap."})

	w := doRequest(t, r, `{"protocol_text": "signatures in a shared spreadsheet"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Status               string   `json:"status"`
			RetrievedRegulations []string `json:"retrieved_regulations"`
			AuditResults         string   `json:"audit_results"`
			ComplianceScore      *int     `json:"compliance_score"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Data.Status != "audited" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.Data.RetrievedRegulations) != 1 {
		t.Errorf("retrieved = %v", resp.Data.RetrievedRegulations)
	}
	if resp.Data.AuditResults != "Finding: authenticity gap." {
		t.Errorf("audit_results = %q", resp.Data.AuditResults)
	}
	if resp.Data.ComplianceScore != nil {
		t.Errorf("compliance_score should serialize as null, got %v", *resp.Data.ComplianceScore)
	}
	// The reserved field must be present in the payload, not omitted.
	if !strings.Contains(w.Body.String(), `"compliance_score":null`) {
		t.Errorf("compliance_score missing from payload: %s", w.Body.String())
	}
}

func TestRunAudit_EmptyProtocolText(t *testing.T) {
	r := newTestRouter(&stubStore{}, stubGenerator{narrative: "x"})

	for _, body := range []string{`{"protocol_text": ""}`, `{}`, `{"protocol_text": "   "}`} {
		w := doRequest(t, r, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d", body, w.Code)
		}
		if !strings.Contains(w.Body.String(), "INVALID_PROTOCOL_TEXT") {
			t.Errorf("body %s: missing error code, got %s", body, w.Body.String())
		}
	}
}

func TestRunAudit_MalformedJSON(t *testing.T) {
	r := newTestRouter(&stubStore{}, stubGenerator{narrative: "x"})
	w := doRequest(t, r, `{"protocol_text": `)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestRunAudit_EmptyIndexStillAudits(t *testing.T) {
	r := newTestRouter(&stubStore{}, stubGenerator{narrative: "General remarks."})
	w := doRequest(t, r, `{"protocol_text": "some protocol"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"retrieved_regulations":[]`) {
		t.Errorf("expected empty retrieved list, got %s", w.Body.String())
	}
}

func TestRunAudit_GenerationFailure(t *testing.T) {
	store := &stubStore{chunks: []models.RegulationChunk{{Text: "reg"}}}
	r := newTestRouter(store, stubGenerator{err: llm.ErrModelUnavailable})

	w := doRequest(t, r, `{"protocol_text": "some protocol"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "GENERATION_FAILED") {
		t.Errorf("missing error code: %s", w.Body.String())
	}
}
