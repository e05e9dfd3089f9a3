package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"regintel-backend/ecfr"
	"regintel-backend/llm"
	"regintel-backend/service"
)

// AuditHandler handles HTTP requests for protocol audits and corpus refresh
type AuditHandler struct {
	auditService  *service.AuditService
	ingestService *service.IngestService
	locator       ecfr.Locator
	logger        *zap.Logger
}

// NewAuditHandler creates a new audit handler. locator is the configured
// regulatory source used by corpus refresh.
func NewAuditHandler(auditService *service.AuditService, ingestService *service.IngestService, locator ecfr.Locator, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditService:  auditService,
		ingestService: ingestService,
		locator:       locator,
		logger:        logger,
	}
}

// RunAuditRequest represents the request body for running an audit
type RunAuditRequest struct {
	ProtocolText string `json:"protocol_text"`
}

// RunAudit handles POST /api/audits
func (h *AuditHandler) RunAudit(c *gin.Context) {
	var req RunAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	result, err := h.auditService.Run(c.Request.Context(), req.ProtocolText)
	if err != nil {
		h.respondAuditError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// respondAuditError maps pipeline failures onto distinct client-facing codes,
// so "audit generation failed" is distinguishable from input problems.
func (h *AuditHandler) respondAuditError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_PROTOCOL_TEXT",
				"message": "protocol_text must be a non-empty string",
			},
		})
	case errors.Is(err, service.ErrGenerationFailed), errors.Is(err, llm.ErrModelUnavailable):
		h.logger.Error("audit generation failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "GENERATION_FAILED",
				"message": "audit generation failed; check model credentials and quota",
			},
		})
	default:
		h.logger.Error("audit retrieval failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RETRIEVAL_FAILED",
				"message": "failed to retrieve regulatory context",
			},
		})
	}
}

// RefreshCorpus handles POST /api/corpus/refresh. Administrator-triggered;
// re-fetches the configured regulatory part and repopulates the index.
func (h *AuditHandler) RefreshCorpus(c *gin.Context) {
	result, err := h.ingestService.Refresh(c.Request.Context(), h.locator)
	if err != nil {
		h.logger.Error("corpus refresh failed", zap.Error(err))
		status := http.StatusInternalServerError
		code := "REFRESH_FAILED"
		if errors.Is(err, ecfr.ErrSourceUnavailable) {
			status = http.StatusBadGateway
			code = "SOURCE_UNAVAILABLE"
		} else if errors.Is(err, ecfr.ErrParseFailed) {
			status = http.StatusBadGateway
			code = "PARSE_FAILED"
		}
		c.JSON(status, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": "corpus refresh failed; retry later",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}
