package handlers

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

const maxProtocolPDFSize = 10 * 1024 * 1024 // 10MB

// Section headings most relevant to a Part 11 audit; used when the caller
// asks for a filtered extraction instead of the full protocol text.
var regulatorySectionPattern = regexp.MustCompile(`(?i)(` +
	`data\s+(management|handling|collection|entry|integrity|storage|retention|monitoring)` +
	`|electronic\s+(data|record|signature|case\s+report)` +
	`|e?crf|case\s+report\s+form|source\s+(data|document)` +
	`|informed\s+consent|audit\s+trail|quality\s+(assurance|control)` +
	`|record\s+(keeping|retention)|system\s+validation|computer\s+system` +
	`|confidentiality|access\s+control|user\s+access|security|password` +
	`)`)

// ProtocolHandler handles protocol document uploads
type ProtocolHandler struct {
	logger *zap.Logger
}

// NewProtocolHandler creates a new protocol handler
func NewProtocolHandler(logger *zap.Logger) *ProtocolHandler {
	return &ProtocolHandler{logger: logger}
}

// ExtractText handles POST /api/protocols/extract. It accepts a protocol PDF
// upload and returns its plain text, ready to submit as protocol_text. With
// ?sections=true only paragraphs matching regulatory section keywords are
// kept.
func (h *ProtocolHandler) ExtractText(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE",
				"message": "multipart field 'file' is required",
			},
		})
		return
	}
	if fileHeader.Size > maxProtocolPDFSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FILE_TOO_LARGE",
				"message": "protocol PDF exceeds the 10MB limit",
			},
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNREADABLE_FILE",
				"message": err.Error(),
			},
		})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNREADABLE_FILE",
				"message": err.Error(),
			},
		})
		return
	}

	text, err := extractPDFText(content)
	if err != nil {
		h.logger.Warn("protocol PDF extraction failed",
			zap.String("filename", fileHeader.Filename),
			zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "EXTRACTION_FAILED",
				"message": "could not extract text from the uploaded PDF",
			},
		})
		return
	}

	if c.Query("sections") == "true" {
		text = filterRegulatorySections(text)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"filename": fileHeader.Filename,
			"text":     text,
		},
	})
}

func extractPDFText(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	b, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	if _, err := buf.ReadFrom(b); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// filterRegulatorySections keeps only paragraphs that mention a regulatory
// section keyword, preserving their order.
func filterRegulatorySections(text string) string {
	var kept []string
	for _, para := range strings.Split(text, "\n\n") {
		if regulatorySectionPattern.MatchString(para) {
			kept = append(kept, strings.TrimSpace(para))
		}
	}
	return strings.Join(kept, "\n\n")
}
