package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditStatus represents the status of an audit request
type AuditStatus string

const (
	AuditStatusPending   AuditStatus = "pending"
	AuditStatusRetrieved AuditStatus = "retrieved"
	AuditStatusAudited   AuditStatus = "audited"
	AuditStatusFailed    AuditStatus = "failed"
)

// AuditRequest threads a single protocol submission through the retrieval and
// generation steps. It is created fresh per submission, never shared across
// requests, and discarded after the response is rendered.
type AuditRequest struct {
	ID           uuid.UUID   `json:"id"`
	Status       AuditStatus `json:"status"`
	ProtocolText string      `json:"protocol_text"`

	// Populated by the retrieval step, in descending similarity order.
	RetrievedRegulations []string `json:"retrieved_regulations"`

	// Populated by the generation step. Treated as an opaque narrative; no
	// structural validation is performed on the model output.
	AuditResults string `json:"audit_results"`

	// Reserved for a future scoring pass. Always serialized as null.
	ComplianceScore *int `json:"compliance_score"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
