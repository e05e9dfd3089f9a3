package service

import (
	"fmt"
	"strings"
)

// auditPromptTemplate establishes the auditor persona, injects the retrieved
// regulations verbatim as grounding context, then the protocol text under
// review.
const auditPromptTemplate = `You are a Senior FDA Regulatory Auditor specializing in 21 CFR Part 11.
Your task is to review the following Clinical Trial Protocol snippet against the provided regulations.

REGULATORY CONTEXT (21 CFR Part 11):
%s

PROTOCOL SNIPPET:
%s

INSTRUCTIONS:
1. Identify missing requirements for electronic signatures or audit trails.
2. Flag "Red Zone" risks where data integrity is at stake.
3. Be concise and use professional clinical terminology.`

// emptyContextNotice stands in for the regulatory context when retrieval
// returned nothing. The audit still proceeds, at reduced quality.
const emptyContextNotice = "(no regulatory context retrieved; answer from general knowledge of 21 CFR Part 11)"

func buildAuditPrompt(protocolText string, regulations []string) string {
	context := emptyContextNotice
	if len(regulations) > 0 {
		context = strings.Join(regulations, "\n\n")
	}
	return fmt.Sprintf(auditPromptTemplate, context, protocolText)
}
