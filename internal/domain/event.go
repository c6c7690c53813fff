package domain

import "time"

// AuditEvent records a significant system action, such as a schedule firing.
type AuditEvent struct {
	ID          int64          `json:"id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Action      string         `json:"action"`
	Actor       string         `json:"actor,omitempty"`
	SubjectType string         `json:"subjectType"`
	SubjectID   string         `json:"subjectId,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
