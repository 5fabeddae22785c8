// Package queue fans audit events out over RabbitMQ and hosts the
// background consumer that archives them.
package queue

// AuditEventMessage is the payload published to the audit.events queue.
// It mirrors the durable audit row and, like it, never carries token or
// secret material. Timestamps travel as RFC 3339 strings.
type AuditEventMessage struct {
	EventKind      string            `json:"event_kind"`
	UserID         *uint64           `json:"user_id,omitempty"`
	ExternalUserID string            `json:"external_user_id,omitempty"`
	SessionID      string            `json:"session_id,omitempty"`
	IPAddress      string            `json:"ip_address,omitempty"`
	Success        bool              `json:"success"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	RecordedAt     string            `json:"recorded_at"`
}
