package model

import "time"

// AuditEvent kinds recorded by the broker. Every lifecycle transition of
// the credential flow produces exactly one of these.
const (
	EventAuthorizationInitiated = "authorization_initiated"
	EventAuthorizationSucceeded = "authorization_succeeded"
	EventAuthorizationRejected  = "authorization_rejected"
	EventSessionCreated         = "session_created"
	EventTokenRefreshed         = "token_refreshed"
	EventTokenRefreshFailed     = "token_refresh_failed"
	EventTokenIntegrityFailure  = "token_integrity_failure"
	EventLogout                 = "logout"
	EventWhitelistAdded         = "whitelist_added"
	EventWhitelistRemoved       = "whitelist_removed"
	EventAdminLogin             = "admin_login"
)

// AuditEvent mirrors the append-only `audit_logs` table. Rows are never
// updated or deleted. Metadata is stored as JSON and must never contain
// token or secret material.
type AuditEvent struct {
	ID             uint64            // audit_logs.id
	EventKind      string            // audit_logs.event_kind
	UserID         *uint64           // audit_logs.user_id (nullable)
	ExternalUserID string            // audit_logs.external_user_id
	SessionID      string            // audit_logs.session_id
	IPAddress      string            // audit_logs.ip_address
	UserAgent      string            // audit_logs.user_agent
	Success        bool              // audit_logs.success
	ErrorMessage   string            // audit_logs.error_message
	Metadata       map[string]string // audit_logs.metadata (JSON column)
	CreatedAt      time.Time         // audit_logs.created_at
}
