package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"credbroker/internal/model"
)

// AuditRepo appends rows to the audit_logs table. The table is strictly
// append-only: no update or delete statements exist here.
type AuditRepo struct{ DB *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{DB: db} }

// Insert appends one audit event. Metadata is serialized to JSON; a nil
// map stores NULL.
func (r *AuditRepo) Insert(ctx context.Context, ev model.AuditEvent) error {
	var meta interface{}
	if len(ev.Metadata) > 0 {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			return err
		}
		meta = string(b)
	}
	var userID interface{}
	if ev.UserID != nil {
		userID = *ev.UserID
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO audit_logs (event_kind, user_id, external_user_id, session_id, ip_address, user_agent, success, error_message, metadata)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		ev.EventKind, userID, ev.ExternalUserID, ev.SessionID, ev.IPAddress, ev.UserAgent,
		ev.Success, ev.ErrorMessage, meta)
	return err
}

// ListRecent returns the newest events, optionally filtered by kind.
func (r *AuditRepo) ListRecent(ctx context.Context, kind string, limit int) ([]model.AuditEvent, error) {
	q := `SELECT id,event_kind,user_id,external_user_id,session_id,ip_address,COALESCE(user_agent,''),success,COALESCE(error_message,''),metadata,created_at
	      FROM audit_logs`
	args := []interface{}{}
	if kind != "" {
		q += " WHERE event_kind=?"
		args = append(args, kind)
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []model.AuditEvent
	for rows.Next() {
		var (
			ev     model.AuditEvent
			userID sql.NullInt64
			meta   sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.EventKind, &userID, &ev.ExternalUserID, &ev.SessionID,
			&ev.IPAddress, &ev.UserAgent, &ev.Success, &ev.ErrorMessage, &meta, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if userID.Valid {
			id := uint64(userID.Int64)
			ev.UserID = &id
		}
		if meta.Valid && meta.String != "" {
			// Metadata that fails to decode is left nil rather than failing
			// the listing; the raw row is still in the table.
			_ = json.Unmarshal([]byte(meta.String), &ev.Metadata)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
