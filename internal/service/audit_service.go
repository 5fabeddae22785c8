package service

import (
	"context"
	"log/slog"

	"credbroker/internal/model"
)

// AuditPublisher fans recorded events out to a message broker for archival
// and alerting. Publishing is best-effort; the durable row in the store is
// the source of truth.
type AuditPublisher interface {
	Publish(ctx context.Context, ev model.AuditEvent) error
}

// AuditService is the broker's audit sink. Recording is synchronous but
// infallible from the caller's point of view: a failed insert is logged to
// the operational log and never rolls back or denies the operation it
// accompanies.
type AuditService struct {
	store AuditStore
	pub   AuditPublisher // optional
	log   *slog.Logger
}

func NewAuditService(store AuditStore, pub AuditPublisher, log *slog.Logger) *AuditService {
	if log == nil {
		log = slog.Default()
	}
	return &AuditService{store: store, pub: pub, log: log}
}

// Record appends one audit event. Failures are alarmable, not fatal.
func (a *AuditService) Record(ctx context.Context, ev model.AuditEvent) {
	if err := a.store.Insert(ctx, ev); err != nil {
		a.log.Error("audit insert failed",
			"event_kind", ev.EventKind,
			"error", err)
	}
	if a.pub != nil {
		if err := a.pub.Publish(ctx, ev); err != nil {
			a.log.Warn("audit publish failed",
				"event_kind", ev.EventKind,
				"error", err)
		}
	}
}
