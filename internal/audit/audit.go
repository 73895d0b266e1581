// Package audit appends immutable audit records for order creation and
// role changes.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greenstem/order-pipeline/internal/model"
	"github.com/greenstem/order-pipeline/internal/obs"
	"github.com/greenstem/order-pipeline/internal/store"
)

// Logger records audit entries. Record tolerates duplicate invocation:
// entries carrying an order id are deduplicated by (action, orderId), so
// at-least-once redelivery cannot produce a second order_created entry.
type Logger struct {
	log store.Audit
	now func() time.Time
}

// New constructs a Logger over the audit collection.
func New(log store.Audit) *Logger {
	return &Logger{log: log, now: time.Now}
}

// Record appends one entry. orderID may be empty for actions not tied to
// an order.
func (l *Logger) Record(ctx context.Context, action model.AuditAction, userID, orderID string) error {
	if orderID != "" {
		exists, err := l.log.Exists(ctx, action, orderID)
		if err != nil {
			return model.Wrap(model.CodeInternal, err, "audit dedup check")
		}
		if exists {
			return nil
		}
	}
	entry := model.AuditLogEntry{
		ID:        uuid.NewString(),
		Action:    action,
		UserID:    userID,
		OrderID:   orderID,
		Timestamp: l.now().UTC(),
	}
	if err := l.log.Append(ctx, entry); err != nil {
		return model.Wrap(model.CodeInternal, err, "audit append")
	}
	return nil
}

// HandleAuditCreated reacts to the creation of an audit entry. It only
// logs; nothing downstream consumes its result.
func (l *Logger) HandleAuditCreated(_ context.Context, e model.AuditLogEntry) error {
	obs.Logger.Info("audit_event",
		zap.String("action", string(e.Action)),
		zap.String("user_id", e.UserID),
		zap.String("order_id", e.OrderID),
		zap.Time("timestamp", e.Timestamp),
	)
	return nil
}
