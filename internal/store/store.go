// Package store defines the document-store port used by every handler and
// provides the in-memory implementation backing tests and local runs.
package store

import (
	"context"
	"time"

	"github.com/greenstem/order-pipeline/internal/model"
)

// Products is the products collection. DecrementStock is the serialization
// point for concurrent orders: the sufficiency check and the decrement
// happen inside one atomic operation.
type Products interface {
	Get(ctx context.Context, id string) (model.Product, error)
	GetMulti(ctx context.Context, ids []string) (map[string]model.Product, error)
	Put(ctx context.Context, p model.Product) error
	DecrementStock(ctx context.Context, id string, qty int64) error
	IncrementStock(ctx context.Context, id string, qty int64) error
}

// Orders holds order documents and their reservation records. The
// reservation record doubles as the processed marker for idempotent
// redelivery.
type Orders interface {
	Get(ctx context.Context, id string) (model.Order, error)
	Put(ctx context.Context, o model.Order) error
	GetReservation(ctx context.Context, orderID string) (model.Reservation, error)
	PutReservation(ctx context.Context, r model.Reservation) error
}

// Profiles holds user profile documents. SetRole is a pure overwrite and
// safe to retry.
type Profiles interface {
	Get(ctx context.Context, uid string) (model.UserProfile, error)
	Put(ctx context.Context, p model.UserProfile) error
	SetRole(ctx context.Context, uid string, role model.Role, now time.Time) error
}

// Audit is the append-only audit collection. There is deliberately no
// update or delete operation.
type Audit interface {
	Append(ctx context.Context, e model.AuditLogEntry) error
	List(ctx context.Context) ([]model.AuditLogEntry, error)
	Exists(ctx context.Context, action model.AuditAction, orderID string) (bool, error)
}

// RoleIntents persists in-flight role assignments so a failed profile
// write can be resumed.
type RoleIntents interface {
	Put(ctx context.Context, in model.RoleIntent) error
	Delete(ctx context.Context, uid string) error
	Pending(ctx context.Context) ([]model.RoleIntent, error)
}

// Store bundles the collections handed to handlers.
type Store interface {
	Products() Products
	Orders() Orders
	Profiles() Profiles
	Audit() Audit
	RoleIntents() RoleIntents
}
