// Package model defines domain types used by the pipeline.
package model

import "time"

// OrderStatus tracks an order through its lifecycle. Status transitions
// happen outside this pipeline; handlers only ever read it.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// LineItem is one requested product within an order.
type LineItem struct {
	ProductID string `json:"product_id" bson:"product_id"`
	Quantity  int64  `json:"quantity" bson:"quantity"`
}

// Order is written by the external checkout flow and is immutable here
// except for status transitions performed outside the pipeline.
type Order struct {
	ID        string      `json:"id" bson:"_id"`
	UserID    string      `json:"user_id" bson:"user_id"`
	Items     []LineItem  `json:"items" bson:"items"`
	Status    OrderStatus `json:"status" bson:"status"`
	CreatedAt time.Time   `json:"created_at" bson:"created_at"`
}

// Product carries the stock counter reconciled by the reservation
// processor. Display attributes live with the storefront, not here.
type Product struct {
	ID    string `json:"id" bson:"_id"`
	Title string `json:"title,omitempty" bson:"title,omitempty"`
	Stock int64  `json:"stock" bson:"stock"`
}

// UserProfile mirrors the role held in the identity provider's custom
// claims. Mutated only by the role assignment service.
type UserProfile struct {
	UID       string    `json:"uid" bson:"_id"`
	Role      Role      `json:"role" bson:"role"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// AuditAction enumerates the recorded audit actions.
type AuditAction string

const (
	AuditOrderCreated AuditAction = "order_created"
	AuditRoleChanged  AuditAction = "role_changed"
)

// AuditLogEntry is append-only: entries are never updated or deleted.
type AuditLogEntry struct {
	ID        string      `json:"id" bson:"_id"`
	Action    AuditAction `json:"action" bson:"action"`
	UserID    string      `json:"user_id" bson:"user_id"`
	OrderID   string      `json:"order_id,omitempty" bson:"order_id,omitempty"`
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
}

// ItemOutcome records how one line item fared during reservation.
type ItemOutcome struct {
	ProductID string `json:"product_id" bson:"product_id"`
	Quantity  int64  `json:"quantity" bson:"quantity"`
	Fulfilled bool   `json:"fulfilled" bson:"fulfilled"`
	Reason    string `json:"reason,omitempty" bson:"reason,omitempty"`
}

// Reservation is the processed marker for an order. Its existence is what
// makes redelivery of the same order-created event a no-op.
type Reservation struct {
	OrderID     string        `json:"order_id" bson:"_id"`
	Items       []ItemOutcome `json:"items" bson:"items"`
	ProcessedAt time.Time     `json:"processed_at" bson:"processed_at"`
}

// RoleIntent is persisted before the two-store role update begins so that
// a failed profile write can be resumed from durable state.
type RoleIntent struct {
	UID       string    `json:"uid" bson:"_id"`
	Role      Role      `json:"role" bson:"role"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
