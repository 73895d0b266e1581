package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/greenstem/order-pipeline/internal/model"
)

// Memory is the in-memory document store. Each collection keeps a
// per-document version counter bumped on every write.
type Memory struct {
	mu sync.RWMutex

	products     map[string]versioned[model.Product]
	orders       map[string]versioned[model.Order]
	reservations map[string]versioned[model.Reservation]
	profiles     map[string]versioned[model.UserProfile]
	audit        []model.AuditLogEntry
	intents      map[string]versioned[model.RoleIntent]
}

type versioned[T any] struct {
	doc     T
	version uint64
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		products:     make(map[string]versioned[model.Product]),
		orders:       make(map[string]versioned[model.Order]),
		reservations: make(map[string]versioned[model.Reservation]),
		profiles:     make(map[string]versioned[model.UserProfile]),
		intents:      make(map[string]versioned[model.RoleIntent]),
	}
}

func (m *Memory) Products() Products       { return (*memProducts)(m) }
func (m *Memory) Orders() Orders           { return (*memOrders)(m) }
func (m *Memory) Profiles() Profiles       { return (*memProfiles)(m) }
func (m *Memory) Audit() Audit             { return (*memAudit)(m) }
func (m *Memory) RoleIntents() RoleIntents { return (*memIntents)(m) }

type memProducts Memory

func (m *memProducts) Get(_ context.Context, id string) (model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.products[id]
	if !ok {
		return model.Product{}, model.E(model.CodeNotFound, "product %s not found", id)
	}
	return v.doc, nil
}

func (m *memProducts) GetMulti(_ context.Context, ids []string) (map[string]model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]model.Product, len(ids))
	for _, id := range ids {
		if v, ok := m.products[id]; ok {
			out[id] = v.doc
		}
	}
	return out, nil
}

func (m *memProducts) Put(_ context.Context, p model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.products[p.ID]
	v.doc = p
	v.version++
	m.products[p.ID] = v
	return nil
}

func (m *memProducts) DecrementStock(_ context.Context, id string, qty int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.products[id]
	if !ok {
		return model.E(model.CodeNotFound, "product %s not found", id)
	}
	if v.doc.Stock < qty {
		return model.E(model.CodeInsufficientStock, "product %s has %d, want %d", id, v.doc.Stock, qty)
	}
	v.doc.Stock -= qty
	v.version++
	m.products[id] = v
	return nil
}

func (m *memProducts) IncrementStock(_ context.Context, id string, qty int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.products[id]
	if !ok {
		return model.E(model.CodeNotFound, "product %s not found", id)
	}
	v.doc.Stock += qty
	v.version++
	m.products[id] = v
	return nil
}

type memOrders Memory

func (m *memOrders) Get(_ context.Context, id string) (model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.orders[id]
	if !ok {
		return model.Order{}, model.E(model.CodeNotFound, "order %s not found", id)
	}
	return v.doc, nil
}

func (m *memOrders) Put(_ context.Context, o model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.orders[o.ID]
	v.doc = o
	v.version++
	m.orders[o.ID] = v
	return nil
}

func (m *memOrders) GetReservation(_ context.Context, orderID string) (model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.reservations[orderID]
	if !ok {
		return model.Reservation{}, model.E(model.CodeNotFound, "reservation for order %s not found", orderID)
	}
	return v.doc, nil
}

func (m *memOrders) PutReservation(_ context.Context, r model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.reservations[r.OrderID]
	v.doc = r
	v.version++
	m.reservations[r.OrderID] = v
	return nil
}

type memProfiles Memory

func (m *memProfiles) Get(_ context.Context, uid string) (model.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.profiles[uid]
	if !ok {
		return model.UserProfile{}, model.E(model.CodeNotFound, "profile %s not found", uid)
	}
	return v.doc, nil
}

func (m *memProfiles) Put(_ context.Context, p model.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.profiles[p.UID]
	v.doc = p
	v.version++
	m.profiles[p.UID] = v
	return nil
}

func (m *memProfiles) SetRole(_ context.Context, uid string, role model.Role, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.profiles[uid]
	v.doc.UID = uid
	v.doc.Role = role
	v.doc.UpdatedAt = now
	v.version++
	m.profiles[uid] = v
	return nil
}

type memAudit Memory

func (m *memAudit) Append(_ context.Context, e model.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

func (m *memAudit) List(_ context.Context) ([]model.AuditLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.AuditLogEntry, len(m.audit))
	copy(out, m.audit)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *memAudit) Exists(_ context.Context, action model.AuditAction, orderID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.audit {
		if e.Action == action && e.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

type memIntents Memory

func (m *memIntents) Put(_ context.Context, in model.RoleIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.intents[in.UID]
	v.doc = in
	v.version++
	m.intents[in.UID] = v
	return nil
}

func (m *memIntents) Delete(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.intents, uid)
	return nil
}

func (m *memIntents) Pending(_ context.Context) ([]model.RoleIntent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.RoleIntent, 0, len(m.intents))
	for _, v := range m.intents {
		out = append(out, v.doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}
