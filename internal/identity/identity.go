// Package identity defines the identity-provider port holding per-user
// custom claims, consulted at authorization time independently of profile
// documents.
package identity

import (
	"context"
	"sync"

	"github.com/greenstem/order-pipeline/internal/model"
)

// Provider is the custom-claims surface of the identity provider.
type Provider interface {
	SetClaims(ctx context.Context, uid string, role model.Role) error
	Claims(ctx context.Context, uid string) (model.Role, error)
}

// Memory is the in-process provider used by tests and local runs. The
// production provider lives outside this service.
type Memory struct {
	mu    sync.RWMutex
	roles map[string]model.Role
}

// NewMemory constructs an empty Memory provider.
func NewMemory() *Memory {
	return &Memory{roles: make(map[string]model.Role)}
}

func (m *Memory) SetClaims(_ context.Context, uid string, role model.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[uid] = role
	return nil
}

func (m *Memory) Claims(_ context.Context, uid string) (model.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.roles[uid]
	if !ok {
		return "", model.E(model.CodeNotFound, "no claims for uid %s", uid)
	}
	return r, nil
}
