// Package roles implements the privileged role assignment operation that
// mutates both the identity provider claims and the profile document.
package roles

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/greenstem/order-pipeline/internal/audit"
	"github.com/greenstem/order-pipeline/internal/identity"
	"github.com/greenstem/order-pipeline/internal/model"
	"github.com/greenstem/order-pipeline/internal/obs"
	"github.com/greenstem/order-pipeline/internal/store"
)

// Caller is the authenticated identity attached to a role assignment
// request by the gateway.
type Caller struct {
	UID  string
	Role model.Role
}

// Result is returned to the caller after both stores were updated.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Service linearizes role writes per target uid and applies them as a
// two-step saga: claims first, then profile, with a persisted intent so a
// failed profile write can be resumed.
type Service struct {
	idp     identity.Provider
	st      store.Store
	auditor *audit.Logger

	auditRoleChanges bool
	now              func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a Service. auditor may be nil when audit-on-role-change
// is disabled.
func New(idp identity.Provider, st store.Store, auditor *audit.Logger, auditRoleChanges bool) *Service {
	return &Service{
		idp:              idp,
		st:               st,
		auditor:          auditor,
		auditRoleChanges: auditRoleChanges,
		now:              time.Now,
		locks:            make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockFor(uid string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[uid]
	if !ok {
		l = &sync.Mutex{}
		s.locks[uid] = l
	}
	return l
}

// SetRole assigns role to targetUID. Preconditions fail before any write:
// the caller must hold the Admin claim and the arguments must name a
// known role and a non-empty uid.
func (s *Service) SetRole(ctx context.Context, caller Caller, targetUID, role string) (Result, error) {
	if caller.Role != model.RoleAdmin {
		return Result{}, model.E(model.CodePermissionDenied, "only admins can set user roles")
	}
	if targetUID == "" || role == "" {
		return Result{}, model.E(model.CodeInvalidArgument, "uid and role are required")
	}
	parsed, ok := model.ParseRole(role)
	if !ok {
		return Result{}, model.E(model.CodeInvalidArgument, "unrecognized role %q", role)
	}

	lock := s.lockFor(targetUID)
	lock.Lock()
	defer lock.Unlock()

	intent := model.RoleIntent{UID: targetUID, Role: parsed, CreatedAt: s.now().UTC()}
	if err := s.st.RoleIntents().Put(ctx, intent); err != nil {
		return Result{}, model.Wrap(model.CodeInternal, err, "record role intent")
	}

	// Claims go first so the profile never advances ahead of claim state.
	if err := s.idp.SetClaims(ctx, targetUID, parsed); err != nil {
		_ = s.st.RoleIntents().Delete(ctx, targetUID)
		return Result{}, model.Wrap(model.CodeInternal, err, "set identity claims")
	}

	if err := s.applyProfile(ctx, intent); err != nil {
		// Claims are already updated; the intent stays pending so a
		// retry can repeat the profile write alone.
		obs.Logger.Error("role_profile_write_failed",
			zap.String("uid", targetUID),
			zap.String("role", role),
			zap.Error(err),
		)
		return Result{}, model.Wrap(model.CodeInternal, err, "update profile role")
	}

	if s.auditRoleChanges && s.auditor != nil {
		if err := s.auditor.Record(ctx, model.AuditRoleChanged, targetUID, ""); err != nil {
			obs.Logger.Warn("role_audit_failed", zap.String("uid", targetUID), zap.Error(err))
		}
	}

	return Result{Success: true, Message: fmt.Sprintf("User role updated to %s", parsed)}, nil
}

// applyProfile is the resumable step (b): a pure overwrite of the profile
// role, cleared from the intent ledger on success.
func (s *Service) applyProfile(ctx context.Context, intent model.RoleIntent) error {
	if err := s.st.Profiles().SetRole(ctx, intent.UID, intent.Role, s.now().UTC()); err != nil {
		return err
	}
	return s.st.RoleIntents().Delete(ctx, intent.UID)
}

// ResumePending replays the profile write for every pending intent. Safe
// to call on a schedule or at startup; each replay is an overwrite.
func (s *Service) ResumePending(ctx context.Context) error {
	pending, err := s.st.RoleIntents().Pending(ctx)
	if err != nil {
		return model.Wrap(model.CodeInternal, err, "list pending role intents")
	}
	for _, intent := range pending {
		lock := s.lockFor(intent.UID)
		lock.Lock()
		err := s.applyProfile(ctx, intent)
		lock.Unlock()
		if err != nil {
			return model.Wrap(model.CodeInternal, err, "resume role intent")
		}
		obs.Logger.Info("role_intent_resumed", zap.String("uid", intent.UID), zap.String("role", string(intent.Role)))
	}
	return nil
}
