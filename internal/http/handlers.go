package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greenstem/order-pipeline/internal/config"
	"github.com/greenstem/order-pipeline/internal/dispatch"
	"github.com/greenstem/order-pipeline/internal/identity"
	"github.com/greenstem/order-pipeline/internal/metrics"
	"github.com/greenstem/order-pipeline/internal/model"
	"github.com/greenstem/order-pipeline/internal/obs"
	"github.com/greenstem/order-pipeline/internal/roles"
	"github.com/greenstem/order-pipeline/internal/store"
)

// App holds the collaborators behind the HTTP surface.
type App struct {
	Cfg        config.Config
	Store      store.Store
	Identity   identity.Provider
	Roles      *roles.Service
	Dispatcher *dispatch.Dispatcher
	Met        *metrics.Pipeline

	closing atomic.Bool
	started time.Time
}

type setRoleRequest struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
}

type orderAck struct {
	Status      string `json:"status"`
	RequestID   string `json:"request_id"`
	OrderID     string `json:"order_id"`
	ReceivedAt  string `json:"received_at"`
	QueueDepth  int    `json:"queue_depth"`
	BacklogSize int    `json:"backlog_size"`
}

func NewApp(cfg config.Config, st store.Store, idp identity.Provider, rs *roles.Service, d *dispatch.Dispatcher) *App {
	return &App{Cfg: cfg, Store: st, Identity: idp, Roles: rs, Dispatcher: d, started: time.Now()}
}

func (a *App) StartShutdown() {
	a.closing.Store(true)
	a.Dispatcher.CloseIntake()
}

// caller resolves the authenticated caller from the gateway-supplied
// header against the identity provider's claims.
func (a *App) caller(r *http.Request) (roles.Caller, bool) {
	uid := strings.TrimSpace(r.Header.Get("X-Caller-Uid"))
	if uid == "" {
		return roles.Caller{}, false
	}
	role, err := a.Identity.Claims(r.Context(), uid)
	if err != nil {
		return roles.Caller{}, false
	}
	return roles.Caller{UID: uid, Role: role}, true
}

func (a *App) setRoleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, model.CodeInvalidArgument, "method not allowed")
		return
	}
	caller, ok := a.caller(r)
	if !ok {
		WriteJSONError(w, http.StatusForbidden, model.CodePermissionDenied, "only admins can set user roles")
		return
	}
	var req setRoleRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, model.CodeInvalidArgument, err.Error())
		return
	}
	res, err := a.Roles.SetRole(r.Context(), caller, req.UID, req.Role)
	if err != nil {
		WriteError(w, err, "Failed to update user role")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
	obs.Logger.Info("role_assigned",
		zap.String("request_id", RequestIDFromContext(r.Context())),
		zap.String("caller_uid", caller.UID),
		zap.String("target_uid", req.UID),
		zap.String("role", req.Role),
	)
}

// postOrderHandler is the ingress used by the external checkout flow: it
// persists the order and enqueues the order-created event.
func (a *App) postOrderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, model.CodeInvalidArgument, "method not allowed")
		return
	}
	if a.closing.Load() || a.Dispatcher.IsShuttingDown() {
		WriteJSONError(w, http.StatusServiceUnavailable, model.CodeInternal, "shutting down")
		return
	}
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, model.CodeInvalidArgument, "expected application/json")
		return
	}
	var order model.Order
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&order); err != nil {
		WriteJSONError(w, http.StatusBadRequest, model.CodeInvalidArgument, err.Error())
		return
	}
	if len(order.Items) == 0 {
		WriteJSONError(w, http.StatusBadRequest, model.CodeInvalidArgument, "items are required")
		return
	}
	for _, it := range order.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			WriteJSONError(w, http.StatusBadRequest, model.CodeInvalidArgument, "each item needs a product_id and a positive quantity")
			return
		}
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = model.OrderStatusPending
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if err := a.Store.Orders().Put(r.Context(), order); err != nil {
		WriteError(w, err, "failed to accept order")
		return
	}
	if !a.Dispatcher.Publish(dispatch.Event{Kind: dispatch.KindOrderCreated, Order: order}) {
		WriteJSONError(w, http.StatusServiceUnavailable, model.CodeInternal, "shutting down")
		return
	}
	ac := orderAck{
		Status:      "accepted",
		RequestID:   RequestIDFromContext(r.Context()),
		OrderID:     order.ID,
		ReceivedAt:  time.Now().UTC().Format(time.RFC3339),
		QueueDepth:  a.Dispatcher.QueueDepth(),
		BacklogSize: a.Dispatcher.BacklogSize(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(ac)
	obs.Logger.Info("order_accepted",
		zap.String("request_id", ac.RequestID),
		zap.String("order_id", ac.OrderID),
		zap.Int("queue_depth", ac.QueueDepth),
		zap.Int("backlog_size", ac.BacklogSize),
	)
}

func (a *App) getProductHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, model.CodeInvalidArgument, "method not allowed")
		return
	}
	prefix := "/products/"
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || !strings.HasPrefix(r.URL.Path, prefix) {
		WriteJSONError(w, http.StatusNotFound, model.CodeNotFound, "not found")
		return
	}
	p, err := a.Store.Products().Get(r.Context(), id)
	if err != nil {
		WriteError(w, err, "failed to load product")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}

func (a *App) getAuditHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, model.CodeInvalidArgument, "method not allowed")
		return
	}
	entries, err := a.Store.Audit().List(r.Context())
	if err != nil {
		WriteError(w, err, "failed to load audit log")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

func (a *App) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (a *App) queueStatsHandler(w http.ResponseWriter, _ *http.Request) {
	enq, proc, backlog, depth := a.Dispatcher.QueueMetrics()
	m := map[string]any{
		"events_enqueued":  enq,
		"events_processed": proc,
		"backlog_size":     backlog,
		"queue_depth":      depth,
		"uptime_sec":       time.Since(a.started).Seconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m)
}
