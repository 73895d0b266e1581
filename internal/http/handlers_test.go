package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/greenstem/order-pipeline/internal/audit"
	"github.com/greenstem/order-pipeline/internal/config"
	"github.com/greenstem/order-pipeline/internal/dispatch"
	"github.com/greenstem/order-pipeline/internal/identity"
	"github.com/greenstem/order-pipeline/internal/inventory"
	"github.com/greenstem/order-pipeline/internal/model"
	"github.com/greenstem/order-pipeline/internal/roles"
	"github.com/greenstem/order-pipeline/internal/store"
)

type testEnv struct {
	app  *App
	mux  http.Handler
	st   *store.Memory
	idp  *identity.Memory
	disp *dispatch.Dispatcher
}

func setupApp(t *testing.T) (*testEnv, func()) {
	t.Helper()
	cfg := config.Config{
		DispatchWorkers:     2,
		DispatchMaxAttempts: 3,
		DispatchBackoff:     10 * time.Millisecond,
	}
	st := store.NewMemory()
	idp := identity.NewMemory()
	auditor := audit.New(st.Audit())
	roleSvc := roles.New(idp, st, auditor, true)
	processor := inventory.New(st, nil)

	disp := dispatch.New(cfg, nil)
	disp.Register(dispatch.KindOrderCreated, "inventory", func(ctx context.Context, ev dispatch.Event) error {
		return processor.HandleOrderCreated(ctx, ev.Order)
	})
	disp.Register(dispatch.KindOrderCreated, "audit", func(ctx context.Context, ev dispatch.Event) error {
		return auditor.Record(ctx, model.AuditOrderCreated, ev.Order.UserID, ev.Order.ID)
	})
	ctx, cancel := context.WithCancel(context.Background())
	disp.Start(ctx)

	app := NewApp(cfg, st, idp, roleSvc, disp)
	mux := NewRouter(app, nil)
	env := &testEnv{app: app, mux: mux, st: st, idp: idp, disp: disp}
	cleanup := func() {
		cancel()
		disp.Stop()
	}
	return env, cleanup
}

func (e *testEnv) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if !e.disp.DrainUntil(ctx) {
		t.Fatalf("drain timeout")
	}
}

func postJSON(mux http.Handler, path, body, callerUID string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	if callerUID != "" {
		r.Header.Set("X-Caller-Uid", callerUID)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func TestSetRoleRequiresCaller(t *testing.T) {
	env, cleanup := setupApp(t)
	defer cleanup()
	w := postJSON(env.mux, "/roles", `{"uid":"target","role":"Moderator"}`, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	var e struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Code != "permission-denied" {
		t.Fatalf("expected permission-denied, got %q", e.Code)
	}
}

func TestSetRoleDeniedForCustomerClaim(t *testing.T) {
	env, cleanup := setupApp(t)
	defer cleanup()
	ctx := context.Background()
	_ = env.idp.SetClaims(ctx, "cust", model.RoleCustomer)
	_ = env.idp.SetClaims(ctx, "target", model.RoleCustomer)

	w := postJSON(env.mux, "/roles", `{"uid":"target","role":"Admin"}`, "cust")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	// Target role unchanged.
	role, err := env.idp.Claims(ctx, "target")
	if err != nil || role != model.RoleCustomer {
		t.Fatalf("target role changed: %v %v", role, err)
	}
}

func TestSetRoleAdminHappyPath(t *testing.T) {
	env, cleanup := setupApp(t)
	defer cleanup()
	ctx := context.Background()
	_ = env.idp.SetClaims(ctx, "admin", model.RoleAdmin)

	w := postJSON(env.mux, "/roles", `{"uid":"target","role":"Finance"}`, "admin")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res roles.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success || !strings.Contains(res.Message, "Finance") {
		t.Fatalf("unexpected result: %+v", res)
	}

	claim, _ := env.idp.Claims(ctx, "target")
	profile, err := env.st.Profiles().Get(ctx, "target")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if claim != model.RoleFinance || profile.Role != model.RoleFinance {
		t.Fatalf("stores did not converge: claim=%v profile=%v", claim, profile.Role)
	}
}

func TestSetRoleValidationErrors(t *testing.T) {
	env, cleanup := setupApp(t)
	defer cleanup()
	_ = env.idp.SetClaims(context.Background(), "admin", model.RoleAdmin)

	cases := []struct {
		name, body string
	}{
		{"missing_uid", `{"role":"Moderator"}`},
		{"missing_role", `{"uid":"target"}`},
		{"unknown_role", `{"uid":"target","role":"Wizard"}`},
		{"malformed_json", `{"uid":"target",`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(env.mux, "/roles", tc.body, "admin")
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestPostOrderProcessedEndToEnd(t *testing.T) {
	env, cleanup := setupApp(t)
	defer cleanup()
	ctx := context.Background()
	_ = env.st.Products().Put(ctx, model.Product{ID: "productA", Stock: 10})
	_ = env.st.Products().Put(ctx, model.Product{ID: "productB", Stock: 2})

	body := `{"id":"o1","user_id":"u1","items":[{"product_id":"productA","quantity":3},{"product_id":"productB","quantity":5}]}`
	w := postJSON(env.mux, "/orders", body, "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var ac orderAck
	if err := json.Unmarshal(w.Body.Bytes(), &ac); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ac.OrderID != "o1" || ac.Status != "accepted" {
		t.Fatalf("unexpected ack: %+v", ac)
	}

	env.drain(t)

	pa, _ := env.st.Products().Get(ctx, "productA")
	pb, _ := env.st.Products().Get(ctx, "productB")
	if pa.Stock != 7 || pb.Stock != 2 {
		t.Fatalf("unexpected stock: a=%d b=%d", pa.Stock, pb.Stock)
	}
	entries, _ := env.st.Audit().List(ctx)
	found := 0
	for _, e := range entries {
		if e.Action == model.AuditOrderCreated && e.OrderID == "o1" {
			found++
		}
	}
	if found != 1 {
		t.Fatalf("expected one order_created entry, got %d", found)
	}
	res, err := env.st.Orders().GetReservation(ctx, "o1")
	if err != nil {
		t.Fatalf("reservation: %v", err)
	}
	if res.Items[1].Fulfilled || res.Items[1].Reason != string(model.CodeInsufficientStock) {
		t.Fatalf("expected productB recorded insufficient: %+v", res.Items[1])
	}
}

func TestPostOrderValidationErrors(t *testing.T) {
	env, cleanup := setupApp(t)
	defer cleanup()

	cases := []struct {
		name, body string
		want       int
	}{
		{"no_items", `{"id":"o1","user_id":"u1"}`, http.StatusBadRequest},
		{"zero_quantity", `{"id":"o1","user_id":"u1","items":[{"product_id":"a","quantity":0}]}`, http.StatusBadRequest},
		{"missing_product", `{"id":"o1","user_id":"u1","items":[{"quantity":1}]}`, http.StatusBadRequest},
		{"malformed_json", `{"id":"o1",`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(env.mux, "/orders", tc.body, "")
			if w.Code != tc.want {
				t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
			}
		})
	}
}

func TestPostOrderRejectedDuringShutdown(t *testing.T) {
	env, cleanup := setupApp(t)
	defer cleanup()
	env.app.StartShutdown()
	body := `{"id":"o1","user_id":"u1","items":[{"product_id":"a","quantity":1}]}`
	w := postJSON(env.mux, "/orders", body, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestGetProduct(t *testing.T) {
	env, cleanup := setupApp(t)
	defer cleanup()
	_ = env.st.Products().Put(context.Background(), model.Product{ID: "p1", Title: "Monstera", Stock: 4})

	r := httptest.NewRequest(http.MethodGet, "/products/p1", nil)
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var p model.Product
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ID != "p1" || p.Stock != 4 {
		t.Fatalf("unexpected product: %+v", p)
	}

	r = httptest.NewRequest(http.MethodGet, "/products/missing", nil)
	w = httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetAudit(t *testing.T) {
	env, cleanup := setupApp(t)
	defer cleanup()
	_ = env.st.Audit().Append(context.Background(), model.AuditLogEntry{ID: "e1", Action: model.AuditRoleChanged, UserID: "u1", Timestamp: time.Now()})

	r := httptest.NewRequest(http.MethodGet, "/audit", nil)
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var entries []model.AuditLogEntry
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "e1" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestHealthz(t *testing.T) {
	env, cleanup := setupApp(t)
	defer cleanup()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	env, cleanup := setupApp(t)
	defer cleanup()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set("X-Request-Id", "req-123")
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	if got := w.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}

func TestOpenAPIServed(t *testing.T) {
	env, cleanup := setupApp(t)
	defer cleanup()
	r := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("openapi:")) {
		t.Fatalf("expected openapi content")
	}
}

func TestDocsServed(t *testing.T) {
	env, cleanup := setupApp(t)
	defer cleanup()
	r := httptest.NewRequest(http.MethodGet, "/docs", nil)
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "swagger-ui") {
		t.Fatalf("expected swagger-ui in docs body")
	}
}
