// Package main boots the order event pipeline.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/greenstem/order-pipeline/internal/analytics"
	"github.com/greenstem/order-pipeline/internal/audit"
	"github.com/greenstem/order-pipeline/internal/config"
	"github.com/greenstem/order-pipeline/internal/dispatch"
	"github.com/greenstem/order-pipeline/internal/dispatch/kafkabridge"
	httpapi "github.com/greenstem/order-pipeline/internal/http"
	"github.com/greenstem/order-pipeline/internal/identity"
	"github.com/greenstem/order-pipeline/internal/inventory"
	"github.com/greenstem/order-pipeline/internal/metrics"
	"github.com/greenstem/order-pipeline/internal/model"
	"github.com/greenstem/order-pipeline/internal/obs"
	"github.com/greenstem/order-pipeline/internal/roles"
	"github.com/greenstem/order-pipeline/internal/store"
	"github.com/greenstem/order-pipeline/internal/store/mongostore"
)

func main() {
	cfg := config.Load()
	obs.InitLogger()
	obs.Logger.Info("service_starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st store.Store
	if cfg.MongoURI != "" {
		ms, client, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			obs.Logger.Fatal("mongo_connect_failed", zap.Error(err))
		}
		defer func() {
			_ = client.Disconnect(context.Background())
		}()
		st = ms
		obs.Logger.Info("store_ready", zap.String("backend", "mongo"), zap.String("db", cfg.MongoDB))
	} else {
		st = store.NewMemory()
		obs.Logger.Info("store_ready", zap.String("backend", "memory"))
	}

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	idp := identity.NewMemory()
	auditor := audit.New(st.Audit())
	roleSvc := roles.New(idp, st, auditor, cfg.AuditRoleChange)
	processor := inventory.New(st, met)

	disp := dispatch.New(cfg, met)
	disp.Register(dispatch.KindOrderCreated, "inventory", func(ctx context.Context, ev dispatch.Event) error {
		return processor.HandleOrderCreated(ctx, ev.Order)
	})
	disp.Register(dispatch.KindOrderCreated, "audit", func(ctx context.Context, ev dispatch.Event) error {
		return auditor.Record(ctx, model.AuditOrderCreated, ev.Order.UserID, ev.Order.ID)
	})
	disp.Register(dispatch.KindAuditCreated, "audit_log", func(ctx context.Context, ev dispatch.Event) error {
		return auditor.HandleAuditCreated(ctx, ev.Entry)
	})
	disp.Start(ctx)

	// Replay any role assignment that got a claim written but no profile.
	if err := roleSvc.ResumePending(ctx); err != nil {
		obs.Logger.Warn("role_intent_resume_failed", zap.Error(err))
	}

	sched, err := analytics.New(cfg.ScheduleTZ)
	if err != nil {
		obs.Logger.Fatal("scheduler_init_failed", zap.Error(err))
	}
	sched.Start(ctx)

	kc := kafkabridge.NewClient(cfg.KafkaBrokers)
	if kc.Enabled() {
		bridge := kafkabridge.NewBridge(kc.NewReader(cfg.KafkaOrderTopic, cfg.KafkaGroupID), disp)
		go func() {
			defer func() { _ = bridge.Close() }()
			if err := bridge.Run(ctx); err != nil {
				obs.Logger.Error("kafka_bridge_stopped", zap.Error(err))
			}
		}()
		obs.Logger.Info("kafka_bridge_started", zap.String("topic", cfg.KafkaOrderTopic))
	}

	app := httpapi.NewApp(cfg, st, idp, roleSvc, disp)
	app.Met = met
	mux := httpapi.NewRouter(app, reg)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Logger.Error("http_server_error", zap.Error(err))
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", zap.String("signal", s.String()))

	app.StartShutdown()
	obs.Logger.Info("shutdown_drain_begin", zap.Int("backlog_size", disp.BacklogSize()))

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	if drained := disp.DrainUntil(ctxDrain); !drained {
		obs.Logger.Warn("shutdown_drain_timeout")
	} else {
		obs.Logger.Info("shutdown_drain_complete")
	}

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", zap.Error(err))
	}
	disp.Stop()
	obs.Logger.Info("service_stopped")
}
