package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	config "github.com/Keoroanthony/orders-api/configs"
	"github.com/Keoroanthony/orders-api/internal/auth"
	"github.com/Keoroanthony/orders-api/internal/db"
	"github.com/Keoroanthony/orders-api/internal/handlers"
	"github.com/Keoroanthony/orders-api/internal/idempotency"
	"github.com/Keoroanthony/orders-api/internal/logging"
	"github.com/Keoroanthony/orders-api/internal/notifier"
	"github.com/Keoroanthony/orders-api/internal/orders"
)

const serviceName = "orders-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logging.Init(cfg.Log.Level, cfg.Log.Format)

	if err := config.LoadSecrets(ctx, &cfg); err != nil {
		slog.Error("failed to load secrets", "error", err)
		os.Exit(1)
	}

	conn, err := db.Open(cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	store := db.NewStore(conn)

	// ── notifications ──
	var alerter notifier.Alerter
	if cfg.Slack.Enabled() {
		alerter = notifier.NewSlack(cfg.Slack)
	}

	atClient := notifier.NewAfricasTalkingClient(cfg.AfricaTalking, nil)
	orderSMS := notifier.WithAlerts(atClient, alerter)
	testSMS := atClient.WithFailurePolicy(notifier.ReportFailure)
	if !atClient.Configured() {
		slog.Warn("africa's talking credentials not set, sms will be simulated")
	}

	var workflowOpts []orders.Option
	if cfg.Email.Enabled() {
		mailer, err := notifier.NewSESMailer(ctx, cfg.Email)
		if err != nil {
			slog.Error("failed to set up ses mailer", "error", err)
			os.Exit(1)
		}
		workflowOpts = append(workflowOpts, orders.WithReceipts(mailer))
	}
	workflow := orders.NewWorkflow(store, orderSMS, workflowOpts...)

	// ── idempotency ──
	var cache idempotency.Cache
	if cfg.Redis.Addr != "" {
		cache = idempotency.NewRedisCache(cfg.Redis.Addr, serviceName)
	} else {
		slog.Info("REDIS_ADDR not set, idempotency keys are kept in memory")
		cache = idempotency.NewMemoryCache(serviceName)
	}
	replays := idempotency.NewStore(cache, "create-order", cfg.Redis.IdempotencyTTL)

	gate := auth.NewGate(cfg.OIDC, store)
	h := handlers.New(store, workflow, testSMS, handlers.WithIdempotency(replays))

	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestID(), logging.AccessLog())

	// ── session store ──
	sessionStore := cookie.NewStore([]byte(cfg.Session.Secret))
	r.Use(sessions.Sessions(cfg.Session.Name, sessionStore))

	handlers.Register(r, h, gate)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	notifier.Announce(ctx, alerter, fmt.Sprintf("%s started on %s", serviceName, cfg.Server.Addr))

	<-ctx.Done()
	slog.Info("shutting down")
	notifier.Announce(context.Background(), alerter, fmt.Sprintf("%s shutting down", serviceName))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
