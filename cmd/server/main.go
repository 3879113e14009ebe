package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TimurManjosov/triagem/internal/api"
	"github.com/TimurManjosov/triagem/internal/audit"
	"github.com/TimurManjosov/triagem/internal/auth"
	"github.com/TimurManjosov/triagem/internal/catalog"
	"github.com/TimurManjosov/triagem/internal/config"
	"github.com/TimurManjosov/triagem/internal/demanda"
	"github.com/TimurManjosov/triagem/internal/document"
	"github.com/TimurManjosov/triagem/internal/eligibility"
	"github.com/TimurManjosov/triagem/internal/intake"
	"github.com/TimurManjosov/triagem/internal/logging"
	"github.com/TimurManjosov/triagem/internal/session"
	"github.com/TimurManjosov/triagem/internal/store"
	"github.com/TimurManjosov/triagem/internal/telemetry"
	"github.com/TimurManjosov/triagem/internal/triage"
	"github.com/TimurManjosov/triagem/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "triagem: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	telemetry.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.CatalogFile != "" {
		c, err := catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		catalog.Update(catalog.Build(c))
	}
	snap := catalog.Load()
	log.Info("catalog loaded",
		zap.Int("defensores", len(snap.Catalog.Defensores)),
		zap.Int("servidores", len(snap.Catalog.Servidores)),
		zap.String("etag", snap.ETag))

	dsn := cfg.DatabaseDSN
	if cfg.StoreType == "sqlite" {
		dsn = cfg.SQLitePath
	}
	st, err := store.NewStore(ctx, cfg.StoreType, dsn)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()
	log.Info("store ready", zap.String("type", cfg.StoreType))

	sessions, err := session.New(ctx, cfg.SessionStore, cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	defer sessions.Close()

	authn, err := auth.NewAuthenticator(cfg.AdminAPIKey, cfg.ClientAPIKey, cfg.APIKeyHashes)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	auditSvc := audit.NewService(
		audit.MultiSink{audit.NewStoreSink(st), audit.NewLogSink(log)},
		nil, nil, nil, log.Named("audit"), 1000,
	)
	defer auditSvc.Close()

	dispatcher := webhook.NewDispatcher(webhook.NewEndpoints(cfg.WebhookURLs, cfg.WebhookSecret), log)
	dispatcher.Start()
	defer dispatcher.Close()

	ev, err := eligibility.NewEvaluator(cfg.MinimumWage)
	if err != nil {
		return fmt.Errorf("eligibility: %w", err)
	}
	gen, err := document.NewGenerator(cfg.OfficeName, cfg.OfficeCity)
	if err != nil {
		return err
	}

	demandas := demanda.NewService(st, auditSvc, dispatcher)
	srvAPI := api.NewServer(api.Options{
		Store:          st,
		Auth:           authn,
		Demandas:       demandas,
		Intake:         intake.NewService(sessions, demandas, auditSvc),
		Triage:         triage.NewService(ev, st, auditSvc, dispatcher),
		Documents:      gen,
		Audit:          auditSvc,
		Logger:         log,
		RateLimitPerIP: cfg.RateLimitPerIP,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srvAPI.Router(),
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	if cfg.CatalogFile != "" {
		g.Go(func() error { return catalog.Watch(gctx, cfg.CatalogFile, log.Named("catalog")) })
	}
	if mem, ok := sessions.(*session.MemoryStore); ok {
		g.Go(func() error {
			mem.Run(gctx, time.Minute)
			return nil
		})
	}

	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(srv.Shutdown(shutCtx), metricsSrv.Shutdown(shutCtx))
	})

	err = g.Wait()
	log.Info("stopped")
	return err
}
