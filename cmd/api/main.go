package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"erp_access/internal/config"
	"erp_access/internal/db"
	httpserver "erp_access/internal/http"
	"erp_access/internal/logging"
	"erp_access/internal/metrics"
	"erp_access/internal/rbac"
	"erp_access/internal/seed"
	"erp_access/internal/store"
)

func main() {
	configFile := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	gdb, err := db.Connect(cfg.DBDriver, cfg.DSN, log)
	if err != nil {
		log.WithError(err).Fatal("database")
	}
	if err := db.AutoMigrate(gdb); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	m := metrics.New(nil)
	st := store.New(gdb, log)

	opts := []rbac.Option{
		rbac.WithLogger(log),
		rbac.WithMetrics(m),
		rbac.WithTracerProvider(otel.GetTracerProvider()),
		rbac.WithRuleCache(cfg.RuleCacheSize, cfg.RuleCacheTTL),
	}
	if cfg.StrictDomains {
		opts = append(opts, rbac.WithStrictDomains())
	}
	eng := rbac.New(st.Sources(), opts...)
	st.OnChange(eng.Invalidate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := seed.FirstSetup(ctx, st, log, cfg.SeedDir)
	if err != nil {
		log.WithError(err).Fatal("seed")
	}
	log.WithField("seed", sum.String()).Info("permissions installed")

	srv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.AppPort),
		Handler: httpserver.NewRouter(httpserver.Deps{
			DB:        gdb,
			Store:     st,
			Engine:    eng,
			Metrics:   m,
			Log:       log,
			JWTSecret: cfg.JWTSecret,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", srv.Addr).Info("server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server")
	}
}
