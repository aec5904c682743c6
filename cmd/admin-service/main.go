// cmd/admin-service/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aerogate/internal/adminapi"
	"aerogate/pkg/config"
	"aerogate/pkg/credentials"
	"aerogate/pkg/db"
	"aerogate/pkg/logger"
	"aerogate/pkg/manifest"
	"aerogate/pkg/middleware"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	manifests, err := manifest.NewRegistry(cfg.ManifestPath)
	if err != nil {
		log.Fatalw("load manifest", "path", cfg.ManifestPath, "err", err)
	}

	pool := db.MustConnect(cfg, log)
	var creds credentials.Store
	if pool != nil {
		if err := credentials.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("credential schema", "err", err)
		}
		creds = credentials.NewPostgresStore(pool, log)
	} else {
		creds = credentials.NewMemoryStore()
	}

	app := adminapi.NewApp(creds, manifests, cfg.AdminToken, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing("admin-service"))
	r.Handle("/metrics", promhttp.Handler())
	app.Routes(r)

	srv := &http.Server{Addr: cfg.AdminAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("admin API listening", "addr", cfg.AdminAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("listen", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("shutdown", "err", err)
	}
	if pool != nil {
		pool.Close()
	}
	log.Infow("admin API stopped")
}
