// cmd/gateway-service/main.go
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

	"aerogate/internal/gateway"
	"aerogate/internal/policy"
	"aerogate/internal/proposal"
	"aerogate/internal/router"
	"aerogate/pkg/apiclient"
	"aerogate/pkg/auth"
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

	key, err := auth.LoadPublicKey(cfg.PublicKeyPath)
	if err != nil {
		log.Fatalw("load public key", "path", cfg.PublicKeyPath, "err", err)
	}
	tokens := auth.NewValidator(key, cfg.Issuer, cfg.Audience, cfg.ClockSkew)

	manifests, err := manifest.NewRegistry(cfg.ManifestPath)
	if err != nil {
		log.Fatalw("load manifest", "path", cfg.ManifestPath, "err", err)
	}
	log.Infow("manifest loaded", "path", cfg.ManifestPath, "entities", len(manifests.Current().Entities))

	gate, err := policy.Load(context.Background(), cfg.PolicyPath)
	if err != nil {
		log.Fatalw("load policy", "path", cfg.PolicyPath, "err", err)
	}
	if gate != nil {
		log.Infow("write policy active", "path", cfg.PolicyPath)
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

	rdb := db.MustRedis(cfg, log)
	var props proposal.Store
	if rdb != nil {
		props = proposal.NewRedisStore(rdb, cfg.ProposalTTL)
	} else {
		log.Infow("using in-memory proposal store", "ttl", cfg.ProposalTTL)
		props = proposal.NewMemoryStore(cfg.ProposalTTL)
	}

	svc := router.New(tokens, manifests, creds, props,
		gate, apiclient.New(cfg.DownstreamTimeout), log)
	app := gateway.NewApp(svc, manifests, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing("gateway-service"))
	r.Handle("/metrics", promhttp.Handler())
	app.Routes(r)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("gateway listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
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
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Infow("gateway stopped")
}
