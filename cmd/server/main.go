package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smartscale/kiosk/internal/auth"
	"github.com/smartscale/kiosk/internal/catalog"
	"github.com/smartscale/kiosk/internal/config"
	"github.com/smartscale/kiosk/internal/engine"
	"github.com/smartscale/kiosk/internal/feed"
	"github.com/smartscale/kiosk/internal/metrics"
	"github.com/smartscale/kiosk/internal/server"
	"github.com/smartscale/kiosk/internal/storage/sqlite"
	"github.com/smartscale/kiosk/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	logging.Setup()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("storage initialized", "database", cfg.Database.Path)

	ctx := context.Background()
	if err := store.SeedProducts(ctx, catalog.DefaultProducts()); err != nil {
		slog.Warn("failed to seed product catalog", "error", err)
	}

	// The resolver works from the persisted catalog; on a read failure
	// it starts empty and synthesizes every product.
	products, err := store.ListProducts(ctx)
	if err != nil {
		slog.Warn("failed to load product catalog", "error", err)
	}
	resolver := catalog.NewResolver(products, catalog.DefaultSynthesis)

	registry := prometheus.NewRegistry()
	kioskMetrics := metrics.New(registry)

	hub := server.NewHub()
	go hub.Run()
	defer hub.Close()

	source := feed.NewWebSocketFeed(cfg.Bridge.URL)
	eng := engine.New(engine.Config{
		Timeout:  cfg.DetectionTimeout(),
		Sentinel: cfg.Detection.SentinelLabel,
		OnChange: hub.BroadcastState,
	}, source, store, resolver, kioskMetrics)
	eng.Run()
	defer eng.Close()
	slog.Info("detection engine running",
		"bridge", cfg.Bridge.URL,
		"timeout", cfg.DetectionTimeout(),
	)

	pinAuth := auth.NewPINAuthenticator(store)
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.TokenTTL())
	bootstrapClerk(ctx, pinAuth)

	srv := server.New(eng, store, pinAuth, jwtManager, hub, registry)
	if err := srv.Start(cfg.Server.Addr); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// bootstrapClerk creates an initial operator account from
// KIOSK_BOOTSTRAP_CLERK / KIOSK_BOOTSTRAP_PIN so a fresh install can
// log in. Existing accounts are left alone.
func bootstrapClerk(ctx context.Context, pinAuth *auth.PINAuthenticator) {
	name := os.Getenv("KIOSK_BOOTSTRAP_CLERK")
	pin := os.Getenv("KIOSK_BOOTSTRAP_PIN")
	if name == "" || pin == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := pinAuth.Register(ctx, name, pin); err != nil {
		if errors.Is(err, auth.ErrNameExists) {
			return
		}
		slog.Warn("failed to bootstrap clerk", "name", name, "error", err)
		return
	}
	slog.Info("bootstrap clerk created", "name", name)
}
