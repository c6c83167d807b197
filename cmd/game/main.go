package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pefman/rose-manor/internal/config"
	"github.com/pefman/rose-manor/internal/engine"
	"github.com/pefman/rose-manor/internal/explore"
	"github.com/pefman/rose-manor/internal/logging"
	"github.com/pefman/rose-manor/internal/match"
	"github.com/pefman/rose-manor/internal/server"
	"github.com/pefman/rose-manor/internal/stats"
	"github.com/pefman/rose-manor/internal/store"
	"github.com/pefman/rose-manor/internal/store/memory"
	"github.com/pefman/rose-manor/internal/store/sqlite"
)

// Build metadata injected via -ldflags at build time
var (
	buildVersion = "dev"
	buildTime    = ""
)

func openStore(cfg config.Config) (store.Store, error) {
	if cfg.DBPath == "" {
		return memory.New(), nil
	}
	s, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// exploreRandom seeds exploration apart from combat so the two streams stay
// independent under a fixed ROSE_SEED.
func exploreRandom(seed int64) engine.Random {
	if seed != 0 {
		return engine.NewRandom(seed - 1)
	}
	s, err := engine.NewSeed()
	if err != nil {
		s = time.Now().UnixNano()
	}
	return engine.NewRandom(s)
}

func logEvent(ev engine.Event) {
	logging.Info("combat event", logging.Fields{
		"session_id": ev.SessionID,
		"player":     ev.PlayerID,
		"round":      ev.Round,
		"state":      ev.State.String(),
		"message":    ev.Message,
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		logging.Fatal("open store failed", err, logging.Fields{"db_path": cfg.DBPath})
	}

	tracker := stats.NewTracker(nil)
	hub := server.NewHub(cfg.AllowedOrigin)
	matches := match.New(st, match.Config{
		Sink:          engine.Sinks{hub, engine.SinkFunc(logEvent)},
		OpponentDelay: cfg.OpponentDelay,
		Seed:          cfg.Seed,
		Stats:         tracker,
	})
	explorer := explore.New(st, exploreRandom(cfg.Seed), nil)
	srv := server.New(st, matches, explorer, tracker, hub, server.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		AdminToken:    cfg.AdminToken,
		ActionPoints:  cfg.DailyActionPoints,
		Version:       buildVersion,
		BuildTime:     buildTime,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.ListenPort(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		storeKind := "memory"
		if cfg.DBPath != "" {
			storeKind = "sqlite"
		}
		logging.Info("rose manor listening", logging.Fields{
			"addr":    httpSrv.Addr,
			"store":   storeKind,
			"version": buildVersion,
		})
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server failed", err, nil)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Stop taking requests before the sweep so nothing starts a combat after
	// it; hub.Close waits for the disconnect forfeits before the store closes.
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error("shutdown failed", err, nil)
	}
	if err := matches.ForfeitAll(shutdownCtx); err != nil {
		logging.Error("forfeit on shutdown failed", err, nil)
	}
	hub.Close()
	if err := st.Close(); err != nil {
		logging.Error("close store failed", err, nil)
	}
	logging.Info("rose manor stopped", nil)
}
