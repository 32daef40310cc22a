package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/remedyops/remedy/internal/api"
	"github.com/remedyops/remedy/internal/config"
	"github.com/remedyops/remedy/internal/logging"
	"github.com/remedyops/remedy/internal/websocket"
)

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "remedy",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub()
	go hub.Run()

	rt, err := buildRuntime(ctx, cfg, hub)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer rt.store.Close()

	router := api.NewRouter(api.Config{
		Store:     rt.store,
		Lifecycle: rt.lifecycle,
		Learning:  rt.learning,
		Timeline:  rt.timeline,
		OnCall:    rt.oncall,
		Notify:    rt.notify,
		Monitor:   rt.monitor,
		Hub:       hub,
		Version:   Version,
	})

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("version", Version).Msg("Remedy listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown did not complete cleanly")
	}
}
