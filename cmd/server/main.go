package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	persistmem "github.com/roadcall/roadcall/internal/adapter/driven/persistence/memory"
	persistredis "github.com/roadcall/roadcall/internal/adapter/driven/persistence/redis"
	relaymem "github.com/roadcall/roadcall/internal/adapter/driven/relay/memory"
	relayredis "github.com/roadcall/roadcall/internal/adapter/driven/relay/redis"
	handler "github.com/roadcall/roadcall/internal/adapter/driving/http"
	"github.com/roadcall/roadcall/internal/auth"
	"github.com/roadcall/roadcall/internal/config"
	"github.com/roadcall/roadcall/internal/core/port"
	"github.com/roadcall/roadcall/internal/core/service"
)

func main() {
	w := zerolog.ConsoleWriter{Out: os.Stdout}
	l := zerolog.New(w).With().Timestamp().Caller().Logger()

	cfg, err := config.Load()
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to load config")
	}

	var (
		presenceRepo port.PresenceRepository
		callRepo     port.CallRepository
		relay        port.SignalingRelay
		notifier     port.CallNotifier
	)

	switch cfg.StoreBackend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			l.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to reach redis")
		}
		presenceRepo = persistredis.NewPresenceRepository(client, 10*cfg.StalenessWindow)
		callRepo = persistredis.NewCallRepository(client, 12*cfg.CallTTL)
		relay = relayredis.NewRelay(client)
		notifier = relayredis.NewInbox(client)
	default:
		presenceRepo = persistmem.NewPresenceRepository()
		callRepo = persistmem.NewCallRepository()
		relay = relaymem.NewHub()
		notifier = relaymem.NewInbox()
	}

	registry := service.NewRegistry(presenceRepo, cfg.StalenessWindow, cfg.StoreTimeout)
	radar := service.NewRadar(presenceRepo, cfg.StalenessWindow, cfg.StoreTimeout)
	calls := service.NewCallManager(callRepo, registry, notifier, relay, cfg.MaxCallDistanceMeters, cfg.CallTTL, cfg.StoreTimeout)

	tokens := auth.Tokens{Secret: cfg.JWTSecret, TokenTTL: cfg.TokenTTL}
	h := handler.NewHandler(registry, radar, calls, relay, notifier, tokens, cfg.DefaultRadiusMeters, cfg.SignalLossTimeout)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: h.NewRouter(),
	}

	go func() {
		l.Info().Str("addr", cfg.ListenAddr).Str("backend", cfg.StoreBackend).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	l.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}
	l.Info().Msg("Server exited")
}
