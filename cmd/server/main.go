package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caixa-pos/api/internal/config"
	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/handler"
	"github.com/caixa-pos/api/internal/jobs"
	"github.com/caixa-pos/api/internal/logger"
	"github.com/caixa-pos/api/internal/router"
	"github.com/caixa-pos/api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	l := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("unable to ping database")
	}
	log.Info().Msg("connected to database")

	queries := database.New(pool)

	hub := ws.NewHub()
	go hub.Run(ctx)
	notifier := handler.NewViewNotifier(hub)

	scheduler := jobs.NewScheduler(l)
	watchdog := jobs.NewSessionWatchdog(queries, notifier, cfg.SessionMaxAge)
	if err := scheduler.AddJob(cfg.WatchdogSchedule, watchdog); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.WatchdogSchedule).Msg("register watchdog")
	}
	scheduler.Start()

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(router.Deps{
			Config:   cfg,
			Pool:     pool,
			Queries:  queries,
			Hub:      hub,
			Notifier: notifier,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	scheduler.Stop()
	log.Info().Msg("server stopped")
}
