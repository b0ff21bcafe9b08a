package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"reminder-server/config"
	"reminder-server/handlers"
	"reminder-server/logx"
	"reminder-server/middleware"
	"reminder-server/scheduler"
	"reminder-server/store"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	manager, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	cfg := manager.Get()

	log := logx.New(logx.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	manager.Watch(func(c *config.AppConfig) {
		logx.SetLevel(c.Log.Level)
		log.Info().Str("level", c.Log.Level).Msg("config reloaded")
	}, func(err error) {
		log.Warn().Err(err).Msg("ignoring invalid config change")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) error {
	repo, err := openRepository(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("initializing %s store: %w", cfg.Store.Type, err)
	}
	defer repo.Close()

	sched := scheduler.New(scheduler.SystemClock(), log)
	hub := handlers.NewHub(log)
	dispatcher := handlers.NewDispatcher(sched, hub, repo, log, handlers.WSOptions{
		MaxMessageSize:    cfg.WebSocket.MaxMessageSize,
		SendBuffer:        cfg.WebSocket.SendBuffer,
		WriteWait:         cfg.WebSocket.WriteWait,
		PongWait:          cfg.WebSocket.PongWait,
		MessagesPerSecond: cfg.WebSocket.MessagesPerSecond,
		Burst:             cfg.WebSocket.Burst,
	})
	dispatcher.SetFiredTemplate(cfg.Messages.Fired)
	defer dispatcher.Close()

	// Stored reminders must be back in the scheduler before any client
	// can talk to us.
	if err := dispatcher.Start(ctx); err != nil {
		return err
	}

	mux := handlers.NewRouter(dispatcher, handlers.RouterOptions{
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	})
	handler := middleware.CORS(middleware.RequestLogger(logx.Component(log, "http"))(mux))

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.Store.Type).
			Msg("reminder server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not covered by Shutdown, so the
	// hub is closed first to let every client see a close frame.
	dispatcher.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openRepository(ctx context.Context, cfg config.StoreConfig) (store.Repository, error) {
	switch strings.ToLower(cfg.Type) {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(cfg.SQLitePath)
	case "redis":
		return store.NewRedisStore(ctx, store.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		})
	default:
		return store.NewFileStore(cfg.Path)
	}
}
