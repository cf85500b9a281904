package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Zchasse63/voice-fit-sub006/internal/config"
	"github.com/Zchasse63/voice-fit-sub006/internal/db"
	"github.com/Zchasse63/voice-fit-sub006/internal/readiness"
	"github.com/Zchasse63/voice-fit-sub006/internal/server"
	"github.com/Zchasse63/voice-fit-sub006/internal/telemetry"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	slog.SetDefault(newLogger(cfg))

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		slog.Error("postgres connection failed, continuing without persistence", "error", err)
	}

	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, signals, nil); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}

// newLogger writes JSON in deployed environments and text locally.
func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Environment == "" || strings.EqualFold(cfg.Environment, "development") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// buildDeps picks the readiness backend and error reporter for cfg. A nil
// pool leaves Deps.DB unset so the server runs without persistence.
func buildDeps(cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger) (server.Deps, *telemetry.SentryReporter, error) {
	reporter, err := telemetry.New(telemetry.Config{DSN: cfg.SentryDSN, Environment: cfg.Environment}, logger)
	if err != nil {
		return server.Deps{}, nil, err
	}

	deps := server.Deps{
		Redis:     rdb,
		Readiness: readiness.NoopService{},
		Reporter:  reporter,
		Logger:    logger,
	}
	if pg != nil {
		deps.DB = pg
	}
	if cfg.ReadinessURL != "" {
		deps.Readiness = readiness.NewHTTPService(cfg.ReadinessURL, cfg.ReadinessTimeout)
	}
	return deps, reporter, nil
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	logger := slog.Default()

	deps, reporter, err := buildDeps(cfg, pg, rdb, logger)
	if err != nil {
		return err
	}
	defer reporter.Flush(2 * time.Second)

	srv := server.NewServer(cfg, deps)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	shutdownErr := shutdownFn(srv.App, shutdownCtx)
	if err := srv.Close(); err != nil {
		logger.Warn("close stream hub", "error", err)
	}
	if shutdownErr != nil {
		return shutdownErr
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
