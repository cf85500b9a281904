package server

import (
	"log/slog"

	"github.com/Zchasse63/voice-fit-sub006/internal/auth"
	"github.com/Zchasse63/voice-fit-sub006/internal/config"
	"github.com/Zchasse63/voice-fit-sub006/internal/db"
	"github.com/Zchasse63/voice-fit-sub006/internal/readiness"
	"github.com/Zchasse63/voice-fit-sub006/internal/run"
	"github.com/Zchasse63/voice-fit-sub006/internal/stream"
	"github.com/Zchasse63/voice-fit-sub006/internal/telemetry"
	"github.com/Zchasse63/voice-fit-sub006/internal/tracking"
	"github.com/Zchasse63/voice-fit-sub006/internal/workout"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

// Deps are the external resources the server runs against. A nil DB disables
// workout storage and run history; live runs still work in memory.
type Deps struct {
	DB        db.Querier
	Redis     *redis.Client
	Readiness readiness.Service
	Reporter  telemetry.Reporter
	Logger    *slog.Logger
}

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	Runs   *run.Manager
	Stream *stream.Hub
	Tokens *auth.Tokens

	log *slog.Logger
}

func NewServer(cfg config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Reporter == nil {
		deps.Reporter = telemetry.Nop{}
	}

	app := fiber.New(fiber.Config{ErrorHandler: telemetry.ErrorHandler(deps.Logger, deps.Reporter)})
	app.Use(recover.New())
	app.Use(logger.New())

	hub := stream.NewHub(deps.Redis, cfg.StreamMinInterval, deps.Logger)

	var store run.RunStore
	if deps.DB != nil {
		store = tracking.NewRepository(deps.DB)
	} else {
		deps.Logger.Warn("no database configured, runs will not be persisted")
	}

	s := &Server{
		App:    app,
		Cfg:    cfg,
		Runs:   run.NewManager(cfg.Tracking, hub, store, deps.Logger),
		Stream: hub,
		Tokens: auth.NewTokens(cfg.JWTSecret),
		log:    deps.Logger,
	}

	registerRoutes(s, deps)
	return s
}

func registerRoutes(s *Server, deps Deps) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Tokens)

	var workouts workout.Storage
	if deps.DB != nil {
		workouts = workout.NewCachedStorage(workout.NewPostgresStorage(deps.DB), deps.Redis, s.Cfg.WorkoutCacheTTL, deps.Logger)
		workout.RegisterRoutes(s.App.Group("/workouts"), workouts, jwtMiddleware)
	}

	runs := s.App.Group("/runs")
	run.RegisterRoutes(runs, run.API{
		Runs:             s.Runs,
		Readiness:        readiness.NewEvaluator(deps.Readiness, deps.Logger, deps.Reporter),
		Workouts:         workouts,
		ReadinessTimeout: s.Cfg.ReadinessTimeout,
	}, jwtMiddleware)
	if deps.DB != nil {
		tracking.RegisterRoutes(runs, tracking.NewRepository(deps.DB), jwtMiddleware)
	}

	stream.RegisterRoutes(s.App.Group("/stream", jwtMiddleware), s.Stream)
}

// Close releases the stream subscription.
func (s *Server) Close() error {
	return s.Stream.Close()
}
