package server

import (
	"time"

	"github.com/Bigdaddy1990/paw-control/internal/archive"
	"github.com/Bigdaddy1990/paw-control/internal/auth"
	"github.com/Bigdaddy1990/paw-control/internal/config"
	"github.com/Bigdaddy1990/paw-control/internal/registry"
	"github.com/Bigdaddy1990/paw-control/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Stream   *stream.Hub
	Registry *registry.Registry

	archiveSink *archive.Sink
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	sinks := []registry.Sink{s.Stream}
	var history *archive.Service
	if db != nil {
		history = archive.NewService(db)
		s.archiveSink = archive.NewSink(history)
		sinks = append(sinks, s.archiveSink)
	}
	s.Registry = registry.New(engineTuning(cfg), sinks...)

	registerRoutes(s, history)
	return s
}

// Close stops the per-dog dispatchers and flushes pending archive
// writes. Call after the HTTP listener has shut down.
func (s *Server) Close() {
	s.Registry.Close()
	if s.archiveSink != nil {
		s.archiveSink.Close()
	}
}

func registerRoutes(s *Server, history *archive.Service) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.Cfg.DeviceKeyHash))
	registry.RegisterRoutes(s.App.Group("/dogs"), s.Registry, jwtMiddleware)
	if history != nil {
		archive.RegisterRoutes(s.App.Group("/history"), history)
	}
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

func engineTuning(cfg config.Config) registry.Tuning {
	t := registry.DefaultTuning()
	if cfg.GPSMaxAccuracyM > 0 {
		t.Walk.MaxAccuracyM = cfg.GPSMaxAccuracyM
	}
	if cfg.ZoneConfirmFixes > 0 {
		t.Walk.ConfirmFixes = cfg.ZoneConfirmFixes
	}
	if cfg.ZoneConfirmSeconds > 0 {
		t.Walk.ConfirmWindow = time.Duration(cfg.ZoneConfirmSeconds) * time.Second
	}
	if cfg.CaloriesPerKgKm > 0 {
		t.Walk.CaloriesPerKgKm = cfg.CaloriesPerKgKm
	}
	if cfg.FeedingGraceMin > 0 {
		t.Status.FeedingGrace = time.Duration(cfg.FeedingGraceMin) * time.Minute
	}
	if cfg.WalkCutoffHour > 0 {
		t.Status.WalkCutoffHour = cfg.WalkCutoffHour
	}
	if cfg.ReminderSeconds > 0 {
		t.ReminderInterval = time.Duration(cfg.ReminderSeconds) * time.Second
	}
	return t
}
