package bootstrap

import (
	"context"
	"os"
	"strings"

	"tracker_server/adapter/in/http"
	"tracker_server/config"
	"tracker_server/core/port/out"
	"tracker_server/infra/middleware"
	"tracker_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog"
)

// InitLogger configures the package logger from config.
func InitLogger(cfg *config.Config, service string) {
	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: service,
		Pretty:  cfg.IsDevelopment(),
	})
}

func newZerolog(cfg *config.Config, component string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	var l zerolog.Logger
	if cfg.IsDevelopment() {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		l = zerolog.New(os.Stdout)
	}
	return l.Level(level).With().Timestamp().Str("component", component).Logger()
}

// NewAPI builds the Fiber app over shared dependencies.
func NewAPI(cfg *config.Config, deps *Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: !cfg.IsDevelopment(),

		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 1 * 1024 * 1024,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:  "GET,POST,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders: "X-Request-ID",
	}))

	checks := map[string]http.HealthChecker{
		"postgres": deps.DB,
		"redis":    nil,
		"mongodb":  nil,
	}
	if deps.Redis != nil {
		checks["redis"] = http.PingFunc(func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() })
	}
	if deps.Mongo != nil {
		checks["mongodb"] = http.PingFunc(func(ctx context.Context) error { return deps.Mongo.Ping(ctx, nil) })
	}
	http.NewHealthHandler(checks).Register(app)

	// A nil *Producer must not become a non-nil interface.
	var publisher out.SyncJobPublisher
	if deps.Producer != nil {
		publisher = deps.Producer
	}

	var costs http.CostReporter
	if deps.LLM != nil {
		costs = deps.LLM
	}

	api := app.Group("/api/v1")
	http.NewSyncHandler(deps.Sync, publisher).Register(api)
	http.NewConnectionHandler(deps.Credentials).Register(api)
	http.NewExtractionHandler(deps.Extractor, costs).Register(api)

	return app
}
