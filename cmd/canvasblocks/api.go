package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/canvasblocks/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger   *slog.Logger
	service  web.RunService
	health   web.HealthChecker
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, service web.RunService, health web.HealthChecker) *API {
	return &API{
		logger:   logger,
		service:  service,
		health:   health,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.service, a.health, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("canvasblocks API")
	})

	runs := app.Group("/runs")
	runs.Post("/", handlers.CreateRun)
	runs.Get("/", handlers.GetRuns)
	runs.Get("/:id", handlers.GetRun)

	app.Get("/workflows", handlers.GetWorkflow)
	app.Get("/scripts", handlers.GetScripts)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	a.logger.Info("Starting API server", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}
