package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/tunnelgate/pkg/auth"
	"github.com/dukex/tunnelgate/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

const shutdownTimeout = 25 * time.Second

type API struct {
	logger   *slog.Logger
	handlers *web.APIHandlers
	gate     *auth.Gate
}

func NewAPI(logger *slog.Logger, handlers *web.APIHandlers, gate *auth.Gate) *API {
	return &API{
		logger:   logger,
		handlers: handlers,
		gate:     gate,
	}
}

func (a *API) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      serviceName,
		ErrorHandler: web.ErrorHandler(a.logger),
	})

	app.Use(recoverer.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	a.handlers.Register(app, a.gate)

	return app
}

// Start serves until ctx is cancelled, then waits for in-flight requests, and
// therefore their child processes, to finish.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			a.logger.Error("Failed to shut down API", "error", err)
		}
	}()

	return app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}
