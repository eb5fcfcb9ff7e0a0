// Package main runs the account lifecycle gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/tunnelgate/pkg/accounts"
	"github.com/dukex/tunnelgate/pkg/auth"
	"github.com/dukex/tunnelgate/pkg/cmd"
	"github.com/dukex/tunnelgate/pkg/inventory"
	"github.com/dukex/tunnelgate/pkg/log"
	"github.com/dukex/tunnelgate/pkg/otelhelper"
	"github.com/dukex/tunnelgate/pkg/services"
	"github.com/dukex/tunnelgate/pkg/supervisor"
	"github.com/dukex/tunnelgate/pkg/web"
	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"
)

const (
	serviceName = "tunnelgate"
	defaultPort = 5888
)

func main() {
	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Expose account lifecycle binaries over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "secret-file",
				Usage:   "File holding the shared auth secret, re-read on every request",
				Value:   auth.DefaultSecretFile,
				Sources: cli.EnvVars("SECRET_FILE"),
			},
			&cli.StringFlag{
				Name:    "secret-redis-url",
				Usage:   "Read the shared auth secret from Redis instead of the secret file",
				Sources: cli.EnvVars("SECRET_REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "secret-redis-key",
				Usage:   "Redis key holding the shared auth secret",
				Value:   auth.DefaultRedisKey,
				Sources: cli.EnvVars("SECRET_REDIS_KEY"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Deadline for each account binary",
				Value:   supervisor.DefaultDeadline,
				Sources: cli.EnvVars("BINARY_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "xray-bin-dir",
				Usage:   "Directory of the multi-protocol binaries (empty resolves them through PATH)",
				Sources: cli.EnvVars("XRAY_BIN_DIR"),
			},
			&cli.StringFlag{
				Name:    "zivpn-bin-dir",
				Usage:   "Directory of the ZiVPN binaries",
				Value:   accounts.DefaultZiVPNBinDir,
				Sources: cli.EnvVars("ZIVPN_BIN_DIR"),
			},
			&cli.IntFlag{
				Name:    "max-concurrent",
				Usage:   "Maximum concurrently running binaries, 0 for unbounded",
				Value:   0,
				Sources: cli.EnvVars("MAX_CONCURRENT"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Invocation event bus (none, gochannel, kafka)",
				Value:   cmd.EventBusNone,
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "inventory-schedule",
				Usage:   "Cron schedule for probing the account binaries",
				Value:   inventory.DefaultSchedule,
				Sources: cli.EnvVars("INVENTORY_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces over OTLP/HTTP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "service-name",
				Usage:   "Service name reported by /health and traces",
				Value:   serviceName,
				Sources: cli.EnvVars("SERVICE_NAME"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")
	name := command.String("service-name")

	logger.InfoContext(ctx, "Initializing gateway", "service", name)

	tracing := otelhelper.NoopTracing()

	if command.Bool("tracing") {
		t, err := otelhelper.NewTracing(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}

		tracing = t
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down tracing", "error", err)
		}
	}()

	secrets, closeSecrets, err := cmd.NewSecretProvider(logger,
		command.String("secret-file"), command.String("secret-redis-url"), command.String("secret-redis-key"))
	if err != nil {
		return err
	}

	defer func() {
		if err := closeSecrets(); err != nil {
			logger.Error("Failed to close secret provider", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(ctx, command.String("event-bus"), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}
	}()

	builder := accounts.NewBuilder(accounts.Config{
		MultiProtocolBinDir: command.String("xray-bin-dir"),
		ZiVPNBinDir:         command.String("zivpn-bin-dir"),
	}, validator.New(validator.WithRequiredStructEnabled()))

	binaries := inventory.New(builder.Executables(), logger)
	if err := binaries.Start(command.String("inventory-schedule")); err != nil {
		return err
	}
	defer binaries.Stop()

	lifecycle := services.NewLifecycle(
		supervisor.New(logger),
		command.Duration("timeout"),
		logger,
		services.WithMaxConcurrent(int64(command.Int("max-concurrent"))),
		services.WithTracer(tracing.Tracer),
		services.WithPublisher(eventBus),
	)

	port := command.Int("port")
	handlers := web.NewAPIHandlers(builder, lifecycle, binaries, web.Identity{Service: name, Port: port}, logger)

	api := NewAPI(logger, handlers, auth.NewGate(secrets, logger))

	logger.InfoContext(ctx, "Listening", "port", port)

	return api.Start(ctx, port)
}
