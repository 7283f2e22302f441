// Command linear-mcp exposes Linear issue operations as MCP tools over stdio
// or streamable HTTP.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"linear-mcp/internal/linear"
	"linear-mcp/internal/mcp"
	"linear-mcp/internal/server"
	"linear-mcp/internal/session"
	"linear-mcp/internal/telemetry"
	"linear-mcp/internal/tools"
	"linear-mcp/internal/tools/issues"
)

const (
	serverName = "linear-mcp"
	version    = "0.1.0"
)

const instructions = "Tools for the Linear issue tracker. Issues are addressed by identifiers " +
	"such as SRE-152. Use list_teams to discover team keys and workflow state names before " +
	"filtering or changing status."

func main() {
	// stdout carries the stdio transport, so logs go to stderr
	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().
		Timestamp().
		Logger()

	cfg, err := loadConfig(os.Args[1:], os.LookupEnv, os.Stderr)
	if err != nil {
		if errors.Is(err, errHelp) {
			return
		}
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	level, _ := zerolog.ParseLevel(cfg.Server.LogLevel)
	logger = logger.Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Shut down")
}

func run(ctx context.Context, cfg *config, logger zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(reg)

	client, err := linear.NewClient(linear.Config{
		APIURL:    cfg.APIURL,
		APIKey:    cfg.APIKey,
		UserAgent: serverName + "/" + version,
		Timeout:   cfg.Timeout,
		Observer:  metrics,
	}, logger)
	if err != nil {
		return err
	}

	if cfg.VerifyCredential {
		viewer, err := client.Viewer(ctx)
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("kind", string(linear.KindOf(err))).
				Msg("Linear rejected the credential")
		}
		logger.Info().Str("user", viewer.Name).Msg("Credential verified")
	}

	registry := tools.NewRegistry()
	issues.Register(registry, client)
	for _, def := range registry.Definitions() {
		logger.Debug().Str("tool", def.Name).Msg("Registered tool")
	}

	handler := mcp.NewHandler(
		telemetry.NewToolRegistryWrapper(registry, metrics),
		mcp.Implementation{Name: serverName, Version: version},
		instructions,
		logger,
	)

	logger.Info().
		Str("transport", cfg.Transport).
		Str("version", version).
		Int("tools", len(registry.Definitions())).
		Msg("Starting linear-mcp")

	if cfg.Transport == transportStdio {
		return mcp.NewStdioTransport(handler, logger).Serve(ctx, os.Stdin, os.Stdout)
	}
	return serveHTTP(ctx, cfg, handler, metrics, reg, logger)
}

func serveHTTP(ctx context.Context, cfg *config, handler *mcp.Handler, metrics *telemetry.Metrics, reg *prometheus.Registry, logger zerolog.Logger) error {
	store, err := server.OpenSessionStore(cfg.Server, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	manager := session.NewManager(store, session.ManagerConfig{
		Timeout:  cfg.Server.SessionTimeout,
		Observer: metrics,
	}, logger)

	cleanup := session.NewCleanupService(manager, cfg.Server.CleanupInterval, logger)
	cleanup.Start(ctx)
	defer cleanup.Stop()

	go telemetry.NewSystemMetricsCollector(metrics, logger, 15*time.Second).
		WithSessions(manager).
		Run(ctx)

	router := server.New(cfg.Server, server.Deps{
		Handler:  handler,
		Sessions: manager,
		Metrics:  metrics,
		Gatherer: reg,
		Version:  version,
		Logger:   logger,
	})
	return server.ListenAndServe(ctx, cfg.Server, router, logger)
}
