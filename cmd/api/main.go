// Package main is the entry point for the flight risk API server.
//
// It loads configuration, connects PostgreSQL, wires the weather and schedule
// provider clients around the risk engine, and serves the board, risk, stats,
// and weather endpoints on the core chassis. Graceful shutdown is handled via
// OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"flightrisk/internal/api/handlers"
	"flightrisk/internal/config"
	"flightrisk/internal/core"
	"flightrisk/internal/db"
	"flightrisk/internal/external"
	"flightrisk/internal/flights"
	"flightrisk/internal/history"
	"flightrisk/internal/risk"
	"flightrisk/internal/telemetry"
	"flightrisk/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("flightrisk API starting",
		"environment", cfg.Environment,
		"home_airport", cfg.Airport.Home,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.Database.URL.Unmask(), db.PoolSettings{
		MaxConns:          cfg.Database.MaxConns,
		MinConns:          cfg.Database.MinConns,
		MaxConnLifetime:   cfg.Database.MaxConnLifetime,
		HealthCheckPeriod: cfg.Database.HealthCheckPeriod,
	})
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}

	runways, err := cfg.Airport.RunwayPlan()
	if err != nil {
		return err
	}
	engine, err := risk.NewEngine(cfg.Airport.Home, risk.DefaultSeasonalBaselines(), runways)
	if err != nil {
		return fmt.Errorf("building risk engine: %w", err)
	}

	collector, err := buildCollector(cfg, logger)
	if err != nil {
		return err
	}

	historyRepo := history.NewHistoricalFlightRepo(pool)
	activeRepo := history.NewActiveFlightRepo(pool)
	predictionRepo := history.NewPredictionLogRepo(pool)

	metrics, err := buildMetrics(ctx, cfg, logger)
	if err != nil {
		return err
	}

	assessor := flights.NewAssessor(engine, collector, historyRepo, predictionRepo, metrics, logger)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = metrics
	srv.OnShutdown(func() error {
		pool.Close()
		return nil
	})
	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
		ProbeName: "database",
		Fn:        pool.Ping,
	})

	airports := append([]string{cfg.Airport.Home}, cfg.Airport.Routes...)

	flightHandler := handlers.NewFlightHandler(activeRepo, assessor, nil, logger)
	statsHandler := handlers.NewStatsHandler(historyRepo, predictionRepo, nil, logger)
	weatherHandler := handlers.NewWeatherHandler(collector, airports, nil, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		flightHandler.RegisterRoutes,
		statsHandler.RegisterRoutes,
		weatherHandler.RegisterRoutes,
	)
	srv.MountRoutes()

	return serveHTTP(srv, cfg, logger)
}

// buildCollector wires the hybrid weather source: METAR observations for the
// recent past, Open-Meteo forecasts for future departure times.
func buildCollector(cfg *config.Config, logger *slog.Logger) (*weather.Collector, error) {
	coords, err := cfg.Airport.Locations()
	if err != nil {
		return nil, err
	}
	locations := make(map[string]weather.Location, len(coords))
	for code, c := range coords {
		locations[code] = weather.Location{Lat: c.Lat, Lon: c.Lon}
	}

	httpClient := &http.Client{Timeout: cfg.Providers.Timeout}
	retry := external.DefaultRetryPolicy()

	metar := weather.NewMETARClient(cfg.Providers.METARBaseURL,
		external.NewClient(httpClient, "metar", cfg.Providers.UserAgent, retry), logger)
	meteo := weather.NewOpenMeteoClient(cfg.Providers.OpenMeteoBaseURL,
		external.NewClient(httpClient, "open-meteo", cfg.Providers.UserAgent, retry), locations, logger)

	return weather.NewCollector(metar, meteo, nil, logger), nil
}

// buildMetrics creates the CloudWatch publisher. EndpointURL points the
// client at LocalStack during local development.
func buildMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*telemetry.Publisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	return telemetry.NewPublisher(client, cfg.AWS.MetricNamespace, logger), nil
}

// serveHTTP runs the HTTP server until a shutdown signal arrives, then drains
// in-flight requests and closes server resources.
func serveHTTP(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
