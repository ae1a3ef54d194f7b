// Package main is the entry point for the rescore worker.
//
// The worker drains the rescore SQS queue. Each message expands into a set of
// active flights that are re-assessed against current weather and history,
// refreshing the prediction log and tier metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"flightrisk/internal/config"
	"flightrisk/internal/db"
	"flightrisk/internal/external"
	"flightrisk/internal/flights"
	"flightrisk/internal/history"
	"flightrisk/internal/queue"
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

func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("flightrisk rescore worker starting",
		"environment", cfg.Environment,
		"home_airport", cfg.Airport.Home,
		"version", cfg.Build.Version,
		"queue_url", cfg.AWS.RescoreQueueURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database.URL.Unmask(), db.PoolSettings{
		MaxConns:          cfg.Database.MaxConns,
		MinConns:          cfg.Database.MinConns,
		MaxConnLifetime:   cfg.Database.MaxConnLifetime,
		HealthCheckPeriod: cfg.Database.HealthCheckPeriod,
	})
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	runways, err := cfg.Airport.RunwayPlan()
	if err != nil {
		return err
	}
	engine, err := risk.NewEngine(cfg.Airport.Home, risk.DefaultSeasonalBaselines(), runways)
	if err != nil {
		return fmt.Errorf("building risk engine: %w", err)
	}

	coords, err := cfg.Airport.Locations()
	if err != nil {
		return err
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
	collector := weather.NewCollector(metar, meteo, nil, logger)

	activeRepo := history.NewActiveFlightRepo(pool)
	historyRepo := history.NewHistoricalFlightRepo(pool)
	predictionRepo := history.NewPredictionLogRepo(pool)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS configuration: %w", err)
	}
	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	metrics := telemetry.NewPublisher(cwClient, cfg.AWS.MetricNamespace, logger)
	assessor := flights.NewAssessor(engine, collector, historyRepo, predictionRepo, metrics, logger)

	worker := queue.NewWorker(sqsClient, cfg.AWS.RescoreQueueURL, activeRepo, assessor, metrics, logger)
	if err := worker.Run(ctx); err != nil {
		return fmt.Errorf("worker loop: %w", err)
	}

	logger.Info("rescore worker stopped cleanly")
	return nil
}

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
