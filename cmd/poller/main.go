// Package main is the entry point for the data poller.
//
// The poller keeps the active flight board synced from the schedule provider,
// retires finished flights into the historical record collection with the
// weather observed at both ends, enqueues rescore batches when the board
// changes, and writes the daily history archive.
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

	"flightrisk/internal/archive"
	"flightrisk/internal/config"
	"flightrisk/internal/db"
	"flightrisk/internal/external"
	"flightrisk/internal/flights"
	"flightrisk/internal/history"
	"flightrisk/internal/queue"
	"flightrisk/internal/scheduler"
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
	logger.Info("flightrisk poller starting",
		"environment", cfg.Environment,
		"home_airport", cfg.Airport.Home,
		"version", cfg.Build.Version,
		"sync_interval", cfg.Poller.SyncInterval,
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

	httpClient := &http.Client{Timeout: cfg.Providers.Timeout}
	retry := external.DefaultRetryPolicy()

	coords, err := cfg.Airport.Locations()
	if err != nil {
		return err
	}
	locations := make(map[string]weather.Location, len(coords))
	for code, c := range coords {
		locations[code] = weather.Location{Lat: c.Lat, Lon: c.Lon}
	}

	metar := weather.NewMETARClient(cfg.Providers.METARBaseURL,
		external.NewClient(httpClient, "metar", cfg.Providers.UserAgent, retry), logger)
	meteo := weather.NewOpenMeteoClient(cfg.Providers.OpenMeteoBaseURL,
		external.NewClient(httpClient, "open-meteo", cfg.Providers.UserAgent, retry), locations, logger)
	collector := weather.NewCollector(metar, meteo, nil, logger)

	schedule := flights.NewScheduleClient(
		cfg.Providers.ScheduleBaseURL,
		cfg.Providers.ScheduleAPIKey.Unmask(),
		cfg.Providers.ScheduleAPIHost,
		cfg.Airport.Home,
		cfg.Airport.Routes,
		external.NewClient(httpClient, "schedule", cfg.Providers.UserAgent, retry),
		logger,
	)

	var backup *flights.StatusClient
	if cfg.Providers.StatusAPIKey.Unmask() != "" {
		backup = flights.NewStatusClient(cfg.Providers.StatusBaseURL, cfg.Providers.StatusAPIKey.Unmask(),
			external.NewClient(httpClient, "status", cfg.Providers.UserAgent, retry), logger)
	}

	activeRepo := history.NewActiveFlightRepo(pool)
	historyRepo := history.NewHistoricalFlightRepo(pool)

	var syncer *flights.Syncer
	if backup != nil {
		syncer = flights.NewSyncer(schedule, collector, activeRepo, historyRepo, backup, cfg.Airport.Home, nil, logger)
	} else {
		syncer = flights.NewSyncer(schedule, collector, activeRepo, historyRepo, nil, cfg.Airport.Home, nil, logger)
	}

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

	dispatcher := queue.NewRescoreDispatcher(sqsClient, cfg.AWS.RescoreQueueURL, nil, logger)
	metrics := telemetry.NewPublisher(cwClient, cfg.AWS.MetricNamespace, logger)
	exporter := archive.NewExporter(historyRepo, cfg.Archive.Dir, cfg.Archive.Retention, nil, logger)

	runner := scheduler.NewRunner(scheduler.Config{
		SyncInterval:   cfg.Poller.SyncInterval,
		BoardLookback:  cfg.Poller.BoardLookback,
		BoardLookahead: cfg.Poller.BoardLookahead,
	}, syncer, dispatcher, exporter, metrics, nil, logger)

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("poller loop: %w", err)
	}

	logger.Info("poller stopped cleanly")
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
