// Package config defines the global configuration structure for the flight
// risk service. Configuration is loaded once at process startup and is
// immutable thereafter; code and configuration stay strictly separated.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format aborts startup immediately
// (fail fast).
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"flightrisk/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the flight risk service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"flightrisk"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server    ServerConfig
	Database  DatabaseConfig
	Airport   AirportConfig
	Providers ProviderConfig
	AWS       AWSConfig
	Poller    PollerConfig
	Archive   ArchiveConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	// Resolved from SSM or Env
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AirportConfig describes the home airport and the geography the service
// reasons about: which routes to track, the runway headings used for
// crosswind calculation, and the coordinates the forecast provider needs.
type AirportConfig struct {
	// Home is the ICAO code of the airport this deployment serves.
	Home string `envconfig:"HOME_AIRPORT" validate:"required,len=4,alphanum"`

	// Routes limits the board to legs touching these remote airports.
	// Empty tracks everything the provider returns.
	Routes []string `envconfig:"TARGET_ROUTES"`

	// RunwaysJSON maps airport code to runway magnetic headings in degrees.
	// Example: {"KPUW": [50, 230], "KSEA": [160, 340]}
	RunwaysJSON string `envconfig:"RUNWAY_HEADINGS_JSON" validate:"required,json"`

	// LocationsJSON maps airport code to coordinates for the forecast
	// provider. Example: {"KPUW": {"lat": 46.7439, "lon": -117.1095}}
	LocationsJSON string `envconfig:"AIRPORT_LOCATIONS_JSON" validate:"required,json"`
}

// RunwayPlan parses RunwaysJSON into the engine's runway plan.
func (c AirportConfig) RunwayPlan() (types.RunwayPlan, error) {
	var plan types.RunwayPlan
	if err := json.Unmarshal([]byte(c.RunwaysJSON), &plan); err != nil {
		return nil, fmt.Errorf("parsing RUNWAY_HEADINGS_JSON: %w", err)
	}
	return plan, nil
}

// Coordinate is one airport position from LocationsJSON.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Locations parses LocationsJSON into a map of airport code to coordinates.
func (c AirportConfig) Locations() (map[string]Coordinate, error) {
	var locs map[string]Coordinate
	if err := json.Unmarshal([]byte(c.LocationsJSON), &locs); err != nil {
		return nil, fmt.Errorf("parsing AIRPORT_LOCATIONS_JSON: %w", err)
	}
	return locs, nil
}

// ProviderConfig holds the upstream data provider endpoints and credentials.
// Base URLs default to the real services and are overridden in tests and
// local development.
type ProviderConfig struct {
	METARBaseURL     string `envconfig:"METAR_BASE_URL" default:"https://aviationweather.gov/api/data/metar"`
	OpenMeteoBaseURL string `envconfig:"OPEN_METEO_BASE_URL" default:"https://api.open-meteo.com/v1/forecast"`

	ScheduleBaseURL string       `envconfig:"SCHEDULE_BASE_URL" default:"https://aerodatabox.p.rapidapi.com/flights/airports/icao"`
	ScheduleAPIKey  SecretString `envconfig:"SCHEDULE_API_KEY" validate:"required"`
	ScheduleAPIHost string       `envconfig:"SCHEDULE_API_HOST" default:"aerodatabox.p.rapidapi.com"`

	// The backup status provider is optional; leave the key empty to
	// disable final-status verification.
	StatusBaseURL string       `envconfig:"STATUS_BASE_URL" default:"https://api.aviationstack.com/v1/flights"`
	StatusAPIKey  SecretString `envconfig:"STATUS_API_KEY"`

	UserAgent string        `envconfig:"PROVIDER_USER_AGENT" default:"flightrisk/1.0"`
	Timeout   time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"15s"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region          string `envconfig:"AWS_REGION" default:"us-east-1"`
	RescoreQueueURL string `envconfig:"SQS_RESCORE_QUEUE" validate:"required,url"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"FlightRisk"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// PollerConfig holds the sync cadence and board window for the poller.
type PollerConfig struct {
	SyncInterval   time.Duration `envconfig:"POLL_SYNC_INTERVAL" default:"10m"`
	BoardLookback  time.Duration `envconfig:"POLL_BOARD_LOOKBACK" default:"6h"`
	BoardLookahead time.Duration `envconfig:"POLL_BOARD_LOOKAHEAD" default:"24h"`
}

// ArchiveConfig holds cold-storage export settings for the historical record
// collection.
type ArchiveConfig struct {
	Dir       string        `envconfig:"ARCHIVE_DIR" default:"/var/lib/flightrisk/archive"`
	Retention time.Duration `envconfig:"ARCHIVE_RETENTION" default:"8760h"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
