package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// ValidationResult is the outcome of checking an operator-supplied value.
type ValidationResult struct {
	Valid   bool
	Message string
}

// DatabaseConnector abstracts the connection probe so tests do not need a
// live database. The implementation must close the connection before
// returning.
type DatabaseConnector interface {
	Connect(ctx context.Context, dsn string) error
}

// PgxConnector probes the database with a real pgx connection.
type PgxConnector struct{}

func (c *PgxConnector) Connect(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

// Validator holds the dependencies the input validators need.
type Validator struct {
	dbConn DatabaseConnector
}

// NewValidator creates a Validator with a real database connector.
func NewValidator() *Validator {
	return &Validator{dbConn: &PgxConnector{}}
}

// NewValidatorWithDeps injects the connector, for tests.
func NewValidatorWithDeps(dbConn DatabaseConnector) *Validator {
	return &Validator{dbConn: dbConn}
}

// validateTimeout bounds the live connection probe.
const validateTimeout = 15 * time.Second

var icaoPattern = regexp.MustCompile(`^[A-Z0-9]{4}$`)

// ValidateDatabaseURL checks the scheme and then probes the database with a
// real connection to catch bad credentials before they land in SSM.
func (v *Validator) ValidateDatabaseURL(ctx context.Context, input string) ValidationResult {
	input = strings.TrimSpace(input)
	if input == "" {
		return ValidationResult{Valid: false, Message: "database URL must not be empty"}
	}

	parsed, err := url.Parse(input)
	if err != nil {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("invalid URL format: %v", err)}
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("expected postgres:// or postgresql:// scheme, got %q", parsed.Scheme)}
	}

	probeCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	if err := v.dbConn.Connect(probeCtx, input); err != nil {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("connection probe failed: %v", err)}
	}

	return ValidationResult{Valid: true, Message: "database reachable"}
}

// ValidateAPIKey accepts any reasonably long single-token credential.
func (v *Validator) ValidateAPIKey(_ context.Context, input string) ValidationResult {
	input = strings.TrimSpace(input)
	if len(input) < 16 {
		return ValidationResult{Valid: false, Message: "API key looks too short (expected at least 16 characters)"}
	}
	if strings.ContainsAny(input, " \t") {
		return ValidationResult{Valid: false, Message: "API key must not contain whitespace"}
	}
	return ValidationResult{Valid: true, Message: "key format accepted"}
}

// ValidateICAO checks a single 4-character ICAO airport code.
func (v *Validator) ValidateICAO(_ context.Context, input string) ValidationResult {
	input = strings.TrimSpace(input)
	if !icaoPattern.MatchString(input) {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("%q is not a 4-character ICAO code (e.g. KPUW)", input)}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("airport %s accepted", input)}
}

// ValidateRouteList checks a comma-separated list of ICAO codes.
func (v *Validator) ValidateRouteList(ctx context.Context, input string) ValidationResult {
	input = strings.TrimSpace(input)
	if input == "" {
		return ValidationResult{Valid: false, Message: "route list must not be empty"}
	}
	parts := strings.Split(input, ",")
	for _, p := range parts {
		if res := v.ValidateICAO(ctx, p); !res.Valid {
			return res
		}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("%d route airports accepted", len(parts))}
}

// ValidateRunwayJSON checks the runway heading map consumed by the crosswind
// calculation: airport code to a list of magnetic headings in degrees.
func (v *Validator) ValidateRunwayJSON(ctx context.Context, input string) ValidationResult {
	var plan map[string][]float64
	if err := json.Unmarshal([]byte(input), &plan); err != nil {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if len(plan) == 0 {
		return ValidationResult{Valid: false, Message: "runway map must name at least one airport"}
	}
	for code, headings := range plan {
		if res := v.ValidateICAO(ctx, code); !res.Valid {
			return res
		}
		if len(headings) == 0 {
			return ValidationResult{Valid: false, Message: fmt.Sprintf("airport %s has no runway headings", code)}
		}
		for _, h := range headings {
			if h < 0 || h > 360 {
				return ValidationResult{Valid: false, Message: fmt.Sprintf("heading %.0f for %s is outside 0-360", h, code)}
			}
		}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("runway headings for %d airports accepted", len(plan))}
}

// ValidateLocationsJSON checks the airport coordinate map the forecast
// provider needs.
func (v *Validator) ValidateLocationsJSON(ctx context.Context, input string) ValidationResult {
	var locs map[string]struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	if err := json.Unmarshal([]byte(input), &locs); err != nil {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if len(locs) == 0 {
		return ValidationResult{Valid: false, Message: "location map must name at least one airport"}
	}
	for code, loc := range locs {
		if res := v.ValidateICAO(ctx, code); !res.Valid {
			return res
		}
		if loc.Lat < -90 || loc.Lat > 90 || loc.Lon < -180 || loc.Lon > 180 {
			return ValidationResult{Valid: false, Message: fmt.Sprintf("coordinates for %s are out of range", code)}
		}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("coordinates for %d airports accepted", len(locs))}
}

// ValidateQueueURL checks an SQS queue URL.
func (v *Validator) ValidateQueueURL(_ context.Context, input string) ValidationResult {
	input = strings.TrimSpace(input)
	parsed, err := url.Parse(input)
	if err != nil {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("invalid URL format: %v", err)}
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("expected an http(s) queue URL, got scheme %q", parsed.Scheme)}
	}
	if parsed.Host == "" {
		return ValidationResult{Valid: false, Message: "queue URL has no host"}
	}
	return ValidationResult{Valid: true, Message: "queue URL accepted"}
}
