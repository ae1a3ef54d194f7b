package flights

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"flightrisk/internal/external"
	"flightrisk/internal/types"
)

// DefaultStatusBaseURL is the AviationStack real-time flights endpoint, used
// as the backup source of truth when the primary provider leaves a past
// flight in an indeterminate state.
const DefaultStatusBaseURL = "https://api.aviationstack.com/v1/flights"

// StatusClient resolves the final status of a single flight from the backup
// provider.
type StatusClient struct {
	base   string
	apiKey string
	client *external.Client
	logger *slog.Logger
}

// NewStatusClient creates a backup status client. baseURL may be empty to use
// the default endpoint.
func NewStatusClient(baseURL, apiKey string, client *external.Client, logger *slog.Logger) *StatusClient {
	if baseURL == "" {
		baseURL = DefaultStatusBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusClient{base: baseURL, apiKey: apiKey, client: client, logger: logger}
}

type statusResponse struct {
	Data []struct {
		FlightDate   string `json:"flight_date"`
		FlightStatus string `json:"flight_status"`
		Flight       struct {
			IATA string `json:"iata"`
		} `json:"flight"`
	} `json:"data"`
}

// Status looks up the flight's final status for the given date. An empty
// string means the backup provider has no record either.
func (c *StatusClient) Status(ctx context.Context, flightNumber string, date time.Time) (string, error) {
	q := url.Values{}
	q.Set("access_key", c.apiKey)
	q.Set("flight_iata", strings.ReplaceAll(flightNumber, " ", ""))
	q.Set("flight_date", date.UTC().Format("2006-01-02"))

	var payload statusResponse
	if err := c.client.GetJSON(ctx, c.base+"?"+q.Encode(), &payload); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamStatus, "backup status lookup failed", err)
	}

	if len(payload.Data) == 0 {
		c.logger.WarnContext(ctx, "backup provider has no record of flight",
			"flight_number", flightNumber, "date", date.Format("2006-01-02"))
		return "", nil
	}

	status := payload.Data[0].FlightStatus
	c.logger.InfoContext(ctx, "resolved flight status from backup provider",
		"flight_number", flightNumber, "status", status)
	return status, nil
}

// indeterminate reports whether a status string carries no information about
// the flight's outcome.
func indeterminate(status string) bool {
	switch strings.ToLower(status) {
	case "", "unknown", "expected", "scheduled":
		return true
	}
	return false
}
