package flights

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightrisk/internal/types"
)

func TestStatusClient_Status_ResolvesOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "secret", q.Get("access_key"))
		assert.Equal(t, "AS2211", q.Get("flight_iata"), "spaces stripped from flight number")
		assert.Equal(t, "2026-01-10", q.Get("flight_date"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": [{"flight_date": "2026-01-10", "flight_status": "cancelled", "flight": {"iata": "AS2211"}}]}`)
	}))
	defer srv.Close()

	c := NewStatusClient(srv.URL, "secret", newTestClient(), nil)
	status, err := c.Status(context.Background(), "AS 2211", time.Date(2026, 1, 10, 17, 55, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "cancelled", status)
}

func TestStatusClient_Status_NoRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer srv.Close()

	c := NewStatusClient(srv.URL, "secret", newTestClient(), nil)
	status, err := c.Status(context.Background(), "AS 2211", time.Now())
	require.NoError(t, err)
	assert.Empty(t, status)
}

func TestStatusClient_Status_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewStatusClient(srv.URL, "secret", newTestClient(), nil)
	_, err := c.Status(context.Background(), "AS 2211", time.Now())
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamStatus, appErr.Code)
}

func TestIndeterminate(t *testing.T) {
	assert.True(t, indeterminate(""))
	assert.True(t, indeterminate("Unknown"))
	assert.True(t, indeterminate("expected"))
	assert.True(t, indeterminate("Scheduled"))
	assert.False(t, indeterminate("Landed"))
	assert.False(t, indeterminate("cancelled"))
	assert.False(t, indeterminate("Departed"))
}
