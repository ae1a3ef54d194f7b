package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_RequiresConfig(t *testing.T) {
	_, err := NewServer(nil, slog.Default())
	assert.Error(t, err)
}

func TestNewServer_DefaultsLogger(t *testing.T) {
	s, err := NewServer(testConfig(), nil)
	require.NoError(t, err)
	assert.NotNil(t, s.Logger)
	assert.NotNil(t, s.Router())
}

func TestShutdown_RunsClosersInReverse(t *testing.T) {
	s, err := NewServer(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	var order []string
	s.OnShutdown(func() error {
		order = append(order, "pool")
		return nil
	})
	s.OnShutdown(func() error {
		order = append(order, "queue")
		return nil
	})

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, []string{"queue", "pool"}, order)
}

func TestShutdown_ReturnsFirstErrorButRunsAll(t *testing.T) {
	s, err := NewServer(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ran := false
	s.OnShutdown(func() error {
		ran = true
		return nil
	})
	s.OnShutdown(func() error { return errors.New("close failed") })

	err = s.Shutdown(context.Background())
	assert.Error(t, err)
	assert.True(t, ran, "remaining closers still run")
}
