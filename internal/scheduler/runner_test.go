package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightrisk/internal/types"
)

type stubSyncer struct {
	upserted    int64
	syncErr     error
	completed   int
	completeErr error
	syncCalls   int
	gotFrom     time.Time
	gotTo       time.Time
}

func (s *stubSyncer) SyncBoard(_ context.Context, from, to time.Time) (int64, error) {
	s.syncCalls++
	s.gotFrom, s.gotTo = from, to
	return s.upserted, s.syncErr
}

func (s *stubSyncer) CompleteFinished(context.Context) (int, error) {
	return s.completed, s.completeErr
}

type stubRescore struct {
	days    []time.Time
	reasons []string
	err     error
}

func (s *stubRescore) TriggerRescore(_ context.Context, day time.Time, reason string) error {
	s.days = append(s.days, day)
	s.reasons = append(s.reasons, reason)
	return s.err
}

type stubArchiver struct {
	exports   int
	prunes    int
	exportErr error
}

func (s *stubArchiver) Export(context.Context) (string, error) {
	s.exports++
	return "/tmp/history_x.json.gz", s.exportErr
}

func (s *stubArchiver) Prune(context.Context) (int, error) {
	s.prunes++
	return 0, nil
}

type stubMetrics struct {
	ops []string
}

func (s *stubMetrics) CountTier(context.Context, types.RiskTier) {}

func (s *stubMetrics) RecordSyncDuration(_ context.Context, op string, _ time.Duration) {
	s.ops = append(s.ops, op)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func testConfig() Config {
	return Config{
		SyncInterval:   10 * time.Minute,
		BoardLookback:  6 * time.Hour,
		BoardLookahead: 24 * time.Hour,
	}
}

func TestRunner_RunCycle(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	syncer := &stubSyncer{upserted: 7, completed: 3}
	rescore := &stubRescore{}
	metrics := &stubMetrics{}

	r := NewRunner(testConfig(), syncer, rescore, nil, metrics, fixedClock{now: now}, nil)
	require.NoError(t, r.RunCycle(context.Background()))

	assert.Equal(t, now.Add(-6*time.Hour), syncer.gotFrom)
	assert.Equal(t, now.Add(24*time.Hour), syncer.gotTo)

	require.Len(t, rescore.days, 1, "fresh board data triggers a rescore")
	assert.Equal(t, now, rescore.days[0])
	assert.Equal(t, []string{"board_sync"}, rescore.reasons)

	assert.Equal(t, []string{"sync_cycle"}, metrics.ops)
}

func TestRunner_RunCycle_NoChangesNoRescore(t *testing.T) {
	syncer := &stubSyncer{upserted: 0}
	rescore := &stubRescore{}

	r := NewRunner(testConfig(), syncer, rescore, nil, nil, nil, nil)
	require.NoError(t, r.RunCycle(context.Background()))

	assert.Empty(t, rescore.days, "an unchanged board does not enqueue work")
}

func TestRunner_RunCycle_SyncFailureStillSweeps(t *testing.T) {
	syncer := &stubSyncer{syncErr: assert.AnError, completed: 2}
	rescore := &stubRescore{}

	r := NewRunner(testConfig(), syncer, rescore, nil, nil, nil, nil)
	err := r.RunCycle(context.Background())

	require.Error(t, err)
	assert.Empty(t, rescore.days)
}

func TestRunner_RunCycle_RescoreFailureIsNotFatal(t *testing.T) {
	syncer := &stubSyncer{upserted: 1}
	rescore := &stubRescore{err: assert.AnError}

	r := NewRunner(testConfig(), syncer, rescore, nil, nil, nil, nil)
	assert.NoError(t, r.RunCycle(context.Background()))
}

func TestRunner_RunCycle_ArchivesOncePerInterval(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	clock := &advancingClock{now: now}
	syncer := &stubSyncer{}
	archive := &stubArchiver{}

	r := NewRunner(testConfig(), syncer, nil, archive, nil, clock, nil)

	require.NoError(t, r.RunCycle(context.Background()))
	assert.Equal(t, 1, archive.exports, "first cycle archives")
	assert.Equal(t, 1, archive.prunes)

	clock.now = now.Add(time.Hour)
	require.NoError(t, r.RunCycle(context.Background()))
	assert.Equal(t, 1, archive.exports, "an hour later is too soon")

	clock.now = now.Add(25 * time.Hour)
	require.NoError(t, r.RunCycle(context.Background()))
	assert.Equal(t, 2, archive.exports)
}

func TestRunner_RunCycle_ArchiveFailureRetriesNextCycle(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	clock := &advancingClock{now: now}
	archive := &stubArchiver{exportErr: assert.AnError}

	r := NewRunner(testConfig(), &stubSyncer{}, nil, archive, nil, clock, nil)

	require.NoError(t, r.RunCycle(context.Background()))
	assert.Equal(t, 1, archive.exports)
	assert.Zero(t, archive.prunes, "no prune after a failed export")

	// A failed export does not advance lastArchive, so the next cycle retries.
	clock.now = now.Add(time.Hour)
	require.NoError(t, r.RunCycle(context.Background()))
	assert.Equal(t, 2, archive.exports)
}

func TestRunner_Run_StopsOnCancel(t *testing.T) {
	syncer := &stubSyncer{}
	cfg := testConfig()
	cfg.SyncInterval = 5 * time.Millisecond

	r := NewRunner(cfg, syncer, nil, nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Let at least the immediate cycle and one tick happen.
	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
	assert.GreaterOrEqual(t, syncer.syncCalls, 2)
}

type advancingClock struct {
	now time.Time
}

func (c *advancingClock) Now() time.Time { return c.now }
