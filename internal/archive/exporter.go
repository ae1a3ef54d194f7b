// Package archive writes periodic compressed backups of the historical
// flight collection to local disk and prunes expired ones. The history is
// the system's most valuable asset; everything else can be re-fetched.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"flightrisk/internal/history"
	"flightrisk/internal/types"
)

// Archive file naming: history_20260110T120000Z.json.gz.
const (
	filePrefix    = "history_"
	fileSuffix    = ".json.gz"
	stampLayout   = "20060102T150405Z"
	archiveDirFS  = 0o755
	archiveFileFS = 0o644
)

// historyDump reads a slice of the historical record collection.
type historyDump interface {
	ListRange(ctx context.Context, start, end time.Time) ([]types.HistoricalFlightRecord, error)
	CoverageRange(ctx context.Context) (history.Coverage, error)
}

// snapshot is the archive file layout.
type snapshot struct {
	ExportedAt time.Time                      `json:"exported_at"`
	Count      int                            `json:"count"`
	Records    []types.HistoricalFlightRecord `json:"records"`
}

// Exporter dumps the full history to a timestamped gzip file and removes
// archives older than the retention window.
type Exporter struct {
	history   historyDump
	dir       string
	retention time.Duration
	clock     types.Clock
	logger    *slog.Logger
}

// NewExporter creates an Exporter writing into dir.
func NewExporter(history historyDump, dir string, retention time.Duration, clock types.Clock, logger *slog.Logger) *Exporter {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{history: history, dir: dir, retention: retention, clock: clock, logger: logger}
}

// Export writes one full-history archive and returns its path. An empty
// collection still produces a file; a zero-record archive proves the export
// ran.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	cov, err := e.history.CoverageRange(ctx)
	if err != nil {
		return "", err
	}

	var records []types.HistoricalFlightRecord
	if cov.Total > 0 {
		// The range is inclusive on both ends in the repository, so pad the
		// upper bound.
		records, err = e.history.ListRange(ctx, cov.Earliest, cov.Latest.Add(24*time.Hour))
		if err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(e.dir, archiveDirFS); err != nil {
		return "", fmt.Errorf("archive: failed to create directory %s: %w", e.dir, err)
	}

	now := e.clock.Now().UTC()
	path := filepath.Join(e.dir, filePrefix+now.Format(stampLayout)+fileSuffix)

	if err := e.writeSnapshot(path, snapshot{
		ExportedAt: now,
		Count:      len(records),
		Records:    records,
	}); err != nil {
		return "", err
	}

	e.logger.InfoContext(ctx, "history archive written",
		"path", path, "records", len(records))
	return path, nil
}

func (e *Exporter) writeSnapshot(path string, snap snapshot) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, archiveFileFS)
	if err != nil {
		return fmt.Errorf("archive: failed to create %s: %w", tmp, err)
	}

	gz := gzip.NewWriter(f)
	enc := json.NewEncoder(gz)
	if err := enc.Encode(snap); err != nil {
		gz.Close()
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("archive: failed to encode snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("archive: failed to flush gzip stream: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("archive: failed to close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("archive: failed to finalize %s: %w", path, err)
	}
	return nil
}

// Prune removes archives older than the retention window and returns how
// many were deleted. Files that do not match the archive naming scheme are
// left alone.
func (e *Exporter) Prune(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("archive: failed to read directory %s: %w", e.dir, err)
	}

	cutoff := e.clock.Now().UTC().Add(-e.retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stamp, ok := parseStamp(entry.Name())
		if !ok {
			continue
		}
		if !stamp.Before(cutoff) {
			continue
		}
		path := filepath.Join(e.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			e.logger.WarnContext(ctx, "failed to remove expired archive",
				"path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		e.logger.InfoContext(ctx, "expired archives pruned", "removed", removed)
	}
	return removed, nil
}

// ReadSnapshot loads one archive file back, for restores and verification.
func ReadSnapshot(path string) ([]types.HistoricalFlightRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to open %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("archive: %s is not a gzip archive: %w", path, err)
	}
	defer gz.Close()

	var snap snapshot
	if err := json.NewDecoder(gz).Decode(&snap); err != nil {
		return nil, fmt.Errorf("archive: failed to decode %s: %w", path, err)
	}
	return snap.Records, nil
}

func parseStamp(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	ts, err := time.Parse(stampLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
