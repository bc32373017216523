// Package reliability keeps the sqlite store recoverable: offsite snapshots
// and periodic maintenance.
package reliability

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const backupTimeFormat = "2006-01-02-150405"

// Snapshotter produces a consistent copy of a database file
type Snapshotter interface {
	Name() string
	Snapshot(ctx context.Context, dest string) error
}

// BackupResult describes one uploaded snapshot
type BackupResult struct {
	Key       string        `json:"key"`
	SizeBytes int64         `json:"size_bytes"`
	Checksum  string        `json:"checksum"` // sha256 of the gzip stream
	Duration  time.Duration `json:"duration"`
}

// BackupService snapshots the database and uploads it gzip-compressed
type BackupService struct {
	db       Snapshotter
	uploader Uploader
	stageDir string
	now      func() time.Time
	log      zerolog.Logger
}

// NewBackupService creates a new backup service staging files under stageDir
func NewBackupService(db Snapshotter, uploader Uploader, stageDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:       db,
		uploader: uploader,
		stageDir: stageDir,
		now:      time.Now,
		log:      log.With().Str("service", "backup").Logger(),
	}
}

// Run takes a snapshot, compresses it and uploads it
func (s *BackupService) Run(ctx context.Context) (*BackupResult, error) {
	start := s.now()
	s.log.Info().Str("database", s.db.Name()).Msg("Starting backup")

	if err := os.MkdirAll(s.stageDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	stamp := start.UTC().Format(backupTimeFormat)
	snapshotPath := filepath.Join(s.stageDir, fmt.Sprintf("%s-%s.db", s.db.Name(), stamp))
	archivePath := snapshotPath + ".gz"
	defer os.Remove(snapshotPath)
	defer os.Remove(archivePath)

	if err := s.db.Snapshot(ctx, snapshotPath); err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", s.db.Name(), err)
	}

	checksum, size, err := compressFile(snapshotPath, archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	key := BackupKey(s.db.Name(), start)
	if err := s.uploader.Upload(ctx, key, archive, "application/gzip"); err != nil {
		return nil, fmt.Errorf("failed to upload backup: %w", err)
	}

	result := &BackupResult{
		Key:       key,
		SizeBytes: size,
		Checksum:  checksum,
		Duration:  s.now().Sub(start),
	}
	s.log.Info().
		Str("key", key).
		Int64("size_bytes", size).
		Str("checksum", checksum).
		Dur("duration", result.Duration).
		Msg("Backup uploaded")
	return result, nil
}

// BackupKey is the object key of a snapshot taken at t
func BackupKey(name string, t time.Time) string {
	return fmt.Sprintf("%s-backup-%s.db.gz", name, t.UTC().Format(backupTimeFormat))
}

// ParseBackupKey extracts the snapshot time from a key made by BackupKey
func ParseBackupKey(name, key string) (time.Time, bool) {
	prefix := name + "-backup-"
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, ".db.gz") {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ".db.gz")
	t, err := time.Parse(backupTimeFormat, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// compressFile gzips src into dst, returning the archive checksum and size
func compressFile(src, dst string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", 0, err
	}
	defer out.Close()

	hash := sha256.New()
	counter := &countingWriter{}
	gz := gzip.NewWriter(io.MultiWriter(out, hash, counter))
	if _, err := io.Copy(gz, in); err != nil {
		return "", 0, err
	}
	if err := gz.Close(); err != nil {
		return "", 0, err
	}
	return "sha256:" + hex.EncodeToString(hash.Sum(nil)), counter.n, nil
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
