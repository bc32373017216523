package reliability

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// BackupJob runs the backup service on a schedule
type BackupJob struct {
	service *BackupService
	timeout time.Duration
}

// NewBackupJob creates a new backup job. Each run is bounded by timeout.
func NewBackupJob(service *BackupService, timeout time.Duration) *BackupJob {
	return &BackupJob{service: service, timeout: timeout}
}

// Name returns the job name for the trigger
func (j *BackupJob) Name() string { return "database_backup" }

// Run performs one backup
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	_, err := j.service.Run(ctx)
	return err
}

// Maintainable is a database the maintenance job can check and checkpoint
type Maintainable interface {
	Name() string
	Conn() *sql.DB
	QuickCheck(ctx context.Context) error
}

// DiskUsageFunc reports free bytes for the filesystem holding path
type DiskUsageFunc func(path string) (free uint64, err error)

// MaintenanceJob keeps the WAL small and halts on a nearly full disk
type MaintenanceJob struct {
	db        Maintainable
	dataDir   string
	diskUsage DiskUsageFunc
	log       zerolog.Logger
}

// Free space below minFreeBytes fails the job
const minFreeBytes = 500 * 1024 * 1024

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(db Maintainable, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:        db,
		dataDir:   dataDir,
		diskUsage: hostDiskFree,
		log:       log.With().Str("job", "database_maintenance").Logger(),
	}
}

// Name returns the job name for the trigger
func (j *MaintenanceJob) Name() string { return "database_maintenance" }

// Run checks connectivity, truncates the WAL and verifies free disk space
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := j.db.QuickCheck(ctx); err != nil {
		return fmt.Errorf("database %s unreachable: %w", j.db.Name(), err)
	}

	if _, err := j.db.Conn().ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		// not critical
		j.log.Warn().Err(err).Str("database", j.db.Name()).Msg("WAL checkpoint failed")
	}

	free, err := j.diskUsage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}
	freeGB := float64(free) / 1e9
	if free < minFreeBytes {
		j.log.Error().Float64("available_gb", freeGB).Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("only %.2f GB free in %s", freeGB, j.dataDir)
	}
	if freeGB < 5.0 {
		j.log.Warn().Float64("available_gb", freeGB).Msg("Disk space running low")
	}

	j.log.Debug().Float64("available_gb", freeGB).Msg("Database maintenance completed")
	return nil
}

func hostDiskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}
