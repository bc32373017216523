package di

import (
	"fmt"
	"time"

	"github.com/aristath/autopilot/internal/config"
	"github.com/aristath/autopilot/internal/reliability"
	"github.com/aristath/autopilot/internal/scheduler"
	"github.com/rs/zerolog"
)

const maintenanceSchedule = "0 30 3 * * *" // daily at 03:30

// RegisterJobs creates the trigger and registers every recurring job on it
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	trigger := scheduler.NewTrigger(log)
	jobs := &JobInstances{}

	jobs.Sweep = scheduler.NewSweepJob(container.Sweeper)
	if err := trigger.AddJob(cfg.SweepSchedule, jobs.Sweep); err != nil {
		return nil, fmt.Errorf("failed to register sweep job: %w", err)
	}

	jobs.Maintenance = reliability.NewMaintenanceJob(container.DB, cfg.DataDir, log)
	if err := trigger.AddJob(maintenanceSchedule, jobs.Maintenance); err != nil {
		return nil, fmt.Errorf("failed to register maintenance job: %w", err)
	}

	if container.BackupService != nil {
		jobs.Backup = reliability.NewBackupJob(container.BackupService, 30*time.Minute)
		if err := trigger.AddJob(cfg.Backup.Schedule, jobs.Backup); err != nil {
			return nil, fmt.Errorf("failed to register backup job: %w", err)
		}
	}

	container.Trigger = trigger
	return jobs, nil
}
