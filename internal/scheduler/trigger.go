package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Trigger fires registered jobs on cron schedules.
// Each firing runs in its own goroutine; jobs guard their own overlap.
type Trigger struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// NewTrigger creates a new trigger. Specs accept an optional seconds field
// and descriptors such as "@every 15s" or "@daily".
func NewTrigger(log zerolog.Logger) *Trigger {
	return &Trigger{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "trigger").Logger(),
	}
}

// Start starts the trigger
func (t *Trigger) Start() {
	t.cron.Start()
	t.log.Info().Int("jobs", len(t.cron.Entries())).Msg("Trigger started")
}

// Stop stops firing and waits for running jobs to finish
func (t *Trigger) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	t.log.Info().Msg("Trigger stopped")
}

// AddJob registers a job with a cron schedule
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "@every 15s"         - Every 15 seconds
func (t *Trigger) AddJob(schedule string, job Job) error {
	_, err := t.cron.AddFunc(schedule, func() {
		t.log.Debug().Str("job", job.Name()).Msg("Running job")

		if err := job.Run(); err != nil {
			t.log.Error().
				Err(err).
				Str("job", job.Name()).
				Msg("Job failed")
		} else {
			t.log.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	})

	if err != nil {
		return err
	}

	t.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (t *Trigger) RunNow(job Job) error {
	t.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}
