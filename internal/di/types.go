// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/autopilot/internal/clients/broker"
	"github.com/aristath/autopilot/internal/clients/venue"
	"github.com/aristath/autopilot/internal/database"
	"github.com/aristath/autopilot/internal/modules/copytrade"
	"github.com/aristath/autopilot/internal/modules/credentials"
	"github.com/aristath/autopilot/internal/modules/portfolio"
	"github.com/aristath/autopilot/internal/modules/rebalancing"
	"github.com/aristath/autopilot/internal/modules/strategy"
	"github.com/aristath/autopilot/internal/modules/strategylog"
	"github.com/aristath/autopilot/internal/reliability"
	"github.com/aristath/autopilot/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire and is the single source of truth for service instances.
type Container struct {
	// Database
	DB *database.DB

	// Clients
	BrokerFactory *broker.Factory
	VenueFactory  *venue.Factory

	// Repositories
	PortfolioRepo   *portfolio.Repository
	StrategyRepo    *strategy.Repository
	StrategyLogRepo *strategylog.Repository
	CredentialRepo  *credentials.Repository

	// Services
	StrategyLogger     *strategylog.Logger
	StrategyEvaluator  *strategy.Evaluator
	RebalancingService *rebalancing.Service
	CopyTradeService   *copytrade.Service
	Sweeper            *scheduler.Sweeper
	BackupService      *reliability.BackupService // nil when backups are disabled

	// Scheduling
	Trigger *scheduler.Trigger
}

// JobInstances holds the registered recurring jobs
type JobInstances struct {
	Sweep       scheduler.Job
	Maintenance scheduler.Job
	Backup      scheduler.Job // nil when backups are disabled
}

// Close releases the database
func (c *Container) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
