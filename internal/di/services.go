package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aristath/autopilot/internal/clients/broker"
	"github.com/aristath/autopilot/internal/clients/venue"
	"github.com/aristath/autopilot/internal/config"
	"github.com/aristath/autopilot/internal/domain"
	"github.com/aristath/autopilot/internal/modules/copytrade"
	"github.com/aristath/autopilot/internal/modules/rebalancing"
	"github.com/aristath/autopilot/internal/modules/strategy"
	"github.com/aristath/autopilot/internal/modules/strategylog"
	"github.com/aristath/autopilot/internal/reliability"
	"github.com/aristath/autopilot/internal/scheduler"
	"github.com/rs/zerolog"
)

// InitializeServices creates gateway factories, reconciliation engines and the sweeper
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.BrokerFactory = broker.NewFactory(broker.Options{
		BaseURL:           cfg.BrokerBaseURL,
		DataURL:           cfg.BrokerDataURL,
		RequestsPerSecond: cfg.BrokerRequestsPerSecond,
		Timeout:           cfg.HTTPTimeout,
	}, log)
	container.VenueFactory = venue.NewFactory(venue.Options{
		BaseURL: cfg.VenueBaseURL,
		Timeout: cfg.HTTPTimeout,
	}, log)

	container.StrategyLogger = strategylog.NewLogger(container.StrategyLogRepo, log)
	container.StrategyEvaluator = strategy.NewEvaluator(container.StrategyRepo, log)

	container.RebalancingService = rebalancing.NewService(
		container.CredentialRepo,
		container.BrokerFactory,
		container.StrategyEvaluator,
		container.PortfolioRepo,
		container.StrategyLogger,
		log,
	)
	container.CopyTradeService = copytrade.NewService(
		container.VenueFactory,
		container.PortfolioRepo,
		container.StrategyLogger,
		log,
	)

	container.Sweeper = scheduler.NewSweeper(
		container.PortfolioRepo,
		map[domain.Provider]scheduler.Reconciler{
			domain.ProviderBroker:    container.RebalancingService,
			domain.ProviderCopyTrade: container.CopyTradeService,
		},
		container.StrategyLogger,
		log,
	)

	if cfg.Backup.Enabled() {
		store, err := reliability.NewObjectStore(ctx, cfg.Backup)
		if err != nil {
			return fmt.Errorf("failed to initialize backup storage: %w", err)
		}
		container.BackupService = reliability.NewBackupService(
			container.DB,
			store,
			filepath.Join(cfg.DataDir, "backup-staging"),
			log,
		)
	} else {
		log.Info().Msg("Backups disabled (BACKUP_BUCKET not set)")
	}

	log.Debug().Msg("Services initialized")
	return nil
}
