package di

import (
	"github.com/aristath/autopilot/internal/modules/credentials"
	"github.com/aristath/autopilot/internal/modules/portfolio"
	"github.com/aristath/autopilot/internal/modules/strategy"
	"github.com/aristath/autopilot/internal/modules/strategylog"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories on the container's database
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	conn := container.DB.Conn()

	container.PortfolioRepo = portfolio.NewRepository(conn, log)
	container.StrategyRepo = strategy.NewRepository(conn, log)
	container.StrategyLogRepo = strategylog.NewRepository(conn, log)
	container.CredentialRepo = credentials.NewRepository(conn, log)

	log.Debug().Msg("Repositories initialized")
	return nil
}
