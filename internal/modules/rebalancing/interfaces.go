package rebalancing

import (
	"context"

	"github.com/aristath/autopilot/internal/domain"
)

// CredentialProvider looks up a user's broker keypair
type CredentialProvider interface {
	BrokerCredentials(ctx context.Context, ownerID string) (domain.BrokerCredentials, error)
}

// BrokerFactory binds a broker client to credentials
type BrokerFactory interface {
	ForCredentials(creds domain.BrokerCredentials) domain.BrokerClient
}

// TargetEvaluator produces the raw targets a portfolio should converge to
type TargetEvaluator interface {
	Evaluate(ctx context.Context, p *domain.Portfolio) ([]domain.TargetPosition, error)
}

// PortfolioSaver persists a reconciled portfolio document.
// It returns domain.ErrStalePortfolio when the document changed or vanished.
type PortfolioSaver interface {
	Save(ctx context.Context, p *domain.Portfolio) error
}
