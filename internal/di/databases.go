package di

import (
	"fmt"

	"github.com/aristath/autopilot/internal/config"
	"github.com/aristath/autopilot/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the sqlite store and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileLedger, // portfolio documents and the audit trail
		Name:    "autopilot",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize autopilot database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate autopilot database: %w", err)
	}
	container.DB = db

	log.Info().Str("path", db.Path()).Msg("Database initialized")
	return container, nil
}
