// Package postgresql provides PostgreSQL persistence for the workflow engine.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the postgres database/sql driver.
	_ "github.com/lib/pq"

	"github.com/calvere/docflow/pkg/persistence"
	"github.com/calvere/docflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	definitionRepo *DefinitionRepository
	instanceRepo   *InstanceRepository
	stepRepo       *StepRepository
	ruleRepo       *RuleRepository
	historyRepo    *HistoryRepository
	documentRepo   *DocumentRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs
// migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:             database,
		logger:         logger,
		definitionRepo: &DefinitionRepository{db: database},
		instanceRepo:   &InstanceRepository{db: database},
		stepRepo:       &StepRepository{db: database, logger: logger},
		ruleRepo:       &RuleRepository{db: database, logger: logger},
		historyRepo:    &HistoryRepository{db: database},
		documentRepo:   &DocumentRepository{db: database},
	}, nil
}

func (p *Persistence) Definitions() persistence.DefinitionRepository { return p.definitionRepo }
func (p *Persistence) Instances() persistence.InstanceRepository     { return p.instanceRepo }
func (p *Persistence) Steps() persistence.StepRepository             { return p.stepRepo }
func (p *Persistence) Rules() persistence.RuleRepository             { return p.ruleRepo }
func (p *Persistence) History() persistence.HistoryRepository        { return p.historyRepo }
func (p *Persistence) Documents() persistence.DocumentRepository     { return p.documentRepo }

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
