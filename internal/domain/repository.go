package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Batch operations
	SaveBatch(ctx context.Context, tenantID string, batch *Batch) error
	GetBatch(ctx context.Context, tenantID string, batchID string) (*Batch, error)

	// Result operations
	SaveResult(ctx context.Context, tenantID string, result *BatchResult) error
	GetResult(ctx context.Context, tenantID string, resultID string) (*BatchResult, error)
	GetResultByBatch(ctx context.Context, tenantID string, batchID string) (*BatchResult, error)

	// Custom scoring rule operations
	SaveScoringRule(ctx context.Context, tenantID string, rule *ScoringRule) error
	GetScoringRule(ctx context.Context, tenantID string, ruleID string) (*ScoringRule, error)
	ListScoringRules(ctx context.Context, tenantID string) ([]*ScoringRule, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
