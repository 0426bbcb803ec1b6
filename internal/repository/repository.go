// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveBatch stores a batch snapshot with tenant isolation. The batch row and
// its accounts and transactions are written in a single database transaction.
func (r *SQLRepository) SaveBatch(ctx context.Context, tenantID string, batch *domain.Batch) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if batch.ID == "" {
		return fmt.Errorf("%w: batch id is required", ErrInvalidInput)
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	batchQuery := `
		INSERT INTO batches (
			id, tenant_id, received_at, account_count, transaction_count
		) VALUES (?, ?, ?, ?, ?)
	`
	if _, err := dbTx.ExecContext(ctx, r.rebind(batchQuery),
		batch.ID, tenantID, batch.ReceivedAt,
		len(batch.Accounts), len(batch.Transactions),
	); err != nil {
		return err
	}

	accountQuery := `
		INSERT INTO accounts (
			batch_id, tenant_id, id, type, created_at, country, existing_risk_score
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, a := range batch.Accounts {
		var prior sql.NullFloat64
		if a.ExistingRiskScore != nil {
			prior = sql.NullFloat64{Float64: *a.ExistingRiskScore, Valid: true}
		}
		if _, err := dbTx.ExecContext(ctx, r.rebind(accountQuery),
			batch.ID, tenantID, a.ID, a.Type, a.CreatedAt, a.Country, prior,
		); err != nil {
			return err
		}
	}

	txQuery := `
		INSERT INTO transactions (
			batch_id, tenant_id, id, type, debtor_id, creditor_id, amount, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, t := range batch.Transactions {
		if _, err := dbTx.ExecContext(ctx, r.rebind(txQuery),
			batch.ID, tenantID, t.ID, t.Type,
			t.DebtorID, t.CreditorID, t.Amount, t.Timestamp,
		); err != nil {
			return err
		}
	}

	return dbTx.Commit()
}

// GetBatch retrieves a batch snapshot by ID with tenant isolation.
func (r *SQLRepository) GetBatch(ctx context.Context, tenantID string, batchID string) (*domain.Batch, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	batchQuery := `
		SELECT id, tenant_id, received_at
		FROM batches
		WHERE tenant_id = ? AND id = ?
	`

	var batch domain.Batch
	err := r.db.QueryRowContext(ctx, r.rebind(batchQuery), tenantID, batchID).Scan(
		&batch.ID, &batch.TenantID, &batch.ReceivedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	batch.Accounts, err = r.batchAccounts(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}
	batch.Transactions, err = r.batchTransactions(ctx, tenantID, batchID)
	if err != nil {
		return nil, err
	}

	return &batch, nil
}

func (r *SQLRepository) batchAccounts(ctx context.Context, tenantID, batchID string) ([]*domain.Account, error) {
	query := `
		SELECT id, type, created_at, country, existing_risk_score
		FROM accounts
		WHERE tenant_id = ? AND batch_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var a domain.Account
		var prior sql.NullFloat64

		if err := rows.Scan(&a.ID, &a.Type, &a.CreatedAt, &a.Country, &prior); err != nil {
			return nil, err
		}
		if prior.Valid {
			v := prior.Float64
			a.ExistingRiskScore = &v
		}
		accounts = append(accounts, &a)
	}

	return accounts, rows.Err()
}

func (r *SQLRepository) batchTransactions(ctx context.Context, tenantID, batchID string) ([]*domain.Transaction, error) {
	query := `
		SELECT id, type, debtor_id, creditor_id, amount, timestamp
		FROM transactions
		WHERE tenant_id = ? AND batch_id = ?
		ORDER BY timestamp, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		var t domain.Transaction

		if err := rows.Scan(
			&t.ID, &t.Type, &t.DebtorID, &t.CreditorID, &t.Amount, &t.Timestamp,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, &t)
	}

	return transactions, rows.Err()
}

// SaveResult stores a batch analysis result with tenant isolation.
func (r *SQLRepository) SaveResult(ctx context.Context, tenantID string, result *domain.BatchResult) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	risks, _ := json.Marshal(result.Risks)
	metadata, _ := json.Marshal(result.Metadata)

	failed := 0
	if result.PartitionFailed {
		failed = 1
	}

	query := `
		INSERT INTO batch_results (
			id, tenant_id, batch_id, timestamp, partition_failed, cut_value, risks, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		result.ID, tenantID, result.BatchID, result.Timestamp,
		failed, result.CutValue, string(risks), string(metadata),
	)
	return err
}

// GetResult retrieves a batch result by ID with tenant isolation.
func (r *SQLRepository) GetResult(ctx context.Context, tenantID string, resultID string) (*domain.BatchResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, batch_id, timestamp, partition_failed, cut_value, risks, metadata
		FROM batch_results
		WHERE tenant_id = ? AND id = ?
	`

	return r.scanResult(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, resultID))
}

// GetResultByBatch retrieves the most recent result for a batch with tenant
// isolation.
func (r *SQLRepository) GetResultByBatch(ctx context.Context, tenantID string, batchID string) (*domain.BatchResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, batch_id, timestamp, partition_failed, cut_value, risks, metadata
		FROM batch_results
		WHERE tenant_id = ? AND batch_id = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`

	return r.scanResult(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, batchID))
}

func (r *SQLRepository) scanResult(row *sql.Row) (*domain.BatchResult, error) {
	var result domain.BatchResult
	var failed int
	var risks, metadata string

	err := row.Scan(
		&result.ID, &result.TenantID, &result.BatchID, &result.Timestamp,
		&failed, &result.CutValue, &risks, &metadata,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	result.PartitionFailed = failed == 1
	if err := json.Unmarshal([]byte(risks), &result.Risks); err != nil {
		return nil, fmt.Errorf("failed to parse stored risks: %w", err)
	}
	json.Unmarshal([]byte(metadata), &result.Metadata)

	return &result, nil
}

// SaveScoringRule stores a scoring rule with tenant isolation.
func (r *SQLRepository) SaveScoringRule(ctx context.Context, tenantID string, rule *domain.ScoringRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO scoring_rules (
			id, tenant_id, name, description, version, expression, weight, reason, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			weight = excluded.weight,
			reason = excluded.reason,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Weight, rule.Reason, enabled,
		now, now,
	)
	return err
}

// GetScoringRule retrieves a scoring rule with tenant isolation.
func (r *SQLRepository) GetScoringRule(ctx context.Context, tenantID string, ruleID string) (*domain.ScoringRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, weight, reason, enabled
		FROM scoring_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var rule domain.ScoringRule
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
		&rule.Version, &rule.Expression, &rule.Weight, &rule.Reason, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1

	return &rule, nil
}

// ListScoringRules retrieves all active scoring rules for a tenant.
func (r *SQLRepository) ListScoringRules(ctx context.Context, tenantID string) ([]*domain.ScoringRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, weight, reason, enabled
		FROM scoring_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.ScoringRule
	for rows.Next() {
		var rule domain.ScoringRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
			&rule.Version, &rule.Expression, &rule.Weight, &rule.Reason, &enabled,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
