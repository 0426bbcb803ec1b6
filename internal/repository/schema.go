package repository

// Schema definitions for the Talon database.
// Compatible with both SQLite and PostgreSQL.

const schemaBatches = `
CREATE TABLE IF NOT EXISTS batches (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    received_at TIMESTAMP NOT NULL,
    account_count INTEGER NOT NULL,
    transaction_count INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batches_tenant ON batches(tenant_id);
CREATE INDEX IF NOT EXISTS idx_batches_received ON batches(tenant_id, received_at);
`

const schemaAccounts = `
CREATE TABLE IF NOT EXISTS accounts (
    batch_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    id TEXT NOT NULL,
    type TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    country TEXT NOT NULL,
    existing_risk_score REAL,
    PRIMARY KEY (batch_id, id)
);

CREATE INDEX IF NOT EXISTS idx_accounts_tenant ON accounts(tenant_id);
CREATE INDEX IF NOT EXISTS idx_accounts_batch ON accounts(tenant_id, batch_id);
`

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    batch_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    id TEXT NOT NULL,
    type TEXT NOT NULL,
    debtor_id TEXT NOT NULL,
    creditor_id TEXT NOT NULL,
    amount REAL NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    PRIMARY KEY (batch_id, id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_batch ON transactions(tenant_id, batch_id);
CREATE INDEX IF NOT EXISTS idx_transactions_debtor ON transactions(tenant_id, debtor_id);
CREATE INDEX IF NOT EXISTS idx_transactions_creditor ON transactions(tenant_id, creditor_id);
`

const schemaBatchResults = `
CREATE TABLE IF NOT EXISTS batch_results (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    batch_id TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    partition_failed INTEGER NOT NULL DEFAULT 0,
    cut_value REAL NOT NULL DEFAULT 0,
    risks TEXT NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batch_results_tenant ON batch_results(tenant_id);
CREATE INDEX IF NOT EXISTS idx_batch_results_batch ON batch_results(tenant_id, batch_id);
CREATE INDEX IF NOT EXISTS idx_batch_results_timestamp ON batch_results(tenant_id, timestamp);
`

// schemaScoringRules defines the scoring_rules table.
// Rules are versioned; lookups take the highest enabled version.
const schemaScoringRules = `
CREATE TABLE IF NOT EXISTS scoring_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    reason TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_scoring_rules_tenant ON scoring_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_scoring_rules_enabled ON scoring_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaBatches,
		schemaAccounts,
		schemaTransactions,
		schemaBatchResults,
		schemaScoringRules,
	}
}
