package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "talon-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	tenantID := "tenant-001"
	receivedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	prior := 0.4

	batch := &domain.Batch{
		ID:         "batch-001",
		TenantID:   tenantID,
		ReceivedAt: receivedAt,
		Accounts: []*domain.Account{
			{
				ID:        "acc-b",
				Type:      domain.AccountBusiness,
				Country:   "DE",
				CreatedAt: receivedAt.AddDate(-1, 0, 0),
			},
			{
				ID:                "acc-a",
				Type:              domain.AccountPersonal,
				Country:           "US",
				CreatedAt:         receivedAt.AddDate(-2, 0, 0),
				ExistingRiskScore: &prior,
			},
		},
		Transactions: []*domain.Transaction{
			{
				ID:         "tx-2",
				Type:       domain.TxPayment,
				DebtorID:   "acc-b",
				CreditorID: "acc-a",
				Amount:     250,
				Timestamp:  receivedAt.Add(-time.Hour),
			},
			{
				ID:         "tx-1",
				Type:       domain.TxTransfer,
				DebtorID:   "acc-a",
				CreditorID: "acc-b",
				Amount:     1000,
				Timestamp:  receivedAt.Add(-2 * time.Hour),
			},
		},
	}

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetBatch", func(t *testing.T) {
		if err := repo.SaveBatch(ctx, tenantID, batch); err != nil {
			t.Fatalf("SaveBatch failed: %v", err)
		}

		retrieved, err := repo.GetBatch(ctx, tenantID, batch.ID)
		if err != nil {
			t.Fatalf("GetBatch failed: %v", err)
		}

		if retrieved.ID != batch.ID || retrieved.TenantID != tenantID {
			t.Errorf("expected %s/%s, got %s/%s", batch.ID, tenantID, retrieved.ID, retrieved.TenantID)
		}

		// Accounts come back ordered by id
		if len(retrieved.Accounts) != 2 {
			t.Fatalf("expected 2 accounts, got %d", len(retrieved.Accounts))
		}
		if retrieved.Accounts[0].ID != "acc-a" || retrieved.Accounts[1].ID != "acc-b" {
			t.Errorf("expected accounts ordered by id, got %s, %s",
				retrieved.Accounts[0].ID, retrieved.Accounts[1].ID)
		}
		if retrieved.Accounts[0].ExistingRiskScore == nil || *retrieved.Accounts[0].ExistingRiskScore != prior {
			t.Errorf("expected prior score %v preserved, got %v", prior, retrieved.Accounts[0].ExistingRiskScore)
		}
		if retrieved.Accounts[1].ExistingRiskScore != nil {
			t.Error("expected nil prior score for acc-b")
		}

		// Transactions come back in chronological order
		if len(retrieved.Transactions) != 2 {
			t.Fatalf("expected 2 transactions, got %d", len(retrieved.Transactions))
		}
		if retrieved.Transactions[0].ID != "tx-1" || retrieved.Transactions[1].ID != "tx-2" {
			t.Errorf("expected chronological order tx-1, tx-2, got %s, %s",
				retrieved.Transactions[0].ID, retrieved.Transactions[1].ID)
		}
		if retrieved.Transactions[0].Amount != 1000 {
			t.Errorf("expected amount 1000, got %v", retrieved.Transactions[0].Amount)
		}
	})

	t.Run("BatchNotFound", func(t *testing.T) {
		if _, err := repo.GetBatch(ctx, tenantID, "no-such-batch"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		if _, err := repo.GetBatch(ctx, "tenant-002", batch.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound across tenants, got %v", err)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		if err := repo.SaveBatch(ctx, "", batch); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty tenant, got %v", err)
		}
		if err := repo.SaveBatch(ctx, tenantID, &domain.Batch{}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty batch id, got %v", err)
		}
	})

	t.Run("SaveAndGetResult", func(t *testing.T) {
		result := &domain.BatchResult{
			ID:        "result-001",
			BatchID:   batch.ID,
			TenantID:  tenantID,
			Timestamp: receivedAt.Add(time.Minute),
			Risks: []domain.AccountRisk{
				{
					AccountID: "acc-a",
					Score:     0.75,
					Reasons:   []string{"unknown jurisdiction", "no prior risk assessment"},
					Community: 1,
				},
			},
			CutValue: 1.5,
		}
		result.Metadata.AccountCount = 2
		result.Metadata.EngineVersion = "talon-1.0"

		if err := repo.SaveResult(ctx, tenantID, result); err != nil {
			t.Fatalf("SaveResult failed: %v", err)
		}

		retrieved, err := repo.GetResult(ctx, tenantID, result.ID)
		if err != nil {
			t.Fatalf("GetResult failed: %v", err)
		}
		if retrieved.BatchID != batch.ID || retrieved.CutValue != 1.5 {
			t.Errorf("unexpected result: %+v", retrieved)
		}
		if len(retrieved.Risks) != 1 || retrieved.Risks[0].Score != 0.75 {
			t.Errorf("expected stored risks preserved, got %+v", retrieved.Risks)
		}
		if len(retrieved.Risks[0].Reasons) != 2 {
			t.Errorf("expected 2 reasons, got %v", retrieved.Risks[0].Reasons)
		}
		if retrieved.Metadata.AccountCount != 2 || retrieved.Metadata.EngineVersion != "talon-1.0" {
			t.Errorf("expected metadata preserved, got %+v", retrieved.Metadata)
		}
	})

	t.Run("GetResultByBatchPicksLatest", func(t *testing.T) {
		newer := &domain.BatchResult{
			ID:        "result-002",
			BatchID:   batch.ID,
			TenantID:  tenantID,
			Timestamp: receivedAt.Add(time.Hour),
		}
		if err := repo.SaveResult(ctx, tenantID, newer); err != nil {
			t.Fatalf("SaveResult failed: %v", err)
		}

		retrieved, err := repo.GetResultByBatch(ctx, tenantID, batch.ID)
		if err != nil {
			t.Fatalf("GetResultByBatch failed: %v", err)
		}
		if retrieved.ID != "result-002" {
			t.Errorf("expected most recent result, got %s", retrieved.ID)
		}
	})

	t.Run("PartitionFailedRoundTrip", func(t *testing.T) {
		failed := &domain.BatchResult{
			ID:              "result-003",
			BatchID:         "batch-failed",
			TenantID:        tenantID,
			Timestamp:       receivedAt,
			PartitionFailed: true,
		}
		if err := repo.SaveResult(ctx, tenantID, failed); err != nil {
			t.Fatalf("SaveResult failed: %v", err)
		}

		retrieved, err := repo.GetResult(ctx, tenantID, failed.ID)
		if err != nil {
			t.Fatalf("GetResult failed: %v", err)
		}
		if !retrieved.PartitionFailed {
			t.Error("expected partition failure flag preserved")
		}
	})

	t.Run("ScoringRules", func(t *testing.T) {
		rule := &domain.ScoringRule{
			ID:         "rule-001",
			Name:       "high velocity",
			Version:    "1",
			Expression: "velocity > 5.0",
			Weight:     0.3,
			Reason:     "custom velocity threshold",
			Enabled:    true,
		}

		if err := repo.SaveScoringRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("SaveScoringRule failed: %v", err)
		}

		retrieved, err := repo.GetScoringRule(ctx, tenantID, rule.ID)
		if err != nil {
			t.Fatalf("GetScoringRule failed: %v", err)
		}
		if retrieved.Expression != rule.Expression || retrieved.Weight != rule.Weight {
			t.Errorf("unexpected rule: %+v", retrieved)
		}

		// Same id and version upserts in place
		rule.Weight = 0.5
		if err := repo.SaveScoringRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		updated, err := repo.GetScoringRule(ctx, tenantID, rule.ID)
		if err != nil {
			t.Fatalf("GetScoringRule failed: %v", err)
		}
		if updated.Weight != 0.5 {
			t.Errorf("expected updated weight 0.5, got %v", updated.Weight)
		}

		rules, err := repo.ListScoringRules(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListScoringRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Errorf("expected 1 rule, got %d", len(rules))
		}

		// Disabled rules disappear from reads
		rule.Enabled = false
		if err := repo.SaveScoringRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("disable failed: %v", err)
		}
		if _, err := repo.GetScoringRule(ctx, tenantID, rule.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for disabled rule, got %v", err)
		}
	})

	t.Run("UnsupportedDriver", func(t *testing.T) {
		if _, err := New(domain.RepositoryConfig{Driver: "oracle"}); err == nil {
			t.Error("expected error for unsupported driver")
		}
	})
}
