package worker

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/talon/internal/bus"
	"github.com/opensource-finance/talon/internal/cache"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/partition"
	"github.com/opensource-finance/talon/internal/pipeline"
	"github.com/opensource-finance/talon/internal/repository"
	"github.com/opensource-finance/talon/internal/scoring"
)

func testRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "talon-worker-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func suspiciousBatch(tenantID string) *domain.Batch {
	now := time.Now().UTC()
	accounts := make([]*domain.Account, 0, 3)
	for _, id := range []string{"FRAUD01", "FRAUD02", "FRAUD03"} {
		accounts = append(accounts, &domain.Account{
			ID:        id,
			Type:      domain.AccountUnknown,
			Country:   domain.UnknownJurisdiction,
			CreatedAt: now.AddDate(0, 0, -10),
		})
	}
	return &domain.Batch{
		ID:         "batch-async-001",
		TenantID:   tenantID,
		ReceivedAt: now,
		Accounts:   accounts,
		Transactions: []*domain.Transaction{
			{ID: "t1", DebtorID: "FRAUD01", CreditorID: "FRAUD02", Amount: 9500, Timestamp: now.Add(-30 * time.Minute), Type: domain.TxTransfer},
			{ID: "t2", DebtorID: "FRAUD02", CreditorID: "FRAUD03", Amount: 9400, Timestamp: now.Add(-25 * time.Minute), Type: domain.TxTransfer},
			{ID: "t3", DebtorID: "FRAUD03", CreditorID: "FRAUD01", Amount: 9300, Timestamp: now.Add(-20 * time.Minute), Type: domain.TxTransfer},
		},
	}
}

func TestWorkerProcessesIngestedBatch(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-001"

	repo := testRepo(t)
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()
	lru := cache.NewLRUCache(100)

	scoringCfg := domain.ScoringConfig{AlertThreshold: 0.7}
	pl := pipeline.New(partition.NewMaxCutPartitioner(100), scoring.NewScorer(scoringCfg))

	// Count completion and alert events downstream of the worker
	var completed atomic.Int32
	var alerts atomic.Int32
	eventBus.Subscribe(ctx, tenantID, domain.TopicBatchCompleted, func(ctx context.Context, msg *domain.Message) error {
		completed.Add(1)
		return nil
	})
	eventBus.Subscribe(ctx, tenantID, domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
		alerts.Add(1)
		return nil
	})

	w := NewWorker(eventBus, repo, lru, pl, scoringCfg)
	if err := w.Start(Config{TenantIDs: []string{tenantID}}); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	if stats := w.GetStats(); stats.SubscriptionCount != 1 {
		t.Fatalf("expected 1 subscription, got %d", stats.SubscriptionCount)
	}

	batch := suspiciousBatch(tenantID)
	if err := repo.SaveBatch(ctx, tenantID, batch); err != nil {
		t.Fatalf("failed to save batch: %v", err)
	}

	payload, _ := json.Marshal(BatchMessage{BatchID: batch.ID})
	if err := eventBus.Publish(ctx, tenantID, domain.TopicBatchIngested, payload); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	// Poll for the persisted result
	var result *domain.BatchResult
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		result, err = repo.GetResultByBatch(ctx, tenantID, batch.ID)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if result == nil {
		t.Fatal("timeout waiting for worker to persist the result")
	}

	// Every ring member carries layering plus circular patterns
	if len(result.Risks) != 3 {
		t.Errorf("expected 3 flagged accounts, got %d", len(result.Risks))
	}
	if result.PartitionFailed {
		t.Error("partition must succeed")
	}

	// The result is also cached for the API read path
	cached, err := lru.GetResult(ctx, tenantID, batch.ID)
	if err != nil || cached == nil {
		t.Errorf("expected cached result, got %v (%v)", cached, err)
	}

	// Completion plus one alert per account above the alert threshold
	time.Sleep(100 * time.Millisecond)
	if completed.Load() != 1 {
		t.Errorf("expected 1 completion event, got %d", completed.Load())
	}
	if alerts.Load() != 3 {
		t.Errorf("expected 3 alert events, got %d", alerts.Load())
	}
}

func TestWorkerSkipsUnknownBatch(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-001"

	repo := testRepo(t)
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	scoringCfg := domain.ScoringConfig{AlertThreshold: 0.7}
	pl := pipeline.New(partition.NewMaxCutPartitioner(100), scoring.NewScorer(scoringCfg))

	w := NewWorker(eventBus, repo, nil, pl, scoringCfg)
	if err := w.Start(Config{TenantIDs: []string{tenantID}}); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	payload, _ := json.Marshal(BatchMessage{BatchID: "no-such-batch"})
	if err := eventBus.Publish(ctx, tenantID, domain.TopicBatchIngested, payload); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	// The missing batch must not crash the worker or produce a result
	time.Sleep(100 * time.Millisecond)
	if _, err := repo.GetResultByBatch(ctx, tenantID, "no-such-batch"); err == nil {
		t.Error("expected no result for unknown batch")
	}
}

func TestWorkerStop(t *testing.T) {
	repo := testRepo(t)
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	pl := pipeline.New(partition.NewMaxCutPartitioner(100), scoring.NewScorer(domain.ScoringConfig{}))
	w := NewWorker(eventBus, repo, nil, pl, domain.ScoringConfig{})

	if err := w.Start(Config{TenantIDs: []string{"tenant-001", "tenant-002"}}); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	if stats := w.GetStats(); stats.SubscriptionCount != 2 {
		t.Errorf("expected 2 subscriptions, got %d", stats.SubscriptionCount)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if stats := w.GetStats(); stats.SubscriptionCount != 0 {
		t.Errorf("expected no subscriptions after stop, got %d", stats.SubscriptionCount)
	}
}
