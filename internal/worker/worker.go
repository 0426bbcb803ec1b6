// Package worker provides async batch processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/pipeline"
)

// Worker processes ingested batches asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	pipeline *pipeline.Pipeline
	scoring  domain.ScoringConfig

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, pl *pipeline.Pipeline, scoringCfg domain.ScoringConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		cache:    cache,
		pipeline: pl,
		scoring:  scoringCfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing batches for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicBatchIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicBatchIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processBatch(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicBatchIngested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processBatch(ctx, msg.TenantID, msg)
}

// BatchMessage is the message payload for batch processing.
type BatchMessage struct {
	BatchID  string `json:"batchId"`
	TenantID string `json:"tenantId,omitempty"`
	TraceID  string `json:"traceId,omitempty"`
}

// processBatch loads an ingested batch and runs it through the pipeline.
func (w *Worker) processBatch(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var batchMsg BatchMessage
	if err := json.Unmarshal(msg.Payload, &batchMsg); err != nil {
		slog.Error("failed to parse batch message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if batchMsg.TenantID != "" {
		tenantID = batchMsg.TenantID
	}

	traceID := batchMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing batch",
		"batch_id", batchMsg.BatchID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	batch, err := w.repo.GetBatch(ctx, tenantID, batchMsg.BatchID)
	if err != nil {
		slog.Error("failed to load batch",
			"batch_id", batchMsg.BatchID,
			"error", err,
		)
		return err
	}

	result := w.pipeline.Run(ctx, batch)
	result.Metadata.TraceID = traceID

	if err := w.repo.SaveResult(ctx, tenantID, result); err != nil {
		slog.Error("failed to save result",
			"batch_id", batchMsg.BatchID,
			"error", err,
		)
	}
	if w.cache != nil {
		_ = w.cache.SetResult(ctx, tenantID, batch.ID, result, 30*time.Minute)
	}

	// Publish completion
	resultPayload, _ := json.Marshal(result)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicBatchCompleted, resultPayload); err != nil {
		slog.Error("failed to publish completion",
			"batch_id", batchMsg.BatchID,
			"error", err,
		)
	}

	// One alert per account above the alert threshold
	for i := range result.Risks {
		risk := &result.Risks[i]
		if risk.Score < w.scoring.AlertThreshold {
			continue
		}
		alert, _ := json.Marshal(map[string]interface{}{
			"batchId":   result.BatchID,
			"accountId": risk.AccountID,
			"score":     risk.Score,
			"reasons":   risk.Reasons,
		})
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAlert, alert); err != nil {
			slog.Error("failed to publish alert",
				"account_id", risk.AccountID,
				"error", err,
			)
		}
	}

	slog.Info("batch processed",
		"batch_id", batchMsg.BatchID,
		"tenant_id", tenantID,
		"flagged", len(result.Risks),
		"partition_failed", result.PartitionFailed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
