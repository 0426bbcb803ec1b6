// Package pipeline orchestrates a full analytics run over a batch snapshot:
// graph indexing, feature extraction, pattern detection, community
// partitioning, and risk scoring.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/features"
	"github.com/opensource-finance/talon/internal/graph"
	"github.com/opensource-finance/talon/internal/patterns"
	"github.com/opensource-finance/talon/internal/scoring"
)

// EngineVersion tags every result with the pipeline revision.
const EngineVersion = "talon-1.0"

// Pipeline runs batches through the analytics stages. The partitioner is
// the only stage allowed to fail, and its failure degrades the run instead
// of aborting it.
type Pipeline struct {
	detector    *patterns.Detector
	scorer      *scoring.Scorer
	partitioner domain.Partitioner

	// Now is the reference time source for account-age checks;
	// overridable in tests.
	Now func() time.Time
}

// New creates a pipeline.
func New(partitioner domain.Partitioner, scorer *scoring.Scorer) *Pipeline {
	return &Pipeline{
		detector:    patterns.NewDetector(),
		scorer:      scorer,
		partitioner: partitioner,
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the full pipeline over the batch and returns the ranked
// result. The batch is treated as read-only throughout.
func (p *Pipeline) Run(ctx context.Context, batch *domain.Batch) *domain.BatchResult {
	start := time.Now()

	result := &domain.BatchResult{
		ID:        uuid.New().String(),
		BatchID:   batch.ID,
		TenantID:  batch.TenantID,
		Timestamp: time.Now().UTC(),
	}
	result.Metadata.AccountCount = len(batch.Accounts)
	result.Metadata.TransactionCount = len(batch.Transactions)
	result.Metadata.EngineVersion = EngineVersion

	idx := graph.NewIndex(batch.Transactions)

	featStart := time.Now()
	feats := features.Extract(batch.Accounts, batch.Transactions, idx)
	result.Metadata.FeaturesMs = time.Since(featStart).Milliseconds()

	patStart := time.Now()
	detected := p.detector.DetectAll(batch.Transactions, feats)
	result.Metadata.PatternsMs = time.Since(patStart).Milliseconds()
	result.Metadata.PatternCount = len(detected)
	result.Metadata.ImplicatedAccounts = len(patterns.ByAccount(detected))

	partStart := time.Now()
	membership, cutValue, failed := p.partition(ctx, batch)
	result.Metadata.PartitionMs = time.Since(partStart).Milliseconds()
	result.PartitionFailed = failed
	result.CutValue = cutValue

	result.Risks = p.scorer.Score(&scoring.Input{
		Accounts:        batch.Accounts,
		Features:        features.IndexByAccount(feats),
		Patterns:        detected,
		Membership:      membership,
		PartitionFailed: failed,
		Now:             p.Now(),
	})

	result.Metadata.TotalMs = time.Since(start).Milliseconds()

	slog.Info("batch analyzed",
		"batch_id", batch.ID,
		"tenant_id", batch.TenantID,
		"accounts", len(batch.Accounts),
		"transactions", len(batch.Transactions),
		"patterns", len(detected),
		"implicated_accounts", result.Metadata.ImplicatedAccounts,
		"flagged", len(result.Risks),
		"partition_failed", failed,
		"duration_ms", result.Metadata.TotalMs,
	)

	return result
}

// partition makes the single blocking collaborator call. Failure is
// captured, not propagated: the membership map stays empty (community id 0
// everywhere) and the batch is flagged.
func (p *Pipeline) partition(ctx context.Context, batch *domain.Batch) (map[string]int, float64, bool) {
	if len(batch.Accounts) == 0 {
		return map[string]int{}, 0, false
	}
	if p.partitioner == nil {
		return map[string]int{}, 0, true
	}

	vertices := make([]string, 0, len(batch.Accounts))
	for _, a := range batch.Accounts {
		vertices = append(vertices, a.ID)
	}

	part, err := p.partitioner.Partition(ctx, vertices, BuildEdges(batch.Transactions))
	if err != nil {
		slog.Warn("community partition failed, scoring with degraded signal",
			"batch_id", batch.ID,
			"error", err,
		)
		return map[string]int{}, 0, true
	}

	return part.Membership(), part.CutValue, false
}

// BuildEdges aggregates transaction volume per unordered account pair and
// normalizes by the maximum pair volume, yielding weights in (0,1].
func BuildEdges(transactions []*domain.Transaction) []domain.WeightedEdge {
	type pair struct{ a, b string }
	volumes := make(map[pair]float64)
	var maxVolume float64

	for _, tx := range transactions {
		if tx.DebtorID == tx.CreditorID {
			continue
		}
		k := pair{tx.DebtorID, tx.CreditorID}
		if k.b < k.a {
			k.a, k.b = k.b, k.a
		}
		volumes[k] += tx.Amount
		if volumes[k] > maxVolume {
			maxVolume = volumes[k]
		}
	}

	if maxVolume == 0 {
		return nil
	}

	edges := make([]domain.WeightedEdge, 0, len(volumes))
	for k, v := range volumes {
		edges = append(edges, domain.WeightedEdge{A: k.a, B: k.b, Weight: v / maxVolume})
	}
	return edges
}
