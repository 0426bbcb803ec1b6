package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AccountRisk is the scored outcome for a single account. Reasons preserve
// insertion order: the order the scoring factors were applied.
type AccountRisk struct {
	AccountID string   `json:"accountId"`
	Score     float64  `json:"score"` // clamped to [0,1]
	Reasons   []string `json:"reasons"`

	// Community is 1 or 2 from the graph partition, 0 when the account was
	// not assigned (including every account of a batch whose partition
	// call failed).
	Community int `json:"community"`

	// PartitionFailed mirrors the batch-level partition outcome; identical
	// for every account in a given run.
	PartitionFailed bool `json:"partitionFailed"`
}

// TopReason returns the first recorded reason, or an empty string.
func (r *AccountRisk) TopReason() string {
	if len(r.Reasons) == 0 {
		return ""
	}
	return r.Reasons[0]
}

// Row flattens the risk record into the string-keyed shape handed to
// reporting collaborators (JSON/CSV exporters). Reasons are joined with the
// given delimiter.
func (r *AccountRisk) Row(delimiter string) map[string]string {
	return map[string]string{
		"account_id":       r.AccountID,
		"risk_score":       strconv.FormatFloat(r.Score, 'f', 4, 64),
		"risk_pct":         fmt.Sprintf("%.1f%%", r.Score*100),
		"community":        strconv.Itoa(r.Community),
		"top_reason":       r.TopReason(),
		"all_reasons":      strings.Join(r.Reasons, delimiter),
		"partition_failed": strconv.FormatBool(r.PartitionFailed),
	}
}

// BatchResult is the complete outcome of one pipeline run over a batch.
// Risks contains only accounts above the publication threshold, sorted by
// score descending.
type BatchResult struct {
	ID        string    `json:"id"`
	BatchID   string    `json:"batchId"`
	TenantID  string    `json:"tenantId"`
	Timestamp time.Time `json:"timestamp"`

	Risks []AccountRisk `json:"risks"`

	// PartitionFailed is set when the community partitioner returned an
	// error; the run still completes with community ids zeroed.
	PartitionFailed bool    `json:"partitionFailed"`
	CutValue        float64 `json:"cutValue"`

	Metadata ResultMetadata `json:"metadata"`
}

// ResultMetadata carries processing information for a batch run.
type ResultMetadata struct {
	TraceID          string `json:"traceId,omitempty"`
	AccountCount     int    `json:"accountCount"`
	TransactionCount int    `json:"transactionCount"`
	PatternCount     int    `json:"patternCount"`
	// ImplicatedAccounts is the number of distinct accounts named as a
	// member of at least one detected pattern.
	ImplicatedAccounts int    `json:"implicatedAccounts"`
	FeaturesMs         int64  `json:"featuresMs"`
	PatternsMs         int64  `json:"patternsMs"`
	PartitionMs        int64  `json:"partitionMs"`
	TotalMs            int64  `json:"totalMs"`
	EngineVersion      string `json:"engineVersion"`
}
