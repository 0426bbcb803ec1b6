// Package patterns implements the fraud pattern detectors: layering chains,
// money-mule fan-in topologies, and circular transaction loops.
package patterns

import (
	"log/slog"

	"github.com/opensource-finance/talon/internal/domain"
)

// Detector runs the three sub-detectors over a batch snapshot. Detectors are
// pure functions of their inputs; nothing is mutated.
type Detector struct{}

// NewDetector creates a new pattern detector.
func NewDetector() *Detector {
	return &Detector{}
}

// DetectAll runs every detector and concatenates the results in fixed order:
// layering, money mule, circular. Downstream reason ordering depends on this
// order.
func (d *Detector) DetectAll(transactions []*domain.Transaction, features []*domain.GraphFeatures) []domain.FraudPattern {
	var patterns []domain.FraudPattern

	patterns = append(patterns, DetectLayering(transactions)...)
	patterns = append(patterns, DetectMoneyMules(features, transactions)...)
	patterns = append(patterns, DetectCircular(transactions)...)

	slog.Debug("pattern detection complete",
		"transaction_count", len(transactions),
		"pattern_count", len(patterns),
	)

	return patterns
}

// ByAccount groups the detected patterns by implicated account id.
func ByAccount(patterns []domain.FraudPattern) map[string][]*domain.FraudPattern {
	m := make(map[string][]*domain.FraudPattern)
	for i := range patterns {
		for _, member := range patterns[i].Members {
			m[member] = append(m[member], &patterns[i])
		}
	}
	return m
}
