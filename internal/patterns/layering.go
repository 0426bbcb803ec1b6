package patterns

import (
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

const (
	// layeringWindow is the maximum gap between consecutive transactions
	// in a chain.
	layeringWindow = 30 * time.Minute

	// layeringMinChain is the minimum chain length worth reporting.
	layeringMinChain = 3
)

// DetectLayering finds rapid sequential fund movement: chains of
// transactions where each hop starts at the previous hop's creditor within
// the layering window. A single linear walk over the chronologically sorted
// list; chains shorter than the minimum are discarded.
func DetectLayering(transactions []*domain.Transaction) []domain.FraudPattern {
	if len(transactions) == 0 {
		return nil
	}

	sorted := make([]*domain.Transaction, len(transactions))
	copy(sorted, transactions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var patterns []domain.FraudPattern
	chain := []*domain.Transaction{sorted[0]}

	flush := func() {
		if len(chain) >= layeringMinChain {
			patterns = append(patterns, chainPattern(chain))
		}
	}

	for _, tx := range sorted[1:] {
		prev := chain[len(chain)-1]
		if tx.DebtorID == prev.CreditorID && tx.Timestamp.Sub(prev.Timestamp) <= layeringWindow {
			chain = append(chain, tx)
			continue
		}
		flush()
		chain = []*domain.Transaction{tx}
	}
	flush()

	return patterns
}

func chainPattern(chain []*domain.Transaction) domain.FraudPattern {
	seen := make(map[string]struct{})
	var members []string
	add := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			members = append(members, id)
		}
	}
	for _, tx := range chain {
		add(tx.DebtorID)
		add(tx.CreditorID)
	}

	confidence := float64(len(chain)) / 5.0
	if confidence > 1.0 {
		confidence = 1.0
	}

	return domain.FraudPattern{
		Type:        domain.PatternLayering,
		Confidence:  confidence,
		Members:     members,
		Description: fmt.Sprintf("rapid movement chain of %d transactions across %d accounts", len(chain), len(members)),
	}
}
