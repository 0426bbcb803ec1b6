package patterns

import (
	"fmt"

	"github.com/opensource-finance/talon/internal/domain"
)

const (
	// muleMinInDegree is the minimum number of incoming transactions for a
	// fan-in candidate.
	muleMinInDegree = 3

	// muleMaxOutDegree caps the outgoing transactions of a candidate.
	muleMaxOutDegree = 1

	// muleMinVelocity is the minimum transactions/day of a candidate.
	muleMinVelocity = 2.0

	muleConfidence = 0.8
)

// DetectMoneyMules finds star topologies: accounts receiving from many
// distinct sources while sending to almost none, at elevated velocity.
// Pure filter over the feature list plus a sender lookup, linear in
// accounts and transactions.
func DetectMoneyMules(features []*domain.GraphFeatures, transactions []*domain.Transaction) []domain.FraudPattern {
	var patterns []domain.FraudPattern

	for _, f := range features {
		if f.InDegree < muleMinInDegree || f.OutDegree > muleMaxOutDegree || f.Velocity <= muleMinVelocity {
			continue
		}

		seen := map[string]struct{}{f.AccountID: {}}
		members := []string{f.AccountID}
		for _, tx := range transactions {
			if tx.CreditorID != f.AccountID {
				continue
			}
			if _, ok := seen[tx.DebtorID]; ok {
				continue
			}
			seen[tx.DebtorID] = struct{}{}
			members = append(members, tx.DebtorID)
		}

		patterns = append(patterns, domain.FraudPattern{
			Type:        domain.PatternMoneyMule,
			Confidence:  muleConfidence,
			Members:     members,
			Description: fmt.Sprintf("account %s receives from %d senders with minimal outflow", f.AccountID, len(members)-1),
		})
	}

	return patterns
}
