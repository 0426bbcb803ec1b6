// Package graph builds the build-once adjacency index over a transaction
// snapshot. The index is a pure function of the transaction list and is
// never mutated after construction.
package graph

import (
	"github.com/opensource-finance/talon/internal/domain"
)

// Index groups a transaction list by debtor and by creditor. Callers must
// treat the returned slices as read-only views.
type Index struct {
	outgoing map[string][]*domain.Transaction
	incoming map[string][]*domain.Transaction
}

// NewIndex builds the index in a single pass over the transactions.
func NewIndex(transactions []*domain.Transaction) *Index {
	idx := &Index{
		outgoing: make(map[string][]*domain.Transaction),
		incoming: make(map[string][]*domain.Transaction),
	}
	for _, tx := range transactions {
		idx.outgoing[tx.DebtorID] = append(idx.outgoing[tx.DebtorID], tx)
		idx.incoming[tx.CreditorID] = append(idx.incoming[tx.CreditorID], tx)
	}
	return idx
}

// Outgoing returns the transactions sent by the account. Unknown ids yield
// an empty result, never an error.
func (idx *Index) Outgoing(accountID string) []*domain.Transaction {
	return idx.outgoing[accountID]
}

// Incoming returns the transactions received by the account. Unknown ids
// yield an empty result, never an error.
func (idx *Index) Incoming(accountID string) []*domain.Transaction {
	return idx.incoming[accountID]
}

// Neighbors returns the set of counter-parties across both directions.
func (idx *Index) Neighbors(accountID string) map[string]struct{} {
	neighbors := make(map[string]struct{})
	for _, tx := range idx.outgoing[accountID] {
		neighbors[tx.CreditorID] = struct{}{}
	}
	for _, tx := range idx.incoming[accountID] {
		neighbors[tx.DebtorID] = struct{}{}
	}
	delete(neighbors, accountID)
	return neighbors
}

// Connected reports whether any transaction links a and b in either
// direction.
func (idx *Index) Connected(a, b string) bool {
	for _, tx := range idx.outgoing[a] {
		if tx.CreditorID == b {
			return true
		}
	}
	for _, tx := range idx.outgoing[b] {
		if tx.CreditorID == a {
			return true
		}
	}
	return false
}
