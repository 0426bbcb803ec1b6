package domain

import (
	"time"
)

// TransactionType classifies a transaction.
type TransactionType string

const (
	TxTransfer   TransactionType = "transfer"
	TxPayment    TransactionType = "payment"
	TxWithdrawal TransactionType = "withdrawal"
	TxDeposit    TransactionType = "deposit"
	TxExchange   TransactionType = "exchange"
)

// Transaction is a single funds movement in the batch snapshot.
// Funds flow debtor -> creditor. Transactions are immutable; the analytics
// pipeline only filters and groups them into derived views.
type Transaction struct {
	ID         string          `json:"id"`
	DebtorID   string          `json:"debtorId"`
	CreditorID string          `json:"creditorId"`
	Amount     float64         `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
	Type       TransactionType `json:"type"`
}

// Batch is a fully materialized snapshot of accounts and transactions
// submitted for analysis. The pipeline treats it as read-only.
type Batch struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenantId"`
	Accounts     []*Account     `json:"accounts"`
	Transactions []*Transaction `json:"transactions"`
	ReceivedAt   time.Time      `json:"receivedAt"`
}

// AccountIndex returns the accounts keyed by id.
func (b *Batch) AccountIndex() map[string]*Account {
	idx := make(map[string]*Account, len(b.Accounts))
	for _, a := range b.Accounts {
		idx[a.ID] = a
	}
	return idx
}
