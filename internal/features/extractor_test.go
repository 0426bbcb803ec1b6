package features

import (
	"math"
	"testing"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/graph"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func account(id string) *domain.Account {
	return &domain.Account{
		ID:        id,
		Type:      domain.AccountPersonal,
		CreatedAt: baseTime.AddDate(-1, 0, 0),
		Country:   "US",
	}
}

func tx(id, from, to string, amount float64, at time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:         id,
		DebtorID:   from,
		CreditorID: to,
		Amount:     amount,
		Timestamp:  at,
		Type:       domain.TxTransfer,
	}
}

func TestExtractEmpty(t *testing.T) {
	idx := graph.NewIndex(nil)
	if got := Extract(nil, nil, idx); got != nil {
		t.Errorf("expected nil features for empty batch, got %d", len(got))
	}
}

func TestExtractDegreesAndVolume(t *testing.T) {
	accounts := []*domain.Account{account("A"), account("B"), account("C")}
	transactions := []*domain.Transaction{
		tx("t1", "A", "B", 100, baseTime),
		tx("t2", "C", "A", 50, baseTime.Add(time.Hour)),
	}
	idx := graph.NewIndex(transactions)

	feats := IndexByAccount(Extract(accounts, transactions, idx))

	a := feats["A"]
	if a.InDegree != 1 || a.OutDegree != 1 || a.Degree != 2 {
		t.Errorf("unexpected degrees for A: in=%d out=%d degree=%d", a.InDegree, a.OutDegree, a.Degree)
	}
	if a.TotalVolume != 150 {
		t.Errorf("expected total volume 150, got %v", a.TotalVolume)
	}
	if a.AvgTransaction != 75 {
		t.Errorf("expected avg transaction 75, got %v", a.AvgTransaction)
	}

	b := feats["B"]
	if b.InDegree != 1 || b.OutDegree != 0 {
		t.Errorf("unexpected degrees for B: in=%d out=%d", b.InDegree, b.OutDegree)
	}
	if b.AvgTransaction != 100 {
		t.Errorf("expected avg transaction 100 for B, got %v", b.AvgTransaction)
	}
}

func TestExtractSortedByAccountID(t *testing.T) {
	accounts := []*domain.Account{account("Z"), account("A"), account("M")}
	idx := graph.NewIndex(nil)

	feats := Extract(accounts, nil, idx)
	if len(feats) != 3 {
		t.Fatalf("expected 3 feature records, got %d", len(feats))
	}
	for i, want := range []string{"A", "M", "Z"} {
		if feats[i].AccountID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, feats[i].AccountID)
		}
	}
}

func TestClusteringCoefficientTriangle(t *testing.T) {
	// A-B, A-C, B-C: A's two neighbors are connected, coefficient 1.0
	accounts := []*domain.Account{account("A"), account("B"), account("C")}
	transactions := []*domain.Transaction{
		tx("t1", "A", "B", 1, baseTime),
		tx("t2", "A", "C", 1, baseTime),
		tx("t3", "B", "C", 1, baseTime),
	}
	idx := graph.NewIndex(transactions)

	feats := IndexByAccount(Extract(accounts, transactions, idx))
	if got := feats["A"].ClusteringCoefficient; got != 1.0 {
		t.Errorf("expected clustering coefficient 1.0, got %v", got)
	}
}

func TestClusteringCoefficientFewNeighbors(t *testing.T) {
	accounts := []*domain.Account{account("A"), account("B")}
	transactions := []*domain.Transaction{tx("t1", "A", "B", 1, baseTime)}
	idx := graph.NewIndex(transactions)

	feats := IndexByAccount(Extract(accounts, transactions, idx))
	if got := feats["A"].ClusteringCoefficient; got != 0 {
		t.Errorf("expected 0 for fewer than 2 neighbors, got %v", got)
	}
}

func TestCentralitySumsToOne(t *testing.T) {
	accounts := []*domain.Account{account("A"), account("B"), account("C"), account("D")}
	transactions := []*domain.Transaction{
		tx("t1", "A", "B", 1, baseTime),
		tx("t2", "C", "B", 1, baseTime),
		tx("t3", "D", "B", 1, baseTime),
		tx("t4", "B", "A", 1, baseTime),
	}
	idx := graph.NewIndex(transactions)

	sum := 0.0
	for _, f := range Extract(accounts, transactions, idx) {
		if f.Centrality <= 0 {
			t.Errorf("centrality for %s must be strictly positive, got %v", f.AccountID, f.Centrality)
		}
		sum += f.Centrality
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("expected centrality to sum to 1, got %v", sum)
	}
}

func TestCentralityNoTransactions(t *testing.T) {
	accounts := []*domain.Account{account("A"), account("B")}
	idx := graph.NewIndex(nil)

	for _, f := range Extract(accounts, nil, idx) {
		want := (1 - Damping) / 2
		if math.Abs(f.Centrality-want) > 1e-12 {
			t.Errorf("expected base centrality %v, got %v", want, f.Centrality)
		}
	}
}

func TestVelocitySingleDay(t *testing.T) {
	// 4 transactions inside one day: span+1 = 1 day, velocity 4.0
	accounts := []*domain.Account{account("A"), account("B")}
	transactions := []*domain.Transaction{
		tx("t1", "B", "A", 1, baseTime),
		tx("t2", "B", "A", 1, baseTime.Add(time.Hour)),
		tx("t3", "B", "A", 1, baseTime.Add(2*time.Hour)),
		tx("t4", "A", "B", 1, baseTime.Add(3*time.Hour)),
	}
	idx := graph.NewIndex(transactions)

	feats := IndexByAccount(Extract(accounts, transactions, idx))
	got := feats["A"].Velocity
	want := 4.0 / (3.0/24.0 + 1)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected velocity %v, got %v", want, got)
	}
}

func TestVelocityMultiDay(t *testing.T) {
	// 3 transactions across a 2-day span: 3 / (2+1) = 1.0 tx/day
	accounts := []*domain.Account{account("A"), account("B")}
	transactions := []*domain.Transaction{
		tx("t1", "B", "A", 1, baseTime),
		tx("t2", "B", "A", 1, baseTime.Add(24*time.Hour)),
		tx("t3", "B", "A", 1, baseTime.Add(48*time.Hour)),
	}
	idx := graph.NewIndex(transactions)

	feats := IndexByAccount(Extract(accounts, transactions, idx))
	if got := feats["A"].Velocity; math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected velocity 1.0, got %v", got)
	}
}
