package patterns

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opensource-finance/talon/internal/domain"
)

const (
	// circularMaxDepth bounds the path exploration; cycles longer than this
	// are never found. The exploration is exponential in the worst case
	// (dense graphs with many short cycles) and this cap is the only bound,
	// so dense inputs are a known scalability risk.
	circularMaxDepth = 5

	// circularMinLength is the minimum cycle length worth reporting.
	circularMinLength = 3

	circularConfidence = 0.9
)

// DetectCircular finds closed transaction loops of length 3 to
// circularMaxDepth. Every account is tried as a cycle start; paths follow
// forward edges with the start node excluded from the visited set so the
// walk may return to it. Cycles found from different starting rotations are
// deduplicated by their sorted membership signature, which also makes
// detection idempotent.
func DetectCircular(transactions []*domain.Transaction) []domain.FraudPattern {
	// Forward adjacency with distinct destinations per source.
	adjacency := make(map[string]map[string]struct{})
	for _, tx := range transactions {
		if tx.DebtorID == tx.CreditorID {
			continue
		}
		dsts, ok := adjacency[tx.DebtorID]
		if !ok {
			dsts = make(map[string]struct{})
			adjacency[tx.DebtorID] = dsts
		}
		dsts[tx.CreditorID] = struct{}{}
	}

	starts := make([]string, 0, len(adjacency))
	for id := range adjacency {
		starts = append(starts, id)
	}
	sort.Strings(starts)

	cycles := make(map[string][]string)
	for _, start := range starts {
		explore(start, []string{start}, adjacency, cycles)
	}

	signatures := make([]string, 0, len(cycles))
	for sig := range cycles {
		signatures = append(signatures, sig)
	}
	sort.Strings(signatures)

	patterns := make([]domain.FraudPattern, 0, len(cycles))
	for _, sig := range signatures {
		members := cycles[sig]
		patterns = append(patterns, domain.FraudPattern{
			Type:        domain.PatternCircular,
			Confidence:  circularConfidence,
			Members:     members,
			Description: fmt.Sprintf("closed transaction loop of length %d", len(members)),
		})
	}

	return patterns
}

// explore walks forward edges from the last node of path, recording a cycle
// whenever the walk returns to path[0] after at least circularMinLength
// hops. Recursion depth is capped by circularMaxDepth via the path length.
func explore(start string, path []string, adjacency map[string]map[string]struct{}, cycles map[string][]string) {
	current := path[len(path)-1]
	for next := range adjacency[current] {
		if next == start {
			if len(path) >= circularMinLength {
				recordCycle(path, cycles)
			}
			continue
		}
		if len(path) >= circularMaxDepth {
			continue
		}
		if onPath(path, next) {
			continue
		}
		extended := make([]string, len(path)+1)
		copy(extended, path)
		extended[len(path)] = next
		explore(start, extended, adjacency, cycles)
	}
}

func onPath(path []string, id string) bool {
	for _, p := range path {
		if p == id {
			return true
		}
	}
	return false
}

func recordCycle(path []string, cycles map[string][]string) {
	members := make([]string, len(path))
	copy(members, path)
	sort.Strings(members)
	cycles[strings.Join(members, ",")] = members
}
