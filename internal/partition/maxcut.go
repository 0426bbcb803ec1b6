// Package partition provides community partitioner implementations behind
// the domain.Partitioner contract: vertices plus weighted undirected edges
// in, a 2-way partition and cut value out.
package partition

import (
	"context"
	"fmt"
	"sort"

	"github.com/opensource-finance/talon/internal/domain"
)

// MaxCutPartitioner is a classical greedy max-cut local search. It stands in
// for heavier external optimizers: the pipeline only depends on the
// partition contract, not on how the cut is found.
//
// The search is deterministic: vertices are sorted, seeded alternately, and
// single-vertex flips are applied best-gain-first until no flip improves the
// cut or the iteration budget runs out.
type MaxCutPartitioner struct {
	maxIterations int
}

// NewMaxCutPartitioner creates a local max-cut partitioner.
func NewMaxCutPartitioner(maxIterations int) *MaxCutPartitioner {
	if maxIterations <= 0 {
		maxIterations = 100
	}
	return &MaxCutPartitioner{maxIterations: maxIterations}
}

// Partition splits the vertices into two communities maximizing (greedily)
// the total weight of crossing edges.
func (p *MaxCutPartitioner) Partition(ctx context.Context, vertices []string, edges []domain.WeightedEdge) (*domain.Partition, error) {
	if len(vertices) == 0 {
		return nil, fmt.Errorf("no vertices to partition")
	}

	sorted := make([]string, len(vertices))
	copy(sorted, vertices)
	sort.Strings(sorted)

	// side[v] is false for partition A, true for partition B. Alternate
	// seeding gives the local search a balanced start.
	side := make(map[string]bool, len(sorted))
	for i, v := range sorted {
		side[v] = i%2 == 1
	}

	// Adjacency as edge lists per vertex for gain computation.
	incident := make(map[string][]domain.WeightedEdge, len(sorted))
	for _, e := range edges {
		incident[e.A] = append(incident[e.A], e)
		incident[e.B] = append(incident[e.B], e)
	}

	for iter := 0; iter < p.maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bestVertex := ""
		bestGain := 0.0
		for _, v := range sorted {
			gain := flipGain(v, side, incident[v])
			if gain > bestGain {
				bestGain = gain
				bestVertex = v
			}
		}
		if bestVertex == "" {
			break
		}
		side[bestVertex] = !side[bestVertex]
	}

	result := &domain.Partition{}
	for _, v := range sorted {
		if side[v] {
			result.B = append(result.B, v)
		} else {
			result.A = append(result.A, v)
		}
	}
	for _, e := range edges {
		if side[e.A] != side[e.B] {
			result.CutValue += e.Weight
		}
	}

	return result, nil
}

// flipGain is the cut-value delta of moving v to the other side: uncut
// incident edges become cut (+w), cut ones become uncut (-w).
func flipGain(v string, side map[string]bool, incident []domain.WeightedEdge) float64 {
	gain := 0.0
	for _, e := range incident {
		other := e.B
		if other == v {
			other = e.A
		}
		if side[v] == side[other] {
			gain += e.Weight
		} else {
			gain -= e.Weight
		}
	}
	return gain
}
