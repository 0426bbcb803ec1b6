package domain

import (
	"context"
)

// WeightedEdge is an undirected edge of the account graph. Weight is the
// total transaction volume between the pair normalized by the maximum
// single-pair volume in the graph, so weights lie in (0,1].
type WeightedEdge struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Weight float64 `json:"weight"`
}

// Partition is a 2-way split of the account graph. On success every vertex
// appears in exactly one of A/B.
type Partition struct {
	A        []string `json:"a"`
	B        []string `json:"b"`
	CutValue float64  `json:"cutValue"`
}

// Membership returns community ids keyed by account: 1 for A, 2 for B.
func (p *Partition) Membership() map[string]int {
	m := make(map[string]int, len(p.A)+len(p.B))
	for _, v := range p.A {
		m[v] = 1
	}
	for _, v := range p.B {
		m[v] = 2
	}
	return m
}

// Partitioner is the community-detection collaborator. The pipeline makes a
// single blocking call per batch and tolerates failure: a partitioner error
// degrades the run (community ids zeroed, batch flagged) but never aborts it.
//
// Implementations may run locally or delegate to a remote optimizer.
type Partitioner interface {
	Partition(ctx context.Context, vertices []string, edges []WeightedEdge) (*Partition, error)
}

// PartitionerConfig holds configuration for partitioner initialization.
type PartitionerConfig struct {
	// Type is the partitioner type: "maxcut" or "remote"
	Type string

	// MaxCut settings
	MaxIterations int

	// Remote settings: request topic and timeout for the bus round trip
	RequestTopic   string
	RequestTimeout int // seconds
}
