package partition

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-finance/talon/internal/domain"
)

// RemotePartitioner delegates the cut to an out-of-process optimizer over
// the event bus (request-reply). The remote side receives the vertex and
// edge lists and answers with a partition or an error payload; any failure
// here surfaces as an error for the pipeline to tolerate.
type RemotePartitioner struct {
	bus      domain.EventBus
	tenantID string
	topic    string
	timeout  time.Duration
}

// PartitionRequest is the wire payload sent to the remote optimizer.
type PartitionRequest struct {
	Vertices []string              `json:"vertices"`
	Edges    []domain.WeightedEdge `json:"edges"`
}

// PartitionReply is the wire payload returned by the remote optimizer.
type PartitionReply struct {
	PartitionA []string `json:"partitionA"`
	PartitionB []string `json:"partitionB"`
	CutValue   float64  `json:"cutValue"`
	Error      string   `json:"error,omitempty"`
}

// NewRemotePartitioner creates a bus-backed partitioner.
func NewRemotePartitioner(bus domain.EventBus, tenantID string, cfg domain.PartitionerConfig) *RemotePartitioner {
	topic := cfg.RequestTopic
	if topic == "" {
		topic = domain.TopicPartitionRequest
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemotePartitioner{
		bus:      bus,
		tenantID: tenantID,
		topic:    topic,
		timeout:  timeout,
	}
}

// Partition sends the graph to the remote optimizer and decodes its reply.
func (p *RemotePartitioner) Partition(ctx context.Context, vertices []string, edges []domain.WeightedEdge) (*domain.Partition, error) {
	payload, err := json.Marshal(&PartitionRequest{Vertices: vertices, Edges: edges})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal partition request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	data, err := p.bus.Request(reqCtx, p.tenantID, p.topic, payload)
	if err != nil {
		return nil, fmt.Errorf("partition request failed: %w", err)
	}

	var reply PartitionReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("failed to unmarshal partition reply: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("remote partitioner: %s", reply.Error)
	}

	return &domain.Partition{
		A:        reply.PartitionA,
		B:        reply.PartitionB,
		CutValue: reply.CutValue,
	}, nil
}
