package partition

import (
	"context"
	"strings"
	"testing"

	"github.com/opensource-finance/talon/internal/bus"
	"github.com/opensource-finance/talon/internal/domain"
)

func TestResponderServesRemotePartitioner(t *testing.T) {
	eventBus := bus.NewChannelBus(10)
	defer eventBus.Close()

	responder := NewResponder(eventBus, NewMaxCutPartitioner(100), domain.PartitionerConfig{})
	if err := responder.Serve(context.Background(), "tenant-1"); err != nil {
		t.Fatalf("failed to start responder: %v", err)
	}
	defer responder.Stop()

	remote := NewRemotePartitioner(eventBus, "tenant-1", domain.PartitionerConfig{RequestTimeout: 5})
	part, err := remote.Partition(context.Background(), []string{"A", "B", "C"}, []domain.WeightedEdge{
		edge("A", "B", 1.0),
		edge("B", "C", 1.0),
		edge("A", "C", 1.0),
	})
	if err != nil {
		t.Fatalf("remote partition failed: %v", err)
	}

	// A triangle with unit weights cuts at most two edges
	if part.CutValue != 2.0 {
		t.Errorf("expected cut value 2.0, got %v", part.CutValue)
	}
	if len(part.A)+len(part.B) != 3 {
		t.Errorf("expected all vertices assigned, got A=%v B=%v", part.A, part.B)
	}
}

func TestResponderReportsSolverFailure(t *testing.T) {
	eventBus := bus.NewChannelBus(10)
	defer eventBus.Close()

	responder := NewResponder(eventBus, NewMaxCutPartitioner(100), domain.PartitionerConfig{})
	if err := responder.Serve(context.Background(), "tenant-1"); err != nil {
		t.Fatalf("failed to start responder: %v", err)
	}
	defer responder.Stop()

	// An empty vertex set makes the local solver fail; the failure must
	// travel back in the reply instead of timing the caller out.
	remote := NewRemotePartitioner(eventBus, "tenant-1", domain.PartitionerConfig{RequestTimeout: 5})
	_, err := remote.Partition(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected solver failure to surface")
	}
	if !strings.Contains(err.Error(), "remote partitioner") {
		t.Errorf("expected a remote partitioner error, got %v", err)
	}
}
