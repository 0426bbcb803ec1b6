package partition

import (
	"fmt"

	"github.com/opensource-finance/talon/internal/domain"
)

// New creates a partitioner based on configuration.
// For Community tier: returns the local max-cut search.
// For Pro tier: returns the bus-backed remote partitioner.
func New(cfg domain.PartitionerConfig, bus domain.EventBus, tenantID string) (domain.Partitioner, error) {
	switch cfg.Type {
	case "maxcut":
		return NewMaxCutPartitioner(cfg.MaxIterations), nil

	case "remote":
		if bus == nil {
			return nil, fmt.Errorf("remote partitioner requires an event bus")
		}
		return NewRemotePartitioner(bus, tenantID, cfg), nil

	default:
		return nil, fmt.Errorf("unsupported partitioner type: %s", cfg.Type)
	}
}
