package partition

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/opensource-finance/talon/internal/domain"
)

// Responder is the serving half of RemotePartitioner: it answers partition
// requests arriving over the event bus with a locally computed cut. A worker
// deployment runs the responder while API nodes delegate to it.
type Responder struct {
	bus   domain.EventBus
	local domain.Partitioner
	topic string

	subs []domain.Subscription
}

// NewResponder creates a responder backed by the given local partitioner.
func NewResponder(bus domain.EventBus, local domain.Partitioner, cfg domain.PartitionerConfig) *Responder {
	topic := cfg.RequestTopic
	if topic == "" {
		topic = domain.TopicPartitionRequest
	}
	return &Responder{bus: bus, local: local, topic: topic}
}

// Serve subscribes to partition requests for the tenant. Call once per
// tenant the responder should answer for.
func (r *Responder) Serve(ctx context.Context, tenantID string) error {
	sub, err := r.bus.Subscribe(ctx, tenantID, r.topic, r.handle)
	if err != nil {
		return err
	}
	r.subs = append(r.subs, sub)

	slog.Info("partition responder started",
		"tenant_id", tenantID,
		"topic", r.topic,
	)
	return nil
}

// handle computes the cut for one request and routes the reply back through
// the bus. Solver failures travel in the reply's Error field so the caller
// can degrade instead of timing out.
func (r *Responder) handle(ctx context.Context, msg *domain.Message) error {
	var req PartitionRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse partition request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	var reply PartitionReply
	part, err := r.local.Partition(ctx, req.Vertices, req.Edges)
	if err != nil {
		reply.Error = err.Error()
	} else {
		reply.PartitionA = part.A
		reply.PartitionB = part.B
		reply.CutValue = part.CutValue
	}

	payload, err := json.Marshal(&reply)
	if err != nil {
		return err
	}
	return r.bus.Reply(ctx, msg, payload)
}

// Stop unsubscribes from every tenant.
func (r *Responder) Stop() {
	for _, sub := range r.subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe responder",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	r.subs = nil
}
