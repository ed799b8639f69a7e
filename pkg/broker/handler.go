package broker

import (
	"context"
	"fmt"

	"github.com/JoseTor101/mom-middleware/pkg/types"
)

// handler serves the message service from the broker's local topic
// registry. Master-service RPCs are answered only while this instance
// holds the master role; its own master server handles them then, so a
// worker politely refuses.
type handler struct {
	broker *Broker
}

func (h *handler) SendMessage(ctx context.Context, topic, message string) (string, string) {
	h.broker.logger.Debug().Str("topic", topic).Msg("received message")
	if err := h.broker.config.Registry.Enqueue(ctx, topic, message); err != nil {
		h.broker.logger.Error().Err(err).Str("topic", topic).Msg("enqueue failed")
		return types.StatusError, err.Error()
	}
	return types.StatusSuccess, "Message enqueued"
}

func (h *handler) ReceiveMessage(ctx context.Context, topic string) (string, string) {
	reg := h.broker.config.Registry
	count, err := reg.PartitionCount(ctx, topic)
	if err != nil {
		h.broker.logger.Error().Err(err).Str("topic", topic).Msg("partition scan failed")
		return types.StatusError, err.Error()
	}
	for p := 0; p < count; p++ {
		msg, ok, err := reg.Dequeue(ctx, topic, p)
		if err != nil {
			h.broker.logger.Error().Err(err).Str("topic", topic).Msg("dequeue failed")
			return types.StatusError, err.Error()
		}
		if ok {
			return types.StatusSuccess, msg
		}
	}
	return types.StatusEmpty, "No messages available"
}

func (h *handler) CreateTopic(ctx context.Context, topic string, partitions int32) (string, string) {
	if err := h.broker.config.Registry.CreateTopic(ctx, topic, int(partitions)); err != nil {
		h.broker.logger.Error().Err(err).Str("topic", topic).Msg("create topic failed")
		return types.StatusError, err.Error()
	}
	return types.StatusSuccess, fmt.Sprintf("Topic %s created with %d partitions", topic, partitions)
}

func (h *handler) GetNextInstance(ctx context.Context) (string, string, error) {
	if m := h.broker.Master(); m != nil {
		return m.Dispatcher().Next()
	}
	return "", "", fmt.Errorf("%w: not the master", types.ErrNoInstances)
}

func (h *handler) RegisterInstance(ctx context.Context, nodeName, hostname string, port int32) (string, string) {
	if m := h.broker.Master(); m != nil {
		assigned, err := m.Membership().Register(nodeName, hostname, int(port))
		if err != nil {
			return types.StatusError, err.Error()
		}
		return types.StatusSuccess, fmt.Sprintf("Instance %s registered successfully", assigned)
	}
	return types.StatusError, "not the master node"
}
