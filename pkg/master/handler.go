package master

import (
	"context"
	"fmt"

	"github.com/JoseTor101/mom-middleware/pkg/types"
)

// handler serves both wire services on the master: the master service
// (instance selection and registration) and the message service the
// master answers as a regular instance.
type handler struct {
	master *Master
}

func (h *handler) SendMessage(ctx context.Context, topic, message string) (string, string) {
	reg := h.master.config.Registry
	if err := reg.Enqueue(ctx, topic, message); err != nil {
		h.master.logger.Error().Err(err).Str("topic", topic).Msg("enqueue failed")
		return types.StatusError, err.Error()
	}
	return types.StatusSuccess, "Message enqueued"
}

func (h *handler) ReceiveMessage(ctx context.Context, topic string) (string, string) {
	reg := h.master.config.Registry
	count, err := reg.PartitionCount(ctx, topic)
	if err != nil {
		h.master.logger.Error().Err(err).Str("topic", topic).Msg("partition scan failed")
		return types.StatusError, err.Error()
	}
	for p := 0; p < count; p++ {
		msg, ok, err := reg.Dequeue(ctx, topic, p)
		if err != nil {
			h.master.logger.Error().Err(err).Str("topic", topic).Msg("dequeue failed")
			return types.StatusError, err.Error()
		}
		if ok {
			return types.StatusSuccess, msg
		}
	}
	return types.StatusEmpty, "No messages available"
}

func (h *handler) CreateTopic(ctx context.Context, topic string, partitions int32) (string, string) {
	if err := h.master.config.Registry.CreateTopic(ctx, topic, int(partitions)); err != nil {
		h.master.logger.Error().Err(err).Str("topic", topic).Msg("create topic failed")
		return types.StatusError, err.Error()
	}
	return types.StatusSuccess, fmt.Sprintf("Topic %s created with %d partitions", topic, partitions)
}

func (h *handler) GetNextInstance(ctx context.Context) (string, string, error) {
	name, addr, err := h.master.dispatcher.Next()
	if err != nil {
		return "", "", err
	}
	h.master.logger.Debug().Str("name", name).Str("address", addr).Msg("returning next instance")
	return name, addr, nil
}

func (h *handler) RegisterInstance(ctx context.Context, nodeName, hostname string, port int32) (string, string) {
	assigned, err := h.master.membership.Register(nodeName, hostname, int(port))
	if err != nil {
		h.master.logger.Warn().Err(err).Str("name", nodeName).Msg("registration rejected")
		return types.StatusError, err.Error()
	}
	return types.StatusSuccess, fmt.Sprintf("Instance %s registered successfully", assigned)
}
