package registry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/JoseTor101/mom-middleware/pkg/log"
	"github.com/JoseTor101/mom-middleware/pkg/metrics"
	"github.com/JoseTor101/mom-middleware/pkg/state"
	"github.com/JoseTor101/mom-middleware/pkg/store"
	"github.com/JoseTor101/mom-middleware/pkg/types"
)

// Coordination store keys. partitionExists markers are the source of truth
// for partition enumeration: a partition's list key disappears when the
// list drains, the marker never does.
const (
	topicsKey = "topics"
)

func partitionMarkerKey(topic string, id int) string {
	return fmt.Sprintf("%s:partition_exists:%d", topic, id)
}

func partitionListKey(topic string, id int) string {
	return fmt.Sprintf("%s:partition%d", topic, id)
}

// Registry persists and serves the topic catalog and the per-partition
// message lists. It is safe for concurrent use; serialization of competing
// appends is delegated to the store's single-key list semantics.
type Registry struct {
	store  store.Store
	state  *state.File
	logger zerolog.Logger
}

// New creates a topic registry over the coordination store. The state file
// is optional; when present every catalog mutation is mirrored to it.
func New(s store.Store, sf *state.File) *Registry {
	return &Registry{
		store:  s,
		state:  sf,
		logger: log.WithComponent("registry"),
	}
}

// CreateTopic adds the topic to the catalog and establishes its partition
// markers and empty message lists. Repeat calls are a no-op.
func (r *Registry) CreateTopic(ctx context.Context, name string, partitions int) error {
	if partitions <= 0 {
		partitions = types.DefaultPartitions
	}

	exists, err := r.store.SIsMember(ctx, topicsKey, name)
	if err != nil {
		return err
	}
	if exists {
		r.logger.Debug().Str("topic", name).Msg("topic already exists")
		return nil
	}

	if err := r.store.SAdd(ctx, topicsKey, name); err != nil {
		return err
	}
	for p := 0; p < partitions; p++ {
		if err := r.store.Set(ctx, partitionMarkerKey(name, p), "1", 0); err != nil {
			return err
		}
		// Clear any stale list left behind by a previous topic of the
		// same name.
		if err := r.store.Del(ctx, partitionListKey(name, p)); err != nil {
			return err
		}
	}

	if r.state != nil {
		if err := r.state.AddTopic(name, partitions); err != nil {
			return err
		}
	}

	metrics.TopicsTotal.Inc()
	r.logger.Info().Str("topic", name).Int("partitions", partitions).Msg("topic created")
	return nil
}

// DeleteTopic removes the topic and every partition key. Absent topics are
// ignored.
func (r *Registry) DeleteTopic(ctx context.Context, name string) error {
	exists, err := r.store.SIsMember(ctx, topicsKey, name)
	if err != nil {
		return err
	}
	if !exists {
		r.logger.Debug().Str("topic", name).Msg("delete of unknown topic ignored")
		return nil
	}

	if err := r.store.SRem(ctx, topicsKey, name); err != nil {
		return err
	}
	keys, err := r.store.Keys(ctx, name+":partition*")
	if err != nil {
		return err
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return err
	}

	if r.state != nil {
		if err := r.state.DeleteTopic(name); err != nil {
			return err
		}
	}

	metrics.TopicsTotal.Dec()
	r.logger.Info().Str("topic", name).Msg("topic deleted")
	return nil
}

// ListTopics returns the catalog, sorted.
func (r *Registry) ListTopics(ctx context.Context) ([]string, error) {
	topics, err := r.store.SMembers(ctx, topicsKey)
	if err != nil {
		return nil, err
	}
	sort.Strings(topics)
	return topics, nil
}

// Exists reports catalog membership.
func (r *Registry) Exists(ctx context.Context, name string) (bool, error) {
	return r.store.SIsMember(ctx, topicsKey, name)
}

// Enqueue appends a message to the partition selected by the content hash.
// Unknown topics are auto-created with the default partition count so a
// producer racing ahead of topic creation loses no messages.
func (r *Registry) Enqueue(ctx context.Context, name, message string) error {
	exists, err := r.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		r.logger.Info().Str("topic", name).Msg("auto-creating topic on enqueue")
		if err := r.CreateTopic(ctx, name, types.DefaultPartitions); err != nil {
			return err
		}
	}

	count, err := r.PartitionCount(ctx, name)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: topic %s has no partitions", types.ErrNotFound, name)
	}

	partition := int(xxhash.Sum64String(message) % uint64(count))
	if err := r.store.RPush(ctx, partitionListKey(name, partition), message); err != nil {
		return err
	}

	metrics.MessagesEnqueued.Inc()
	r.logger.Debug().Str("topic", name).Int("partition", partition).Msg("message enqueued")
	return nil
}

// Dequeue pops the head of the given partition. It returns ok=false when
// the partition is empty or does not exist.
func (r *Registry) Dequeue(ctx context.Context, name string, partition int) (string, bool, error) {
	msg, ok, err := r.store.LPop(ctx, partitionListKey(name, partition))
	if err != nil {
		return "", false, err
	}
	if ok {
		metrics.MessagesDequeued.Inc()
	}
	return msg, ok, nil
}

// PeekAll returns, without mutation, every pending message in partition-id
// order, FIFO within each partition.
func (r *Registry) PeekAll(ctx context.Context, name string) ([]string, error) {
	count, err := r.PartitionCount(ctx, name)
	if err != nil {
		return nil, err
	}
	var out []string
	for p := 0; p < count; p++ {
		msgs, err := r.store.LRange(ctx, partitionListKey(name, p), 0, -1)
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	return out, nil
}

// PartitionCount counts the topic's partition markers.
func (r *Registry) PartitionCount(ctx context.Context, name string) (int, error) {
	keys, err := r.store.Keys(ctx, name+":partition_exists:*")
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// PartitionStats maps each partition id to its pending message count.
func (r *Registry) PartitionStats(ctx context.Context, name string) (map[int]int64, error) {
	keys, err := r.store.Keys(ctx, name+":partition_exists:*")
	if err != nil {
		return nil, err
	}
	stats := make(map[int]int64, len(keys))
	for _, key := range keys {
		idx := strings.LastIndex(key, ":")
		id, err := strconv.Atoi(key[idx+1:])
		if err != nil {
			continue
		}
		n, err := r.store.LLen(ctx, partitionListKey(name, id))
		if err != nil {
			return nil, err
		}
		stats[id] = n
	}
	return stats, nil
}
