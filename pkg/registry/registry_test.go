package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoseTor101/mom-middleware/pkg/state"
	"github.com/JoseTor101/mom-middleware/pkg/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	mr := miniredis.RunT(t)
	s := store.NewRedisStore(mr.Addr())
	t.Cleanup(func() { s.Close() })

	sf, err := state.Load(filepath.Join(t.TempDir(), "topics_state.json"))
	require.NoError(t, err)
	return New(s, sf)
}

func TestCreateTopic(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTopic(ctx, "orders", 4))

	topics, err := r.ListTopics(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, topics)

	count, err := r.PartitionCount(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestCreateTopicIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTopic(ctx, "orders", 4))
	require.NoError(t, r.Enqueue(ctx, "orders", "m1"))

	// A repeat create is a no-op: partition count and pending messages
	// survive.
	require.NoError(t, r.CreateTopic(ctx, "orders", 8))

	count, err := r.PartitionCount(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	msgs, err := r.PeekAll(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, msgs)
}

func TestCreateTopicDefaultPartitions(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTopic(ctx, "orders", 0))
	count, err := r.PartitionCount(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestDeleteTopic(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTopic(ctx, "orders", 3))
	require.NoError(t, r.Enqueue(ctx, "orders", "m1"))
	require.NoError(t, r.DeleteTopic(ctx, "orders"))

	topics, err := r.ListTopics(ctx)
	require.NoError(t, err)
	assert.Empty(t, topics)

	count, err := r.PartitionCount(ctx, "orders")
	require.NoError(t, err)
	assert.Zero(t, count, "partition markers removed with the topic")

	// Deleting twice equals deleting once.
	require.NoError(t, r.DeleteTopic(ctx, "orders"))
}

func TestEnqueueAutoCreatesTopic(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, "orders", "m1"))

	exists, err := r.Exists(ctx, "orders")
	require.NoError(t, err)
	assert.True(t, exists)

	count, err := r.PartitionCount(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	msgs, err := r.PeekAll(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, msgs)
}

func TestNoMessageLoss(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTopic(ctx, "orders", 4))
	const k = 50
	for i := 0; i < k; i++ {
		require.NoError(t, r.Enqueue(ctx, "orders", fmt.Sprintf("msg-%d", i)))
	}

	stats, err := r.PartitionStats(ctx, "orders")
	require.NoError(t, err)
	var total int64
	for _, n := range stats {
		total += n
	}
	assert.Equal(t, int64(k), total, "sum of partition lengths equals the enqueue count")
}

func TestDequeue(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTopic(ctx, "orders", 1))
	require.NoError(t, r.Enqueue(ctx, "orders", "m1"))
	require.NoError(t, r.Enqueue(ctx, "orders", "m2"))

	msg, ok, err := r.Dequeue(ctx, "orders", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "m1", msg, "partitions drain head first")

	msg, ok, err = r.Dequeue(ctx, "orders", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "m2", msg)

	_, ok, err = r.Dequeue(ctx, "orders", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDequeueOutOfRangePartition(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTopic(ctx, "orders", 3))

	_, ok, err := r.Dequeue(ctx, "orders", 99)
	require.NoError(t, err)
	assert.False(t, ok, "out-of-range partition reads as empty, not as an error")
}

func TestRoundTripExactlyOnce(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTopic(ctx, "orders", 3))
	want := map[string]bool{}
	for i := 0; i < 20; i++ {
		msg := fmt.Sprintf("msg-%d", i)
		want[msg] = false
		require.NoError(t, r.Enqueue(ctx, "orders", msg))
	}

	for p := 0; p < 3; p++ {
		for {
			msg, ok, err := r.Dequeue(ctx, "orders", p)
			require.NoError(t, err)
			if !ok {
				break
			}
			seen, known := want[msg]
			require.True(t, known, "dequeued a message that was never enqueued: %s", msg)
			require.False(t, seen, "message dequeued twice: %s", msg)
			want[msg] = true
		}
	}
	for msg, seen := range want {
		assert.True(t, seen, "message never dequeued: %s", msg)
	}
}

func TestTopicIsolation(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTopic(ctx, "T1", 3))
	require.NoError(t, r.CreateTopic(ctx, "T2", 3))

	var wg sync.WaitGroup
	wg.Add(2)
	errs := make(chan error, 40)
	go func() {
		defer wg.Done()
		for i := 1; i <= 20; i++ {
			errs <- r.Enqueue(ctx, "T1", fmt.Sprintf("T1-%d", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 1; i <= 20; i++ {
			errs <- r.Enqueue(ctx, "T2", fmt.Sprintf("T2-%d", i))
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	t1, err := r.PeekAll(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, t1, 20)
	for _, msg := range t1 {
		assert.Contains(t, msg, "T1-", "foreign message leaked into T1")
	}

	t2, err := r.PeekAll(ctx, "T2")
	require.NoError(t, err)
	require.Len(t, t2, 20)
	for _, msg := range t2 {
		assert.Contains(t, msg, "T2-", "foreign message leaked into T2")
	}
}

func TestPartitionRoutingDeterministic(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTopic(ctx, "orders", 4))
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Enqueue(ctx, "orders", "fixed-message"))
	}

	stats, err := r.PartitionStats(ctx, "orders")
	require.NoError(t, err)
	nonEmpty := 0
	for _, n := range stats {
		if n > 0 {
			assert.Equal(t, int64(5), n)
			nonEmpty++
		}
	}
	assert.Equal(t, 1, nonEmpty, "a fixed message always routes to the same partition")
}

func TestPartitionStats(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.CreateTopic(ctx, "orders", 2))
	stats, err := r.PartitionStats(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, map[int]int64{0: 0, 1: 0}, stats)
}

func TestStateFileMirrorsCatalog(t *testing.T) {
	mr := miniredis.RunT(t)
	s := store.NewRedisStore(mr.Addr())
	defer s.Close()

	path := filepath.Join(t.TempDir(), "topics_state.json")
	sf, err := state.Load(path)
	require.NoError(t, err)
	r := New(s, sf)
	ctx := context.Background()

	require.NoError(t, r.CreateTopic(ctx, "orders", 4))

	reloaded, err := state.Load(path)
	require.NoError(t, err)
	topics := reloaded.Topics()
	require.Len(t, topics, 1)
	assert.Equal(t, "orders", topics[0].Name)
	assert.Equal(t, 4, topics[0].Partitions)

	require.NoError(t, r.DeleteTopic(ctx, "orders"))
	reloaded, err = state.Load(path)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Topics())
}
