package broker

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoseTor101/mom-middleware/pkg/election"
	"github.com/JoseTor101/mom-middleware/pkg/registry"
	"github.com/JoseTor101/mom-middleware/pkg/state"
	"github.com/JoseTor101/mom-middleware/pkg/store"
	"github.com/JoseTor101/mom-middleware/pkg/types"
	"github.com/JoseTor101/mom-middleware/pkg/wire"
)

type testCluster struct {
	store *store.RedisStore
}

func newTestClusterStore(t *testing.T) *testCluster {
	t.Helper()
	mr := miniredis.RunT(t)
	s := store.NewRedisStore(mr.Addr())
	t.Cleanup(func() { s.Close() })
	return &testCluster{store: s}
}

func (tc *testCluster) newBroker(t *testing.T, name, masterURL string) *Broker {
	t.Helper()
	sf, err := state.Load(filepath.Join(t.TempDir(), "topics_state.json"))
	require.NoError(t, err)

	return New(Config{
		InstanceName: name,
		MasterURL:    masterURL,
		Store:        tc.store,
		State:        sf,
		Registry:     registry.New(tc.store, sf),
		Election:     election.DefaultConfig(),
	})
}

// loopbackMasterURL derives a dialable 127.0.0.1 address for the master a
// broker promoted in-process.
func loopbackMasterURL(t *testing.T, b *Broker) string {
	t.Helper()
	m := b.Master()
	require.NotNil(t, m)
	_, port, err := net.SplitHostPort(m.LocalAddress())
	require.NoError(t, err)
	return "127.0.0.1:" + port
}

func TestFirstBrokerClaimsMasterRole(t *testing.T) {
	tc := newTestClusterStore(t)
	b := tc.newBroker(t, "node-1", "")
	ctx := context.Background()

	require.NoError(t, b.Start(ctx))
	defer b.Stop(ctx)

	assert.True(t, b.IsMaster(), "first broker bootstraps the cluster")

	addr, ok, err := tc.store.Get(ctx, election.MasterKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, b.Master().LocalAddress(), addr)

	// The promoted name carries the instance identity.
	assert.Contains(t, b.Master().Membership().List(), "node-1-master")
}

func TestSecondBrokerRegistersWithMaster(t *testing.T) {
	tc := newTestClusterStore(t)
	ctx := context.Background()

	b1 := tc.newBroker(t, "node-1", "")
	require.NoError(t, b1.Start(ctx))
	defer b1.Stop(ctx)

	b2 := tc.newBroker(t, "node-2", loopbackMasterURL(t, b1))
	require.NoError(t, b2.Start(ctx))
	defer b2.Stop(ctx)

	assert.False(t, b2.IsMaster())
	assert.Contains(t, b1.Master().Membership().List(), "node-2")
}

func TestDispatchAcrossCluster(t *testing.T) {
	tc := newTestClusterStore(t)
	ctx := context.Background()

	b1 := tc.newBroker(t, "node-1", "")
	require.NoError(t, b1.Start(ctx))
	defer b1.Stop(ctx)

	b2 := tc.newBroker(t, "node-2", loopbackMasterURL(t, b1))
	require.NoError(t, b2.Start(ctx))
	defer b2.Stop(ctx)

	reg := registry.New(tc.store, nil)
	require.NoError(t, reg.CreateTopic(ctx, "orders", 3))

	for i := 0; i < 4; i++ {
		resp, err := b1.Master().Dispatcher().SendToTopic("orders", fmt.Sprintf("m-%d", i))
		require.NoError(t, err)
		assert.Equal(t, types.StatusSuccess, resp.Status)
	}

	// All four messages landed in the shared store exactly once,
	// whichever worker served each send.
	msgs, err := reg.PeekAll(ctx, "orders")
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}

func TestReceiveOverWire(t *testing.T) {
	tc := newTestClusterStore(t)
	ctx := context.Background()

	b1 := tc.newBroker(t, "node-1", "")
	require.NoError(t, b1.Start(ctx))
	defer b1.Stop(ctx)

	b2 := tc.newBroker(t, "node-2", loopbackMasterURL(t, b1))
	require.NoError(t, b2.Start(ctx))
	defer b2.Stop(ctx)

	client := wire.NewClient(fmt.Sprintf("127.0.0.1:%d", b2.Port()), wire.DefaultClientConfig())

	resp, err := client.SendMessage("orders", "hello")
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, resp.Status, "unknown topics are auto-created on send")

	resp, err = client.ReceiveMessage("orders")
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, resp.Status)
	assert.Equal(t, "hello", resp.Message)

	resp, err = client.ReceiveMessage("orders")
	require.NoError(t, err)
	assert.Equal(t, types.StatusEmpty, resp.Status)
}

func TestWorkerRefusesMasterService(t *testing.T) {
	tc := newTestClusterStore(t)
	ctx := context.Background()

	b1 := tc.newBroker(t, "node-1", "")
	require.NoError(t, b1.Start(ctx))
	defer b1.Stop(ctx)

	b2 := tc.newBroker(t, "node-2", loopbackMasterURL(t, b1))
	require.NoError(t, b2.Start(ctx))
	defer b2.Stop(ctx)

	client := wire.NewClient(fmt.Sprintf("127.0.0.1:%d", b2.Port()), wire.DefaultClientConfig())
	_, err := client.GetNextInstance()
	assert.ErrorIs(t, err, types.ErrNoInstances)

	resp, err := client.RegisterInstance("node-3", "10.0.0.3", 5003)
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, resp.Status)
}

func TestSyncTopicsFromStateFile(t *testing.T) {
	tc := newTestClusterStore(t)
	ctx := context.Background()

	b1 := tc.newBroker(t, "node-1", "")
	require.NoError(t, b1.Start(ctx))
	defer b1.Stop(ctx)

	// A worker whose state file remembers a topic recreates it when it
	// joins, so the catalog survives a cluster restart.
	sf, err := state.Load(filepath.Join(t.TempDir(), "topics_state.json"))
	require.NoError(t, err)
	require.NoError(t, sf.AddTopic("orders", 4))

	b2 := New(Config{
		InstanceName: "node-2",
		MasterURL:    loopbackMasterURL(t, b1),
		Store:        tc.store,
		State:        sf,
		Registry:     registry.New(tc.store, sf),
		Election:     election.DefaultConfig(),
	})
	require.NoError(t, b2.Start(ctx))
	defer b2.Stop(ctx)

	reg := registry.New(tc.store, nil)
	topics, err := reg.ListTopics(ctx)
	require.NoError(t, err)
	assert.Contains(t, topics, "orders")

	count, err := reg.PartitionCount(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
