package master

import (
	"context"
	"path/filepath"
	"testing"
	"time"

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

func fastElection() election.Config {
	cfg := election.DefaultConfig()
	cfg.HeartbeatInterval = 20 * time.Millisecond
	cfg.HeartbeatTTL = time.Second
	return cfg
}

func newTestMaster(t *testing.T) (*Master, *store.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := store.NewRedisStore(mr.Addr())
	t.Cleanup(func() { s.Close() })

	sf, err := state.Load(filepath.Join(t.TempDir(), "topics_state.json"))
	require.NoError(t, err)

	m := New(Config{
		InstanceName:        "master-node",
		Store:               s,
		State:               sf,
		Registry:            registry.New(s, sf),
		Election:            fastElection(),
		HealthCheckInterval: time.Hour,
	})
	return m, s
}

func TestStartClaimsMasterRecord(t *testing.T) {
	m, s := newTestMaster(t)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	defer m.Stop(ctx)

	addr, ok, err := s.Get(ctx, election.MasterKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, m.LocalAddress(), addr)

	_, ok, err = s.Get(ctx, election.MasterPublicKey)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = s.Get(ctx, election.MasterPortKey)
	require.NoError(t, err)
	assert.True(t, ok)

	// The master registered itself as the first instance.
	assert.Contains(t, m.Membership().List(), "master-node")

	// The heartbeat refresher is running.
	require.Eventually(t, func() bool {
		ok, err := s.Exists(context.Background(), election.HeartbeatKey)
		return err == nil && ok
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSecondMasterRejected(t *testing.T) {
	m, s := newTestMaster(t)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	defer m.Stop(ctx)

	sf, err := state.Load(filepath.Join(t.TempDir(), "topics_state.json"))
	require.NoError(t, err)
	second := New(Config{
		InstanceName:        "pretender",
		Store:               s,
		State:               sf,
		Registry:            registry.New(s, sf),
		Election:            fastElection(),
		HealthCheckInterval: time.Hour,
	})

	err = second.Start(ctx)
	assert.ErrorIs(t, err, types.ErrAlreadyExists)
}

func TestStopRemovesMasterKeys(t *testing.T) {
	m, s := newTestMaster(t)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	m.Stop(ctx)

	for _, key := range []string{
		election.MasterKey,
		election.MasterPublicKey,
		election.MasterPortKey,
		election.HeartbeatKey,
	} {
		ok, err := s.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, "key %s must be removed on shutdown", key)
	}
}

func TestMasterServesMessageService(t *testing.T) {
	m, _ := newTestMaster(t)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	defer m.Stop(ctx)

	client := wire.NewClient(m.LocalAddress(), wire.DefaultClientConfig())

	resp, err := client.CreateTopic("orders", 4)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, resp.Status)

	resp, err = client.SendMessage("orders", "m1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, resp.Status)

	resp, err = client.ReceiveMessage("orders")
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, resp.Status)
	assert.Equal(t, "m1", resp.Message)

	resp, err = client.ReceiveMessage("orders")
	require.NoError(t, err)
	assert.Equal(t, types.StatusEmpty, resp.Status)
}

func TestGetNextInstanceOverWire(t *testing.T) {
	m, _ := newTestMaster(t)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	defer m.Stop(ctx)

	client := wire.NewClient(m.LocalAddress(), wire.DefaultClientConfig())
	inst, err := client.GetNextInstance()
	require.NoError(t, err)
	assert.Equal(t, "master-node", inst.Name)
	assert.NotEmpty(t, inst.Address)
}

func TestAdoptRegistry(t *testing.T) {
	m, _ := newTestMaster(t)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	defer m.Stop(ctx)

	m.AdoptRegistry(map[string]string{
		"node-2": "10.0.0.2:5001",
		"broken": "not-an-address",
		"node-3": "10.0.0.3:5002",
	})

	list := m.Membership().List()
	assert.Contains(t, list, "node-2")
	assert.Contains(t, list, "node-3")
	assert.NotContains(t, list, "broken")
}
