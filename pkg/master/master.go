package master

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoseTor101/mom-middleware/pkg/cluster"
	"github.com/JoseTor101/mom-middleware/pkg/dispatch"
	"github.com/JoseTor101/mom-middleware/pkg/election"
	"github.com/JoseTor101/mom-middleware/pkg/log"
	"github.com/JoseTor101/mom-middleware/pkg/metrics"
	"github.com/JoseTor101/mom-middleware/pkg/netutil"
	"github.com/JoseTor101/mom-middleware/pkg/registry"
	"github.com/JoseTor101/mom-middleware/pkg/state"
	"github.com/JoseTor101/mom-middleware/pkg/store"
	"github.com/JoseTor101/mom-middleware/pkg/types"
	"github.com/JoseTor101/mom-middleware/pkg/wire"
)

// healthCheckInterval paces the periodic probing of registered workers.
const healthCheckInterval = 60 * time.Second

// Config assembles the collaborators the master role needs.
type Config struct {
	InstanceName string
	Store        store.Store
	State        *state.File
	Registry     *registry.Registry
	Election     election.Config

	// Port pins the RPC listener; 0 picks a free port.
	Port int
	// AutoRemove lets the periodic health check unregister offline
	// workers instead of only reporting them.
	AutoRemove bool
	// NewSender overrides the dispatcher's peer client factory (tests).
	NewSender dispatch.SenderFunc
	// HealthCheckInterval overrides the probe period (tests). Zero means
	// the production default.
	HealthCheckInterval time.Duration
}

// Master is the instance currently holding the master role: it owns the
// worker registry, the dispatcher, the heartbeat, and the health checker,
// and serves both RPC services.
type Master struct {
	config     Config
	membership *cluster.Membership
	dispatcher *dispatch.Dispatcher
	server     *wire.Server
	logger     zerolog.Logger

	mu            sync.Mutex
	localAddress  string
	publicAddress string
	port          int
	cancel        context.CancelFunc
	done          chan struct{}
}

// New builds the master role. Nothing touches the network or the store
// until Start.
func New(cfg Config) *Master {
	if cfg.InstanceName == "" {
		cfg.InstanceName = "master-node"
	}
	m := &Master{
		config:     cfg,
		membership: cluster.NewMembership(cfg.State),
		logger:     log.WithInstance(log.WithComponent("master"), cfg.InstanceName),
	}
	m.dispatcher = dispatch.New(m.membership, cfg.NewSender)
	m.server = wire.NewServer(&handler{master: m})
	return m
}

// Membership exposes the worker registry.
func (m *Master) Membership() *cluster.Membership {
	return m.membership
}

// Dispatcher exposes the round-robin dispatcher.
func (m *Master) Dispatcher() *dispatch.Dispatcher {
	return m.dispatcher
}

// LocalAddress returns the bound internal address once started.
func (m *Master) LocalAddress() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.localAddress
}

// PublicAddress returns the advertised public address once started.
func (m *Master) PublicAddress() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.publicAddress
}

// Start claims the master record, binds the RPC listener, registers this
// instance as the first worker, and launches the master-side background
// tasks. A second master attempting to register gets ErrAlreadyExists.
func (m *Master) Start(ctx context.Context) error {
	port := m.config.Port
	if port == 0 {
		var err error
		port, err = netutil.FindFreePort()
		if err != nil {
			return fmt.Errorf("%w: no free port: %v", types.ErrInternal, err)
		}
	}

	localIP := netutil.LocalIP()
	publicIP := netutil.PublicIP()
	localAddr := netutil.JoinHostPort(localIP, port)
	publicAddr := netutil.JoinHostPort(publicIP, port)

	// The master record is claimed atomically; losing the race means a
	// live master already exists.
	claimed, err := m.config.Store.SetNX(ctx, election.MasterKey, localAddr, 0)
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("%w: master node is already registered", types.ErrAlreadyExists)
	}
	if err := m.config.Store.Set(ctx, election.MasterPublicKey, publicAddr, 0); err != nil {
		return err
	}
	if err := m.config.Store.Set(ctx, election.MasterPortKey, strconv.Itoa(port), 0); err != nil {
		return err
	}

	boundPort, err := m.server.Listen(fmt.Sprintf(":%d", port))
	if err != nil {
		// Claiming succeeded but serving cannot; leave no stale record.
		_ = m.config.Store.Del(ctx, election.MasterKey, election.MasterPublicKey, election.MasterPortKey)
		return err
	}

	m.mu.Lock()
	m.localAddress = localAddr
	m.publicAddress = publicAddr
	m.port = boundPort
	m.mu.Unlock()

	// The master serves the message service too, so it registers itself
	// as the first instance.
	if _, err := m.membership.Register(m.config.InstanceName, localIP, boundPort); err != nil {
		m.logger.Warn().Err(err).Msg("could not self-register as instance")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		if err := m.server.Serve(runCtx); err != nil {
			m.logger.Error().Err(err).Msg("rpc server stopped")
		}
	}()

	hb := election.NewHeartbeat(m.config.Store, m.config.Election)
	go hb.Run(runCtx)
	go m.runHealthChecks(runCtx)

	metrics.IsMaster.Set(1)
	m.logger.Info().
		Str("local", localAddr).
		Str("public", publicAddr).
		Msg("master node registered")
	return nil
}

// AdoptRegistry merges a worker's cached registry view into the live one.
// Used during failover to carry the membership across the promotion.
func (m *Master) AdoptRegistry(instances map[string]string) {
	for name, addr := range instances {
		host, port, err := splitHostPort(addr)
		if err != nil {
			m.logger.Warn().Str("name", name).Str("address", addr).Msg("skipping malformed registry entry")
			continue
		}
		if _, err := m.membership.Register(name, host, port); err != nil {
			m.logger.Debug().Err(err).Str("name", name).Msg("registry entry already present")
		}
	}
}

// Stop deletes the master record and shuts the RPC server down. Deleting
// the record is best effort; the heartbeat TTL cleans up after a crash.
func (m *Master) Stop(ctx context.Context) {
	if err := m.config.Store.Del(ctx,
		election.MasterKey,
		election.MasterPublicKey,
		election.MasterPortKey,
		election.HeartbeatKey,
	); err != nil {
		m.logger.Error().Err(err).Msg("failed to unregister master record")
	}

	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if err := m.server.Close(); err != nil {
		m.logger.Debug().Err(err).Msg("server close")
	}
	if done != nil {
		<-done
	}

	metrics.IsMaster.Set(0)
	m.logger.Info().Msg("master node unregistered")
}

func (m *Master) runHealthChecks(ctx context.Context) {
	interval := m.config.HealthCheckInterval
	if interval == 0 {
		interval = healthCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.membership.HealthCheck(m.config.AutoRemove)
		}
	}
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
