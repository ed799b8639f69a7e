package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoseTor101/mom-middleware/pkg/election"
	"github.com/JoseTor101/mom-middleware/pkg/log"
	"github.com/JoseTor101/mom-middleware/pkg/master"
	"github.com/JoseTor101/mom-middleware/pkg/netutil"
	"github.com/JoseTor101/mom-middleware/pkg/registry"
	"github.com/JoseTor101/mom-middleware/pkg/state"
	"github.com/JoseTor101/mom-middleware/pkg/store"
	"github.com/JoseTor101/mom-middleware/pkg/types"
	"github.com/JoseTor101/mom-middleware/pkg/wire"
)

// registerTimeout bounds the connection to the master during startup
// registration.
const registerTimeout = 5 * time.Second

// Config assembles a broker instance.
type Config struct {
	InstanceName string
	// MasterURL optionally pins the master address; otherwise the broker
	// discovers it from the coordination store.
	MasterURL string
	// Port pins the RPC listener; 0 picks a free port.
	Port int

	Store    store.Store
	State    *state.File
	Registry *registry.Registry
	Election election.Config

	// AutoRemove is handed to the master role on promotion.
	AutoRemove bool
}

// Broker is one instance of the middleware. It always serves the message
// RPCs from its local topic registry; the election engine may additionally
// hand it the master role.
type Broker struct {
	config Config
	server *wire.Server
	engine *election.Engine
	logger zerolog.Logger

	mu     sync.Mutex
	port   int
	master *master.Master
	cancel context.CancelFunc
}

// New builds a broker instance.
func New(cfg Config) *Broker {
	b := &Broker{
		config: cfg,
		logger: log.WithInstance(log.WithComponent("broker"), cfg.InstanceName),
	}
	b.server = wire.NewServer(&handler{broker: b})
	b.engine = election.NewEngine(cfg.Store, cfg.Election, cfg.InstanceName, b.promote)
	return b
}

// Port returns the bound RPC port once started.
func (b *Broker) Port() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.port
}

// Address returns the broker's reachable local address once started.
func (b *Broker) Address() string {
	return netutil.JoinHostPort(netutil.LocalIP(), b.Port())
}

// IsMaster reports whether this instance currently holds the master role.
func (b *Broker) IsMaster() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.master != nil
}

// Master returns the master role when held, or nil.
func (b *Broker) Master() *master.Master {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.master
}

// Start binds the listener, registers with the current master (or claims
// the master role when none exists), synchronizes topic metadata from the
// state file, and launches the master watchdog.
func (b *Broker) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", b.config.Port)
	port, err := b.server.Listen(addr)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.port = port
	b.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	go func() {
		if err := b.server.Serve(runCtx); err != nil {
			b.logger.Error().Err(err).Msg("rpc server stopped")
		}
	}()
	b.logger.Info().Int("port", port).Msg("rpc server started")

	masterAddr, err := b.resolveMasterAddress(ctx)
	if err != nil {
		// No master anywhere: the first instance to start claims the
		// role itself.
		b.logger.Info().Msg("no master found, claiming master role")
		if err := b.promote(ctx); err != nil {
			cancel()
			return err
		}
		return nil
	}

	if err := b.registerWithMaster(masterAddr); err != nil {
		cancel()
		return err
	}
	b.syncTopicsFromState(ctx)

	go func() {
		if b.engine.Watch(runCtx) {
			b.logger.Info().Msg("watchdog exited after promotion")
		}
	}()
	return nil
}

// Stop shuts the broker down, releasing the master role first when held.
func (b *Broker) Stop(ctx context.Context) {
	b.mu.Lock()
	m := b.master
	cancel := b.cancel
	b.mu.Unlock()

	if m != nil {
		m.Stop(ctx)
	}
	if cancel != nil {
		cancel()
	}
	if err := b.server.Close(); err != nil {
		b.logger.Debug().Err(err).Msg("server close")
	}
	b.logger.Info().Msg("broker stopped")
}

// resolveMasterAddress prefers the explicit URL, then the public record,
// then the internal one. Connecting to our own public IP is rewritten to
// the local network to avoid hairpin routing.
func (b *Broker) resolveMasterAddress(ctx context.Context) (string, error) {
	if b.config.MasterURL != "" {
		return netutil.ResolveHairpin(b.config.MasterURL, netutil.PublicIP()), nil
	}

	if addr, ok, err := b.config.Store.Get(ctx, election.MasterPublicKey); err == nil && ok && addr != "" {
		return netutil.ResolveHairpin(addr, netutil.PublicIP()), nil
	}
	if addr, ok, err := b.config.Store.Get(ctx, election.MasterKey); err == nil && ok && addr != "" {
		return netutil.RewriteLocalHostname(addr), nil
	}
	return "", fmt.Errorf("%w: could not determine master address", types.ErrNotFound)
}

func (b *Broker) registerWithMaster(masterAddr string) error {
	b.logger.Info().Str("master", masterAddr).Msg("connecting to master")

	client := wire.NewClient(masterAddr, wire.ClientConfig{
		DialTimeout: registerTimeout,
		CallTimeout: registerTimeout,
		KeepAlive:   5 * time.Second,
	})
	resp, err := client.RegisterInstance(b.config.InstanceName, netutil.LocalIP(), int32(b.Port()))
	if err != nil {
		return fmt.Errorf("failed to register with master: %w", err)
	}
	if resp.Status != types.StatusSuccess {
		return fmt.Errorf("%w: master rejected registration: %s", types.ErrAlreadyExists, resp.Message)
	}
	b.logger.Info().Str("master", masterAddr).Msg("registered with master")
	return nil
}

// syncTopicsFromState recreates every topic recorded in the state file on
// the local registry so partition markers and empty lists exist.
func (b *Broker) syncTopicsFromState(ctx context.Context) {
	if b.config.State == nil {
		return
	}
	for _, topic := range b.config.State.Topics() {
		b.logger.Info().Str("topic", topic.Name).Int("partitions", topic.Partitions).Msg("syncing topic")
		if err := b.config.Registry.CreateTopic(ctx, topic.Name, topic.Partitions); err != nil {
			b.logger.Error().Err(err).Str("topic", topic.Name).Msg("topic sync failed")
		}
	}
}

// promote takes over the master role in-process. It runs under the
// election lock during failover, and directly at startup when no master
// exists yet.
func (b *Broker) promote(ctx context.Context) error {
	name := b.config.InstanceName
	if name == "" {
		name = "master-node"
	} else {
		name = name + "-master"
	}

	m := master.New(master.Config{
		InstanceName: name,
		Store:        b.config.Store,
		State:        b.config.State,
		Registry:     b.config.Registry,
		Election:     b.config.Election,
		AutoRemove:   b.config.AutoRemove,
	})
	if err := m.Start(ctx); err != nil {
		return err
	}

	// Carry the cached registry view across the promotion so workers
	// known to the old master survive the failover.
	if b.config.State != nil {
		m.AdoptRegistry(b.config.State.Instances())
	}

	b.mu.Lock()
	b.master = m
	b.mu.Unlock()
	return nil
}
