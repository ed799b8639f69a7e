package cluster

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoseTor101/mom-middleware/pkg/log"
	"github.com/JoseTor101/mom-middleware/pkg/metrics"
	"github.com/JoseTor101/mom-middleware/pkg/netutil"
	"github.com/JoseTor101/mom-middleware/pkg/state"
	"github.com/JoseTor101/mom-middleware/pkg/types"
	"github.com/JoseTor101/mom-middleware/pkg/wire"
)

// healthProbeTimeout is how long a registered address gets to accept a
// connection before the health check classifies it offline.
const healthProbeTimeout = 2 * time.Second

// Membership is the authoritative worker-address map. It is owned by the
// master process; workers only see it through RPC results. Every change is
// mirrored synchronously to the state file.
type Membership struct {
	mu        sync.Mutex
	instances map[string]string // name -> host:port
	order     []string          // registration order, drives round-robin
	state     *state.File
	logger    zerolog.Logger
}

// NewMembership builds the registry, seeding it from the state file's
// last-known view.
func NewMembership(sf *state.File) *Membership {
	m := &Membership{
		instances: make(map[string]string),
		state:     sf,
		logger:    log.WithComponent("cluster"),
	}
	if sf != nil {
		for name, addr := range sf.Instances() {
			m.instances[name] = addr
			m.order = append(m.order, name)
		}
		sort.Strings(m.order)
	}
	metrics.InstancesRegistered.Set(float64(len(m.instances)))
	return m
}

// Register adds an instance. A duplicate address is rejected with
// types.ErrAlreadyExists; a duplicate name is disambiguated with a numeric
// suffix. The assigned name is returned.
func (m *Membership) Register(name, host string, port int) (string, error) {
	addr := netutil.JoinHostPort(host, port)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.instances {
		if existing == addr {
			return "", fmt.Errorf("%w: instance already exists at %s", types.ErrAlreadyExists, addr)
		}
	}
	if _, taken := m.instances[name]; taken {
		base := name
		for i := len(m.instances) + 1; ; i++ {
			name = fmt.Sprintf("%s-%d", base, i)
			if _, taken := m.instances[name]; !taken {
				break
			}
		}
	}

	m.instances[name] = addr
	m.order = append(m.order, name)
	if err := m.persistLocked(); err != nil {
		return "", err
	}

	metrics.InstancesRegistered.Set(float64(len(m.instances)))
	m.logger.Info().Str("name", name).Str("address", addr).Msg("instance registered")
	return name, nil
}

// Unregister removes an instance. Idempotent.
func (m *Membership) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	addr, ok := m.instances[name]
	if !ok {
		return nil
	}
	delete(m.instances, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if err := m.persistLocked(); err != nil {
		return err
	}

	metrics.InstancesRegistered.Set(float64(len(m.instances)))
	m.logger.Info().Str("name", name).Str("address", addr).Msg("instance unregistered")
	return nil
}

// List returns a copy of the registry.
func (m *Membership) List() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.instances))
	for name, addr := range m.instances {
		out[name] = addr
	}
	return out
}

// Snapshot returns the instance names in registration order together with
// their addresses. The dispatcher iterates this.
func (m *Membership) Snapshot() ([]string, map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	addrs := make(map[string]string, len(m.instances))
	for name, addr := range m.instances {
		addrs[name] = addr
	}
	return names, addrs
}

// Len returns the registry size.
func (m *Membership) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

// Address resolves one instance, rewriting local hostnames to loopback for
// callers on the same machine.
func (m *Membership) Address(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr, ok := m.instances[name]
	if !ok {
		return "", false
	}
	return netutil.RewriteLocalHostname(addr), true
}

// persistLocked flushes to the state file. Caller holds m.mu.
func (m *Membership) persistLocked() error {
	if m.state == nil {
		return nil
	}
	return m.state.SetInstances(m.instances)
}

// HealthCheck probes every registered address. Offline instances are
// unregistered when autoRemove is set, otherwise left for the operator.
// The number of instances that answered is returned.
func (m *Membership) HealthCheck(autoRemove bool) int {
	instances := m.List()
	m.logger.Info().Int("instances", len(instances)).Msg("running health check")

	var offline []string
	for name, addr := range instances {
		if wire.Ping(netutil.RewriteLocalHostname(addr), healthProbeTimeout) {
			m.logger.Debug().Str("name", name).Str("address", addr).Msg("instance alive")
			continue
		}
		m.logger.Warn().Str("name", name).Str("address", addr).Msg("instance unreachable")
		offline = append(offline, name)
	}

	if len(offline) > 0 && autoRemove {
		for _, name := range offline {
			if err := m.Unregister(name); err != nil {
				m.logger.Error().Err(err).Str("name", name).Msg("failed to remove offline instance")
			}
		}
		m.logger.Info().Int("removed", len(offline)).Msg("removed offline instances")
	} else if len(offline) > 0 {
		m.logger.Warn().Int("offline", len(offline)).Msg("offline instances found; remove them manually")
	}

	return len(instances) - len(offline)
}
