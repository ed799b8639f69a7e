package election

import (
	"context"

	"github.com/JoseTor101/mom-middleware/pkg/netutil"
	"github.com/JoseTor101/mom-middleware/pkg/store"
	"github.com/JoseTor101/mom-middleware/pkg/wire"
)

// Liveness classifies the result of one master check.
type Liveness int

const (
	// MasterAlive means record and heartbeat (or a responsive probe)
	// confirm the master.
	MasterAlive Liveness = iota
	// MasterDown means record present but the master is not responding.
	MasterDown
	// MasterUnregistered means the master record itself is gone, the
	// explicit-unregistration path that triggers immediate failover.
	MasterUnregistered
)

// CheckMaster evaluates master liveness in the prescribed order: record
// absent → unregistered; heartbeat absent → confirm with a short probe to
// the advertised address; otherwise alive.
func CheckMaster(ctx context.Context, s store.Store, cfg Config) (Liveness, error) {
	addr, ok, err := s.Get(ctx, MasterKey)
	if err != nil {
		return MasterDown, err
	}
	if !ok || addr == "" {
		return MasterUnregistered, nil
	}

	hbOK, err := s.Exists(ctx, HeartbeatKey)
	if err != nil {
		return MasterDown, err
	}
	if !hbOK {
		// Heartbeat may merely be lagging; a live TCP accept settles it.
		if wire.Ping(netutil.RewriteLocalHostname(addr), cfg.ProbeTimeout) {
			return MasterAlive, nil
		}
		return MasterDown, nil
	}

	return MasterAlive, nil
}
