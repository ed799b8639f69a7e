package dispatch

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/JoseTor101/mom-middleware/pkg/cluster"
	"github.com/JoseTor101/mom-middleware/pkg/log"
	"github.com/JoseTor101/mom-middleware/pkg/metrics"
	"github.com/JoseTor101/mom-middleware/pkg/types"
	"github.com/JoseTor101/mom-middleware/pkg/wire"
)

// Sender is the delivery capability the dispatcher needs from a peer.
type Sender interface {
	SendMessage(topic, message string) (*wire.MessageResponse, error)
}

// SenderFunc builds a Sender for a peer address. Production wires this to
// wire.NewClient; tests substitute fakes.
type SenderFunc func(addr string) Sender

// DefaultSenderFunc dials peers with the dispatch deadlines: 5 s connect
// keepalive, 1 s dial timeout, 3 s call deadline, no client-side retry.
func DefaultSenderFunc(addr string) Sender {
	return wire.NewClient(addr, wire.DefaultClientConfig())
}

// Dispatcher forwards sends to workers in round-robin order, cascading to
// the next worker when the selected one is unreachable. The cursor
// advances on every attempt, successful or not, so retry load spreads
// across the cluster instead of hammering the first healthy peer.
type Dispatcher struct {
	membership *cluster.Membership
	newSender  SenderFunc
	logger     zerolog.Logger

	mu     sync.Mutex
	cursor int
}

// New creates a dispatcher over the membership registry. A new master
// always starts from cursor 0.
func New(membership *cluster.Membership, newSender SenderFunc) *Dispatcher {
	if newSender == nil {
		newSender = DefaultSenderFunc
	}
	return &Dispatcher{
		membership: membership,
		newSender:  newSender,
		logger:     log.WithComponent("dispatch"),
	}
}

// next picks the instance at the cursor and advances it modulo n.
func (d *Dispatcher) next(names []string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cursor >= len(names) {
		d.cursor = 0
	}
	name := names[d.cursor]
	d.cursor = (d.cursor + 1) % len(names)
	return name
}

// Next returns the next instance in round-robin order, with its address
// rewritten for same-machine callers. Serves the GetNextInstance RPC.
func (d *Dispatcher) Next() (string, string, error) {
	names, _ := d.membership.Snapshot()
	if len(names) == 0 {
		return "", "", types.ErrNoInstances
	}
	name := d.next(names)
	addr, ok := d.membership.Address(name)
	if !ok {
		return "", "", types.ErrNoInstances
	}
	return name, addr, nil
}

// SendToTopic delivers a message to the topic via the next available
// worker. Every registered worker is attempted at most once; when all
// fail the error wraps types.ErrAllUnreachable with the suspect count.
func (d *Dispatcher) SendToTopic(topic, message string) (*wire.MessageResponse, error) {
	names, addrs := d.membership.Snapshot()
	if len(names) == 0 {
		return nil, types.ErrNoInstances
	}

	var offline []string
	for attempt := 0; attempt < len(names); attempt++ {
		name := d.next(names)
		addr, ok := addrs[name]
		if !ok {
			continue
		}

		metrics.DispatchAttempts.Inc()
		d.logger.Debug().Str("instance", name).Str("address", addr).Str("topic", topic).Msg("attempting delivery")

		resp, err := d.newSender(addr).SendMessage(topic, message)
		if err == nil {
			d.logger.Info().Str("instance", name).Str("topic", topic).Msg("message dispatched")
			return resp, nil
		}

		metrics.DispatchFailures.Inc()
		d.logger.Warn().Err(err).Str("instance", name).Msg("delivery failed, trying next instance")
		offline = append(offline, name)
	}

	return nil, fmt.Errorf("%w: %d instances unreachable", types.ErrAllUnreachable, len(offline))
}
