package election

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JoseTor101/mom-middleware/pkg/log"
	"github.com/JoseTor101/mom-middleware/pkg/metrics"
	"github.com/JoseTor101/mom-middleware/pkg/store"
	"github.com/JoseTor101/mom-middleware/pkg/types"
)

// PromoteFunc takes over the master role: it registers the master record,
// transfers the worker's cached registry, and starts the master-side
// tasks. It runs while the election lock is held.
type PromoteFunc func(ctx context.Context) error

// Engine runs the worker-side master watchdog and, when the master is
// confirmed gone, the lock-mediated election protocol. One engine runs
// per instance while in the worker role.
type Engine struct {
	store    store.Store
	config   Config
	instance string
	priority float64
	promote  PromoteFunc
	logger   zerolog.Logger
	rng      *rand.Rand
}

// NewEngine creates the engine. The election priority is chosen at boot
// and advertised during elections; the lock is the sole decider, the
// priority only biases who tries first.
func NewEngine(s store.Store, cfg Config, instance string, promote PromoteFunc) *Engine {
	return &Engine{
		store:    s,
		config:   cfg,
		instance: instance,
		priority: rand.Float64(),
		promote:  promote,
		logger:   log.WithInstance(log.WithComponent("election"), instance),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Priority exposes the boot-time election priority.
func (e *Engine) Priority() float64 {
	return e.priority
}

// Watch monitors master liveness until ctx is canceled or this instance
// is promoted. It returns true when promotion happened.
func (e *Engine) Watch(ctx context.Context) bool {
	e.logger.Info().Dur("grace", e.config.WatchdogGrace).Msg("master watchdog starting")
	select {
	case <-ctx.Done():
		return false
	case <-time.After(e.config.WatchdogGrace):
	}

	failures := 0
	ticker := time.NewTicker(e.config.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		liveness, err := CheckMaster(ctx, e.store, e.config)
		if err != nil {
			e.logger.Error().Err(err).Msg("master check failed")
			failures = 0
			continue
		}

		switch liveness {
		case MasterAlive:
			if failures > 0 {
				e.logger.Info().Msg("master responsive again, resetting failure count")
			}
			failures = 0

		case MasterUnregistered:
			e.logger.Warn().Msg("master record missing, initiating immediate failover")
			if e.runElection(ctx) {
				return true
			}
			failures = 0

		case MasterDown:
			failures++
			e.logger.Warn().Int("failures", failures).Int("max", e.config.MaxFailures).Msg("master appears down")
			if failures < e.config.MaxFailures {
				continue
			}
			// Post-trigger jitter keeps simultaneous candidates apart.
			e.sleep(ctx, e.randDuration(e.config.JitterMin, e.config.JitterMax))
			if e.runElection(ctx) {
				return true
			}
			failures = 0
		}
	}
}

// runElection wraps Elect with the log-and-continue policy of periodic
// tasks.
func (e *Engine) runElection(ctx context.Context) bool {
	won, err := e.Elect(ctx)
	if err != nil && !errors.Is(err, types.ErrElectionAborted) {
		e.logger.Error().Err(err).Msg("election failed")
	}
	return won
}

// Elect runs one election attempt. It returns true when this instance won
// and was promoted, and wraps types.ErrElectionAborted when another
// candidate held the lock or the master returned mid-protocol.
func (e *Engine) Elect(ctx context.Context) (bool, error) {
	attemptID := uuid.NewString()
	logger := e.logger.With().Str("attempt", attemptID).Logger()

	// Advertise our priority; expiry keeps stale candidacies from
	// lingering past the election window.
	prio := strconv.FormatFloat(e.priority, 'f', -1, 64)
	if err := e.store.Set(ctx, PriorityKey(e.instance), prio, e.config.PriorityTTL); err != nil {
		return false, err
	}

	// The boot-time priority biases who tries first: lower priority,
	// shorter delay. The lock still decides the winner.
	delay := e.config.DelayMin + time.Duration(e.priority*float64(e.config.DelayMax-e.config.DelayMin))
	logger.Info().Dur("delay", delay).Msg("waiting before election attempt")
	if !e.sleep(ctx, delay) {
		return false, ctx.Err()
	}

	liveness, err := CheckMaster(ctx, e.store, e.config)
	if err != nil {
		return false, err
	}
	if liveness == MasterAlive {
		logger.Info().Msg("master returned, aborting election")
		return false, fmt.Errorf("%w: master returned before lock", types.ErrElectionAborted)
	}

	lock, acquired, err := e.store.AcquireLock(ctx, LockKey, e.config.LockTTL)
	if err != nil {
		return false, err
	}
	if !acquired {
		logger.Info().Msg("another candidate holds the election lock")
		return false, fmt.Errorf("%w: lock denied", types.ErrElectionAborted)
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to release election lock")
		}
	}()

	// Re-verify under the lock; the master may have come back while we
	// were waiting.
	liveness, err = CheckMaster(ctx, e.store, e.config)
	if err != nil {
		return false, err
	}
	if liveness == MasterAlive {
		logger.Info().Msg("master back online under lock, aborting election")
		return false, fmt.Errorf("%w: master returned under lock", types.ErrElectionAborted)
	}

	logger.Info().Msg("confirmed master is down, promoting self")
	if err := e.store.Del(ctx, MasterKey, MasterPublicKey, MasterPortKey, HeartbeatKey); err != nil {
		return false, err
	}

	if err := e.promote(ctx); err != nil {
		return false, fmt.Errorf("promotion failed: %w", err)
	}

	if err := e.store.Set(ctx, IsMasterFlagKey(e.instance), "true", 0); err != nil {
		logger.Error().Err(err).Msg("failed to set promotion flag")
	}

	metrics.ElectionsWon.Inc()
	logger.Info().Msg("now operating as master")
	return true, nil
}

// sleep waits for d unless ctx ends first; returns false on cancellation.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (e *Engine) randDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(e.rng.Int63n(int64(max-min)))
}
