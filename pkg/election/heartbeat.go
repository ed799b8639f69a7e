package election

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoseTor101/mom-middleware/pkg/log"
	"github.com/JoseTor101/mom-middleware/pkg/store"
)

// Heartbeat refreshes the master liveness key while this instance holds
// the master role. Errors are logged and retried on the next tick; the
// refresher never terminates the process.
type Heartbeat struct {
	store  store.Store
	config Config
	logger zerolog.Logger
}

// NewHeartbeat creates the refresher.
func NewHeartbeat(s store.Store, cfg Config) *Heartbeat {
	return &Heartbeat{
		store:  s,
		config: cfg,
		logger: log.WithComponent("heartbeat"),
	}
}

// Run refreshes the heartbeat key until ctx is canceled. The first
// refresh happens immediately so watchdogs see a live master as soon as
// promotion completes.
func (h *Heartbeat) Run(ctx context.Context) {
	h.refresh(ctx)
	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.refresh(ctx)
		}
	}
}

func (h *Heartbeat) refresh(ctx context.Context) {
	if err := h.store.Set(ctx, HeartbeatKey, "alive", h.config.HeartbeatTTL); err != nil {
		h.logger.Error().Err(err).Msg("failed to refresh master heartbeat")
	}
}
