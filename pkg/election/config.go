package election

import "time"

// Config carries every interval the engine runs on. Tests compress these;
// production uses DefaultConfig.
type Config struct {
	// Master-side heartbeat.
	HeartbeatInterval time.Duration
	HeartbeatTTL      time.Duration

	// Worker-side watchdog.
	WatchdogGrace    time.Duration
	WatchdogInterval time.Duration
	// MaxFailures is how many consecutive confirmed failures escalate to
	// an election. Two tolerates a single transient miss.
	MaxFailures int

	// Probe timeout used when the heartbeat is missing but the master
	// record still exists.
	ProbeTimeout time.Duration

	// Election protocol.
	PriorityTTL time.Duration
	LockTTL     time.Duration
	DelayMin    time.Duration // pre-attempt random delay lower bound
	DelayMax    time.Duration
	JitterMin   time.Duration // post-trigger jitter lower bound
	JitterMax   time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 5 * time.Second,
		HeartbeatTTL:      10 * time.Second,
		WatchdogGrace:     15 * time.Second,
		WatchdogInterval:  5 * time.Second,
		MaxFailures:       2,
		ProbeTimeout:      1 * time.Second,
		PriorityTTL:       30 * time.Second,
		LockTTL:           30 * time.Second,
		DelayMin:          1 * time.Second,
		DelayMax:          3 * time.Second,
		JitterMin:         500 * time.Millisecond,
		JitterMax:         2 * time.Second,
	}
}
