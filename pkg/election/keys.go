package election

import "fmt"

// Coordination store keys owned by the election and heartbeat machinery.
const (
	// MasterKey holds the master's internal host:port. No TTL; deleted
	// explicitly on shutdown or forcibly during failover.
	MasterKey = "master_node"
	// MasterPublicKey holds the host:port remote machines connect to.
	MasterPublicKey = "master_node_public"
	// MasterPortKey duplicates the master port for convenience.
	MasterPortKey = "master_node_port"
	// HeartbeatKey proves the master is actively alive while present.
	HeartbeatKey = "master_node_heartbeat"
	// LockKey is the advisory lock held during an election.
	LockKey = "master_node_election"
)

// PriorityKey is where a candidate advertises its election priority.
func PriorityKey(instance string) string {
	return fmt.Sprintf("election:priority:%s", instance)
}

// IsMasterFlagKey is the informational flag set when a node is promoted.
func IsMasterFlagKey(instance string) string {
	return fmt.Sprintf("node:%s:is_master", instance)
}
