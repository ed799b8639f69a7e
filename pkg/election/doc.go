/*
Package election implements single-leader election and liveness for the
cluster, backed by the shared coordination store.

The master refreshes a short-TTL heartbeat key. Every worker runs a
watchdog that, after a startup grace period, checks master liveness on a
fixed tick: a missing master record triggers immediate failover, a missing
heartbeat is confirmed with a short TCP probe, and two consecutive
confirmed failures escalate to an election.

The election itself is lock-mediated. Candidates advertise a boot-time
priority, wait a randomized delay, re-verify master absence, and race for
a non-blocking advisory lock; the winner re-verifies once more under the
lock, clears the stale master keys, and promotes itself. Priorities bias
who tries first; the lock alone guarantees a single winner.
*/
package election
