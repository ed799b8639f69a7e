/*
Package master implements the master role: exclusive ownership of the
worker registry, round-robin dispatch with failover, the liveness
heartbeat, and the periodic cluster health check.

The master also registers itself as a regular instance, so a single-node
cluster is immediately usable. On shutdown the master record is removed
from the coordination store; after a crash the heartbeat TTL expires and
the workers' watchdogs take over.
*/
package master
