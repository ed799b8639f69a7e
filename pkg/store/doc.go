/*
Package store abstracts the shared coordination store the cluster depends
on: string keys with TTLs, atomic set-if-not-exists, membership sets,
append-only lists, and advisory locks.

All cluster-wide state lives behind this interface: the master record and
its heartbeat, the topic catalog, the per-partition message lists, and the
election lock. The production implementation targets a Redis-compatible
server via go-redis; tests run the same contract against miniredis.
*/
package store
