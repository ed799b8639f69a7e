/*
Package registry persists and serves the topic catalog: topic creation
and deletion, content-hash partition routing, append and head-pop per
partition, and occupancy stats. Messages live in the shared coordination
store; the catalog is mirrored to the local state file so it survives a
cold start of the store.
*/
package registry
