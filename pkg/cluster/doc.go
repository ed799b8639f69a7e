// Package cluster holds the master-owned worker membership registry and
// its periodic health checking.
package cluster
