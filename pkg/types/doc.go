/*
Package types defines the core data model shared across the MOM middleware:
instance identity and role, the topic catalog entry, the master record kept
in the coordination store, wire statuses, and the sentinel error kinds used
for cross-component error classification.
*/
package types
