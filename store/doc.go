// Package store provides the built-in core.Store implementations. The
// in-memory store in this package is volatile and suited to tests and
// ephemeral demo processes; the sqlite subpackage provides the durable
// variant used when recovery across process restarts matters.
package store
