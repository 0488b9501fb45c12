// Package sqlite provides the durable core.Store implementation backed by a
// SQLite connection pool. It is the store to use when boot-time recovery
// across process restarts matters; the in-memory store in the parent package
// covers tests and ephemeral processes.
package sqlite
