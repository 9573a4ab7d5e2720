// Package session holds the gateway's shared session registry: a concurrent
// token→record store created once and injected into every component that
// needs it.
//
// A record is anonymous until a connection handle is promoted onto it, at
// which point the session is authenticated. Records are keyed by opaque,
// server-generated tokens (UUIDs, since uniqueness is the hard requirement).
// All operations are O(1) under a single mutex except PurgeByConnection,
// which scans the table by handle value and is safe to run concurrently
// with inserts and promotions on other tokens.
package session
