// Package repositories implements SQLite persistence for local records that are not secrets.
//
// Credentials live in package keychain; this package only keeps the auth event history, an audit trail of
// session transitions that never contains token material.
//
// Key Implementations:
//   - [AuthEventRepository] : append-only auth event log with bounded retention
//   - [AuthJournal] : adapts the repository to the session manager's journal port
//
// Sequence numbers give events a stable, human-readable ordering (event #42) independent of UUIDs and
// timestamps. The [NextSequence] function atomically increments per-table sequence counters in dedicated
// sequence tables.
package repositories
