// Package records persists the inventory collection in SQLite and pushes full
// collection snapshots to live subscribers after every change.
//
// Documents are addressed by an opaque UUID assigned on Create. Writes are
// single-row statements, so the only consistency guarantee is per-document
// atomicity; concurrent writers to the same id resolve last-writer-wins.
package records
