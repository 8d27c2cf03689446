// Package pantry implements the inventory manager: adding, editing, and
// deleting items while keeping each item's photo in step with its document.
//
// Mutations take an immutable Draft. A draft with a blank name, price, or
// quantity is skipped without side effects and reported through
// Outcome.Skipped rather than as an error. Photos live in the asset store
// under "images/<name>"; the key is recorded on the document so later
// cleanup removes the blob that was actually written even after a rename.
//
// Photo cleanup is best effort. A failed delete is logged with
// event_type=asset_cleanup_failed, reported in Outcome.Cleanup, and never
// aborts the mutation. A key still referenced by another document is left in
// place.
//
// There is no locking across calls; concurrent writes to one item resolve
// last-writer-wins in the record store.
package pantry
