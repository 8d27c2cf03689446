// Package server assembles the running pantry service: the SQLite record
// store, the asset backend, the inventory manager, the recipe generator, and
// the HTTP API. A file lock under the data directory keeps a second server
// from serving the same database.
package server
