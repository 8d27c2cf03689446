// Package services defines shared utilities consumed by the inventory manager,
// the recipe pipeline, and the external integrations behind them.
//
// Key responsibilities:
//   - Context helpers that stamp item IDs, operation names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers (the HTTP API,
//     the CLI) can classify failures with errors.Is instead of string matching.
package services
