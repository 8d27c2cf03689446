// Package assets stores item photos as opaque blobs addressed by key and
// returns the public URL each blob can be fetched from.
//
// Two backends are provided: a local directory served by the API under
// /assets/, and an S3 bucket fronted by a public URL. Keys are derived from
// item names via ImageKey, so two items with the same name share a blob.
package assets
