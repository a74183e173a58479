// Package storage is the local file store for originals and derived assets.
//
// Files are addressed by (collection, record id, filename) and served under
// a deterministic relative URL. Derivative generation writes to a per-record
// scratch directory first; successful outputs are renamed, not copied, into
// the permanent location so readers never observe partial writes.
package storage
