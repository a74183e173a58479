// Package mediatypes defines the kind-partitioned extension allow-lists
// used to validate uploads, and maps extensions to MIME types.
package mediatypes
