// Package fingerprint computes stable content hashes for uploaded files.
//
// The hash is used for advisory duplicate detection: a match against an
// existing record is recorded and logged, but never blocks processing.
package fingerprint
