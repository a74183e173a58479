// Package policy implements the synchronous checks that gate record
// creation: extension/kind validation, array-shaped field validation, and
// fixed-window rate limiting.
//
// Validation errors are the only failures an uploader sees synchronously.
// Everything downstream of record creation is asynchronous and surfaces
// through the record's processing-status fields instead.
package policy
