// Package handlers implements the HTTP surface: session auth, media
// upload and retrieval, review decisions, and operational endpoints.
//
// Upload handling is the synchronous half of the ingest path: validate,
// store the original, create the record, schedule processing, return.
// Everything that can take long or fail partially runs in the background
// pipeline.
package handlers
