// Package pipeline orchestrates the background processing run for a
// record: fingerprinting, metadata extraction, derivative generation and
// status bookkeeping.
//
// A run is structural work; variant-level derivative failures stay
// contained inside generation. Only structural errors (missing source,
// unusable scratch space, database writes failing) mark a record failed,
// and a failed run sweeps any derivatives that were already placed.
package pipeline
