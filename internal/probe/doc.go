// Package probe extracts technical metadata from uploaded media:
// dimensions, orientation, capture timestamp and playback duration.
//
// Extraction is best-effort. The external probe tool is tried first;
// images additionally consult embedded exif data and, as a last resort,
// the file header. Whatever cannot be determined stays at its zero
// value and the pipeline carries on.
package probe
