// Package metrics provides Prometheus instrumentation for the media catalog
// service.
//
// All metrics are prefixed with "media_catalog_" to avoid naming collisions
// with other applications. The categories are:
//
//   - HTTP: request counts, durations, and in-flight gauge
//   - Database: query counts, durations, open connections
//   - Pipeline: run counts and durations per terminal status, active runs,
//     dispatcher queue depth, advisory duplicate detections
//   - Derivatives: generation attempts and durations per variant
//     (display, blur, thumb, video, poster)
//   - Policy: upload validation failures and rate-limit rejections
//   - Approval: review decision counts and propagation failures
//   - Authentication: login attempt outcomes
//
// Metrics are automatically registered with the default Prometheus registry
// using promauto. Mount promhttp.Handler() on the metrics endpoint to expose
// them, and call InitializeMetrics() once at startup so every label
// combination is present from the first scrape.
package metrics
