// Package middleware provides the HTTP middleware chain: access logging
// in W3C Extended Log Format and Prometheus request metrics with bounded
// path cardinality.
package middleware
