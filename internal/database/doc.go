// Package database manages all persistence for the media catalog service.
//
// It stores MediaRecord catalog entries, immutable ApprovalDecision review
// actions, and the login surface (users and sessions) in a single SQLite
// database opened in WAL mode.
//
// A record carries two independent status axes: publication (visibility,
// driven by review decisions) and processing (derivation health, driven by
// the background pipeline). The processing tracking columns are probed once
// at startup; on databases that predate them, status writes degrade to
// no-ops instead of failing pipeline runs.
package database
