// Package ratelimit implements fixed-window rate limiting for login, upload,
// and API actions.
//
// A fixed window resets at a discrete instant: the first call at or past the
// reset instant restarts the counter at 1, every other call increments it and
// is denied once the action's ceiling is exceeded. State is in-memory and
// lost on restart, which is acceptable for abuse limiting.
package ratelimit
