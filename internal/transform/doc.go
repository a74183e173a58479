// Package transform wraps the external transformation tools behind typed
// command builders and a mockable Executor.
//
// Each builder returns a Command describing one invocation: aspect-fit
// scaling, the blurred cover-fit backdrop, thumbnails, H.264 transcoding,
// still-frame extraction, metadata and duration probes, and content
// checksums. Builders are pure functions of their inputs, so orchestration
// code can be unit tested deterministically against a mock Executor while
// production wiring uses the exec-backed Runner.
package transform
