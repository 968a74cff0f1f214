// Package simulator fakes the generation backend for development and
// integration tests. An Engine holds feedback items and advances their SSML
// and audio pipelines one transition per step, broadcasting the resulting
// events; the Server exposes the same fetch and SSE endpoints the real
// backend serves, so the remote client and the watch command run against it
// unchanged.
package simulator
