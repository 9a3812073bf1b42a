// Package manager orchestrates completions over the context registry. It is
// split into small files by concern:
//
//   - manager.go: Manager type, construction and lifecycle (Open, Close, Shutdown).
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies them.
//   - complete.go: Complete, the resolve/busy/attach/run/finish sequence, and Stop.
//   - ops.go: non-generating pass-throughs (tokenize, embed, state, bench).
//   - lane.go: bounded worker lane that every native call runs on.
//   - events.go, eventpub_memory.go: lifecycle events and an in-memory publisher.
//   - metrics.go: Prometheus collectors.
//   - status_report.go: Status and Ready.
//
// Build tags: the native engine is linked only with `-tags=llama` (see package
// engine). Without it every open fails with a dependency-unavailable error.
package manager
