// Package audit provides the asynchronous audit event pipeline used by the
// engine: a canonical event model, pluggable sinks, and a buffered dispatcher
// that keeps sink latency off the authentication hot path.
//
// # What this package must NOT do
//
//   - Block an authentication flow on a slow sink (events are buffered and,
//     when configured, dropped under backpressure).
//   - Import the root package or any sibling package.
package audit
