// Package flows contains the orchestration logic of the session core as
// pure functions over dependency structs. Each flow receives everything it
// needs — directory lookups, policy evaluation, token issuance, audit and
// metric hooks — as funcs, so the root package stays a thin composition
// layer and flows are testable without Redis, HTTP, or signing keys.
//
// # What this package must NOT do
//
//   - Import the root package or construct engine-level types.
//   - Retry any dependency call. Failures are local to a single call.
package flows
