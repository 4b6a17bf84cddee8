// Package authcore is the authentication and multi-tenant session core of the
// Sprintloop platform: local credential login with brute-force lockout,
// external identity-provider login via OAuth2 Authorization Code + PKCE,
// short-lived signed access tokens paired with rotating versioned refresh
// tokens, and session construction for users that act under several tenants
// with per-tenant roles.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (AuthSession, TokenPair, User, TenantMembership). Flow
// orchestration, lockout policy, PKCE state storage, rate limiting, and audit
// dispatch live under internal/ and are never exported. The host application
// supplies persistence through [UserDirectory]; authcore never talks to the
// user database directly.
//
// # What this package must NOT do
//
//   - Render HTTP responses or own routing; controllers belong to the host.
//   - Persist sessions. An [AuthSession] is rebuilt on every login, refresh,
//     and tenant switch; only User.TokenVersion outlives a call.
//   - Retry failed credential checks, token verifications, or provider
//     exchanges. All failures are local to a single call.
package authcore
