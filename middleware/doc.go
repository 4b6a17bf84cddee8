// Package middleware exposes HTTP middleware adapters enforcing access-token
// authentication on top of authcore.Engine verification.
//
// # Guards
//
//   - [Guard] — verifies the bearer access token and injects its claims.
//   - [RequireTenant] — additionally pins the request to one tenant.
//
// Each guard reads the Authorization header, calls Engine.VerifyAccessToken,
// and injects the validated claims into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Accept refresh tokens on the Authorization header.
//   - Make tenant authorization decisions beyond membership presence.
package middleware
