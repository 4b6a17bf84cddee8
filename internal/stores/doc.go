// Package stores holds the ephemeral PKCE state storage used by the external
// login flow: state token → (code verifier, code challenge) with a fixed TTL
// and strict single-use consumption.
//
// Two backends exist. The in-memory store serves single-instance
// deployments; the Redis store serves deployments where the initiating and
// completing requests may land on different instances. Both guarantee that
// Consume is atomic check-and-delete, so a state value is usable at most
// once even under concurrent completion attempts.
//
// Expiry is checked lazily at consumption; the optional sweeper on the
// memory store only bounds memory, never correctness.
package stores
