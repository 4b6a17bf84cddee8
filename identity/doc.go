// Package identity exchanges OAuth2 Authorization Code + PKCE callbacks with
// the external identity provider and returns normalized identity claims. It
// is the only part of the session core that performs outbound network I/O,
// and every call is bounded by a client-side timeout.
package identity
