// Package jwt issues and verifies the two token kinds of the session core:
// short-lived access tokens carrying the full tenant membership snapshot, and
// long-lived refresh tokens carrying the user's token version.
//
// Claims are explicit typed structs per token kind, and every token embeds a
// "typ" discriminator that parsing enforces, so an access token can never be
// replayed as a refresh token or vice versa.
//
// # What this package must NOT do
//
//   - Check the refresh token's version against the user record; that needs
//     a fresh directory lookup and belongs to the engine.
//   - Perform I/O. Signing and verification are pure CPU work.
package jwt
