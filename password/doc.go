// Package password implements credential hashing and verification with
// Argon2id in PHC string format. Verification is constant-time over the
// derived key and deliberately slow; the default parameters target roughly
// 100ms per comparison on current server hardware.
//
// The plaintext password is never logged, stored, or carried beyond the call.
package password
