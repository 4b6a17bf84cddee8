// Package limiters holds the account lockout policy for local logins. The
// policy is pure: it decides over counters the host persists through the
// user directory, and never owns storage itself. Persistence must apply the
// resulting counter writes with compare-and-set semantics so concurrent
// failures against one account cannot undercount.
package limiters
