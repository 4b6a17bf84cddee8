// Package rate implements the optional Redis-backed login throttle. It sits
// in front of the credential check and the lockout policy: the throttle
// bounds attempt volume per identifier and per IP inside a cooldown window,
// while lockout bounds consecutive failures per account.
package rate
