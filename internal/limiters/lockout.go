package limiters

import "time"

// LockoutDecision is the outcome of evaluating an account's failure state.
type LockoutDecision int

const (
	// LockoutAllowed lets the credential check proceed.
	LockoutAllowed LockoutDecision = iota
	// LockoutLocked rejects the attempt before any credential check.
	LockoutLocked
)

// LockoutPolicy locks an account after Threshold consecutive failures for
// the duration of Window.
type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
}

// Evaluate decides whether an attempt may proceed. A lockedUntil in the past
// means not locked, but the failure counter is NOT reset here: only an
// explicit success resets it, so a still-failing caller re-locks on the next
// failure.
func (p LockoutPolicy) Evaluate(lockedUntil *time.Time, now time.Time) LockoutDecision {
	if lockedUntil != nil && now.Before(*lockedUntil) {
		return LockoutLocked
	}
	return LockoutAllowed
}

// OnFailure returns the counter state to persist after one more failure: the
// incremented count and, when the count reaches the threshold, the lockout
// expiry. The returned locked flag tells the caller to answer with the
// locked error rather than the generic credential error.
func (p LockoutPolicy) OnFailure(failedAttempts int, now time.Time) (count int, lockedUntil *time.Time, locked bool) {
	count = failedAttempts + 1
	if count >= p.Threshold {
		until := now.Add(p.Window)
		return count, &until, true
	}
	return count, nil, false
}
