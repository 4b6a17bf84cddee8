package flows

import (
	"context"
	"time"
)

// LoginMetrics carries metric IDs needed by the local login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginLocked      int
	LoginRateLimited int
	SessionIssued    int
}

// LoginEvents carries audit event names used by the local login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginLocked      string
	LoginRateLimited string
}

// LoginErrors carries host-level sentinel errors used by the local login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	AccountLocked      error
	LoginRateLimited   error
}

// LoginDeps captures local login dependencies.
type LoginDeps struct {
	LocalProvider string

	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	CheckLoginRate     func(context.Context, string, string) error
	IncrementLoginRate func(context.Context, string, string) error
	ResetLoginRate     func(context.Context, string, string) error

	GetUserByEmail func(context.Context, string) (UserRecord, []Membership, error)
	VerifyPassword func(string, string) (bool, error)

	EvaluateLockout     func(lockedUntil *time.Time, now time.Time) bool
	NextLockoutState    func(failedAttempts int, now time.Time) (int, *time.Time, bool)
	UpdateFailedState   func(ctx context.Context, userID string, count int, lockedUntil *time.Time) error
	ResetFailedState    func(ctx context.Context, userID string) error

	BuildSession func(UserRecord, []Membership, SessionOptions) (*SessionResult, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, metaFn func() map[string]string)
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLocalLogin executes the credential login flow: throttle, lookup, lockout
// gate, password check, failure accounting, then session issuance. Every
// credential-shaped failure collapses to the same error so callers cannot
// probe which emails exist.
func RunLocalLogin(ctx context.Context, email, password string, deps LoginDeps) (*SessionResult, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.GetUserByEmail == nil ||
		deps.VerifyPassword == nil ||
		deps.EvaluateLockout == nil ||
		deps.NextLockoutState == nil ||
		deps.UpdateFailedState == nil ||
		deps.ResetFailedState == nil ||
		deps.BuildSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, email, ip); err != nil {
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", deps.Errors.LoginRateLimited, func() map[string]string {
				return map[string]string{"identifier": email}
			})
			return nil, deps.Errors.LoginRateLimited
		}
	}

	failCredential := func(userID, reason string) (*SessionResult, error) {
		if deps.IncrementLoginRate != nil {
			if err := deps.IncrementLoginRate(ctx, email, ip); err != nil {
				deps.MetricInc(deps.Metrics.LoginRateLimited)
				deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, userID, deps.Errors.LoginRateLimited, func() map[string]string {
					return map[string]string{"identifier": email}
				})
				return nil, deps.Errors.LoginRateLimited
			}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     reason,
			}
		})
		return nil, deps.Errors.InvalidCredentials
	}

	if password == "" {
		return failCredential("", "empty_password")
	}

	user, memberships, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		return failCredential("", "user_not_found")
	}
	if user.Provider != deps.LocalProvider || user.PasswordHash == "" {
		// External-only accounts have no password; answer exactly like an
		// unknown email.
		return failCredential(user.ID, "no_local_credential")
	}

	now := deps.Now()
	if deps.EvaluateLockout(user.LockedUntil, now) {
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.EmitAudit(ctx, deps.Events.LoginLocked, false, user.ID, deps.Errors.AccountLocked, func() map[string]string {
			return map[string]string{"identifier": email}
		})
		return nil, deps.Errors.AccountLocked
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		count, lockedUntil, locked := deps.NextLockoutState(user.FailedAttempts, now)
		if uerr := deps.UpdateFailedState(ctx, user.ID, count, lockedUntil); uerr != nil {
			deps.Warn("authcore: failed-attempt counter update failed: %v", uerr)
		}
		if deps.IncrementLoginRate != nil {
			if rerr := deps.IncrementLoginRate(ctx, email, ip); rerr != nil {
				deps.MetricInc(deps.Metrics.LoginRateLimited)
				deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, user.ID, deps.Errors.LoginRateLimited, func() map[string]string {
					return map[string]string{"identifier": email}
				})
				return nil, deps.Errors.LoginRateLimited
			}
		}
		if locked {
			deps.MetricInc(deps.Metrics.LoginLocked)
			deps.EmitAudit(ctx, deps.Events.LoginLocked, false, user.ID, deps.Errors.AccountLocked, func() map[string]string {
				return map[string]string{
					"identifier": email,
					"reason":     "threshold_reached",
				}
			})
			return nil, deps.Errors.AccountLocked
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.ID, deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "password_mismatch",
			}
		})
		return nil, deps.Errors.InvalidCredentials
	}
	password = ""

	if err := deps.ResetFailedState(ctx, user.ID); err != nil {
		deps.Warn("authcore: failed-attempt counter reset failed: %v", err)
	}
	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, email, ip); err != nil {
			deps.Warn("authcore: login throttle reset failed: %v", err)
		}
	}

	result, err := deps.BuildSession(user, memberships, SessionOptions{TokenVersion: user.TokenVersion})
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.ID, err, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "session_rejected",
			}
		})
		return nil, err
	}

	deps.MetricInc(deps.Metrics.SessionIssued)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.ID, nil, func() map[string]string {
		return map[string]string{
			"identifier": email,
			"tenant":     result.DefaultTenantID,
		}
	})
	return result, nil
}
