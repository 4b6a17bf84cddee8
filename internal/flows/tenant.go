package flows

import "context"

// TenantMetrics carries metric IDs needed by the tenant and revocation flows.
type TenantMetrics struct {
	Switch         int
	SwitchDenied   int
	SessionIssued  int
	SessionRevoked int
}

// TenantEvents carries audit event names used by the tenant and revocation
// flows.
type TenantEvents struct {
	Switch       string
	SwitchDenied string
	Revoked      string
}

// TenantErrors carries host-level sentinel errors used by the tenant and
// revocation flows.
type TenantErrors struct {
	EngineNotReady   error
	TenantNotAllowed error
}

// TenantDeps captures tenant switch and revocation dependencies.
type TenantDeps struct {
	GetUserByID      func(context.Context, string) (UserRecord, []Membership, error)
	BumpTokenVersion func(context.Context, string) (int64, error)

	BuildSession func(UserRecord, []Membership, SessionOptions) (*SessionResult, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, metaFn func() map[string]string)

	Metrics TenantMetrics
	Events  TenantEvents
	Errors  TenantErrors
}

// RunSwitchTenant re-issues a session with a different default tenant.
// Memberships are re-read from the directory, never trusted from the caller's
// token, and the token version is carried over unchanged: a switch is not a
// rotation.
func RunSwitchTenant(ctx context.Context, userID, tenantID string, deps TenantDeps) (*SessionResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.GetUserByID == nil || deps.BuildSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	user, memberships, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		deps.MetricInc(deps.Metrics.SwitchDenied)
		deps.EmitAudit(ctx, deps.Events.SwitchDenied, false, userID, err, func() map[string]string {
			return map[string]string{"tenant": tenantID, "reason": "user_unknown"}
		})
		return nil, deps.Errors.TenantNotAllowed
	}

	member := false
	for _, m := range memberships {
		if m.TenantID == tenantID {
			member = true
			break
		}
	}
	if !member {
		deps.MetricInc(deps.Metrics.SwitchDenied)
		deps.EmitAudit(ctx, deps.Events.SwitchDenied, false, user.ID, deps.Errors.TenantNotAllowed, func() map[string]string {
			return map[string]string{"tenant": tenantID}
		})
		return nil, deps.Errors.TenantNotAllowed
	}

	result, err := deps.BuildSession(user, memberships, SessionOptions{
		DefaultTenantID: tenantID,
		TokenVersion:    user.TokenVersion,
	})
	if err != nil {
		deps.MetricInc(deps.Metrics.SwitchDenied)
		deps.EmitAudit(ctx, deps.Events.SwitchDenied, false, user.ID, err, func() map[string]string {
			return map[string]string{"tenant": tenantID, "reason": "session_rejected"}
		})
		return nil, err
	}

	deps.MetricInc(deps.Metrics.SessionIssued)
	deps.MetricInc(deps.Metrics.Switch)
	deps.EmitAudit(ctx, deps.Events.Switch, true, user.ID, nil, func() map[string]string {
		return map[string]string{"tenant": tenantID}
	})
	return result, nil
}

// RunRevoke bumps the user's token version so every outstanding refresh
// token stops rotating. Live access tokens keep working until expiry; the
// short access lifetime bounds the exposure.
func RunRevoke(ctx context.Context, userID string, deps TenantDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.BumpTokenVersion == nil {
		return deps.Errors.EngineNotReady
	}

	if _, err := deps.BumpTokenVersion(ctx, userID); err != nil {
		deps.EmitAudit(ctx, deps.Events.Revoked, false, userID, err, nil)
		return err
	}

	deps.MetricInc(deps.Metrics.SessionRevoked)
	deps.EmitAudit(ctx, deps.Events.Revoked, true, userID, nil, nil)
	return nil
}
