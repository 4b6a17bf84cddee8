package flows

import "context"

// RefreshPayload is the flow-local view of a parsed refresh token.
type RefreshPayload struct {
	Subject      string
	TokenVersion int64
}

// RefreshMetrics carries metric IDs needed by the refresh flow.
type RefreshMetrics struct {
	Success         int
	Failure         int
	VersionMismatch int
	SessionIssued   int
}

// RefreshEvents carries audit event names used by the refresh flow.
type RefreshEvents struct {
	Success string
	Failure string
}

// RefreshErrors carries host-level sentinel errors used by the refresh flow.
type RefreshErrors struct {
	EngineNotReady  error
	TokenInvalid    error
	VersionMismatch error
}

// RefreshDeps captures refresh dependencies.
type RefreshDeps struct {
	ParseRefresh     func(token string) (RefreshPayload, error)
	GetUserByID      func(context.Context, string) (UserRecord, []Membership, error)
	BumpTokenVersion func(context.Context, string) (int64, error)

	BuildSession func(UserRecord, []Membership, SessionOptions) (*SessionResult, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, metaFn func() map[string]string)

	Metrics RefreshMetrics
	Events  RefreshEvents
	Errors  RefreshErrors
}

// RunRefresh rotates a refresh token: the presented token must carry the
// user's current version, and rotation bumps that version so the presented
// token (and every sibling issued before it) dies with this call.
func RunRefresh(ctx context.Context, token string, deps RefreshDeps) (*SessionResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.ParseRefresh == nil || deps.GetUserByID == nil || deps.BumpTokenVersion == nil || deps.BuildSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	payload, err := deps.ParseRefresh(token)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, "", deps.Errors.TokenInvalid, func() map[string]string {
			return map[string]string{"reason": "token_invalid"}
		})
		return nil, deps.Errors.TokenInvalid
	}

	user, memberships, err := deps.GetUserByID(ctx, payload.Subject)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, payload.Subject, deps.Errors.TokenInvalid, func() map[string]string {
			return map[string]string{"reason": "subject_unknown"}
		})
		return nil, deps.Errors.TokenInvalid
	}

	if payload.TokenVersion != user.TokenVersion {
		deps.MetricInc(deps.Metrics.VersionMismatch)
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, user.ID, deps.Errors.VersionMismatch, func() map[string]string {
			return map[string]string{"reason": "version_mismatch"}
		})
		return nil, deps.Errors.VersionMismatch
	}

	newVersion, err := deps.BumpTokenVersion(ctx, user.ID)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, user.ID, err, func() map[string]string {
			return map[string]string{"reason": "version_bump_failed"}
		})
		return nil, err
	}

	result, err := deps.BuildSession(user, memberships, SessionOptions{TokenVersion: newVersion})
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, user.ID, err, func() map[string]string {
			return map[string]string{"reason": "session_rejected"}
		})
		return nil, err
	}

	deps.MetricInc(deps.Metrics.SessionIssued)
	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, user.ID, nil, nil)
	return result, nil
}
