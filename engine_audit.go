package authcore

import "context"

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginLocked           = "login_locked"
	auditEventLoginRateLimited      = "login_rate_limited"
	auditEventExternalInitiated     = "external_login_initiated"
	auditEventExternalSuccess       = "external_login_success"
	auditEventExternalFailure       = "external_login_failure"
	auditEventExternalStateRejected = "external_state_rejected"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshFailure        = "refresh_failure"
	auditEventTenantSwitch          = "tenant_switch"
	auditEventTenantSwitchDenied    = "tenant_switch_denied"
	auditEventSessionRevoked        = "session_revoked"
)

// makeEmit returns the audit hook handed to flows. The provider tag is bound
// per flow family; IP and user agent come from the request context. The
// metadata closure runs only when auditing is live, so disabled auditing
// costs no allocations.
func (e *Engine) makeEmit(provider string) func(ctx context.Context, event string, success bool, userID string, err error, metaFn func() map[string]string) {
	return func(ctx context.Context, event string, success bool, userID string, err error, metaFn func() map[string]string) {
		if e == nil || e.audit == nil {
			return
		}

		auditEvent := AuditEvent{
			Timestamp: e.now(),
			EventType: event,
			UserID:    userID,
			Provider:  provider,
			IP:        clientIPFromContext(ctx),
			UserAgent: userAgentFromContext(ctx),
			Success:   success,
		}
		if err != nil {
			auditEvent.Error = err.Error()
		}
		if metaFn != nil {
			meta := metaFn()
			if tenant, ok := meta["tenant"]; ok {
				auditEvent.TenantID = tenant
				delete(meta, "tenant")
			}
			if len(meta) > 0 {
				auditEvent.Metadata = meta
			}
		}

		e.audit.Emit(ctx, auditEvent)
	}
}
