package internaldefs

import (
	authcore "github.com/sprintloop/authcore"
)

// CounterDef maps one engine counter to its exported metric name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported engine counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful local logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed local logins."},
	{ID: authcore.MetricLoginLocked, Name: "authcore_login_locked_total", Help: "Local logins rejected by the lockout policy."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Logins denied by the pre-credential throttle."},
	{ID: authcore.MetricExternalInitiated, Name: "authcore_external_initiated_total", Help: "Started external login flows."},
	{ID: authcore.MetricExternalSuccess, Name: "authcore_external_success_total", Help: "Completed external logins."},
	{ID: authcore.MetricExternalFailure, Name: "authcore_external_failure_total", Help: "Failed external logins."},
	{ID: authcore.MetricStateRejected, Name: "authcore_state_rejected_total", Help: "PKCE state values rejected as unknown, reused, or expired."},
	{ID: authcore.MetricExchangeFailure, Name: "authcore_exchange_failure_total", Help: "Failed provider token exchanges."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: authcore.MetricTokenVersionMismatch, Name: "authcore_token_version_mismatch_total", Help: "Refresh tokens rejected for a stale token version."},
	{ID: authcore.MetricTenantSwitch, Name: "authcore_tenant_switch_total", Help: "Successful tenant switches."},
	{ID: authcore.MetricTenantSwitchDenied, Name: "authcore_tenant_switch_denied_total", Help: "Tenant switches outside the membership set."},
	{ID: authcore.MetricSessionIssued, Name: "authcore_session_issued_total", Help: "Minted sessions across all flows."},
	{ID: authcore.MetricSessionRevoked, Name: "authcore_session_revoked_total", Help: "Token version bumps from session revocation."},
}
