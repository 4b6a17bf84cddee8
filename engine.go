package authcore

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/sprintloop/authcore/identity"
	internalaudit "github.com/sprintloop/authcore/internal/audit"
	"github.com/sprintloop/authcore/internal/flows"
	"github.com/sprintloop/authcore/internal/limiters"
	"github.com/sprintloop/authcore/internal/rate"
	"github.com/sprintloop/authcore/internal/stores"
	"github.com/sprintloop/authcore/jwt"
	"github.com/sprintloop/authcore/password"
)

// Engine is the authentication and session core. Immutable after Build and
// safe for concurrent use.
type Engine struct {
	config      Config
	directory   UserDirectory
	jwtManager  *jwt.Manager
	hasher      *password.Hasher
	provider    *identity.Provider
	stateStore  stores.StateStore
	memoryState *stores.MemoryStateStore
	throttle    *rate.Limiter
	lockout     limiters.LockoutPolicy
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	now         func() time.Time
	randSource  io.Reader

	deps flows.Deps
}

// Close releases background resources: the audit dispatcher drains and the
// in-memory state sweeper stops. Idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.memoryState != nil {
		e.memoryState.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// LoginLocal authenticates a local-credential user and issues a session.
// Unknown emails, wrong passwords, and external-only accounts all fail with
// [ErrInvalidCredentials]; lockout and throttle rejections are distinct.
func (e *Engine) LoginLocal(ctx context.Context, email, password string) (*AuthSession, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	result, err := flows.RunLocalLogin(ctx, email, password, e.deps.Login)
	if err != nil {
		return nil, err
	}
	return sessionFromResult(result), nil
}

// SwitchTenant issues a session with tenantID as the default tenant. The
// membership check runs against the directory's current state, not the
// caller's token, and the refresh token version is carried over unchanged.
func (e *Engine) SwitchTenant(ctx context.Context, userID, tenantID string) (*AuthSession, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	result, err := flows.RunSwitchTenant(ctx, userID, tenantID, e.deps.Tenant)
	if err != nil {
		return nil, err
	}
	return sessionFromResult(result), nil
}

// RevokeSession invalidates every outstanding refresh token for the user by
// bumping the token version. Live access tokens expire on their own within
// the access TTL.
func (e *Engine) RevokeSession(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunRevoke(ctx, userID, e.deps.Tenant)
}

// VerifyAccessToken validates signature, lifetime, issuer, audience, and
// token kind, and returns the embedded claims. Refresh tokens are rejected.
func (e *Engine) VerifyAccessToken(token string) (*jwt.AccessClaims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.jwtManager.ParseAccess(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// buildFlowDeps wires the engine's collaborators into the flow dependency
// structs once, at Build time.
func (e *Engine) buildFlowDeps() {
	sessionDeps := flows.SessionDeps{
		IssueAccessToken: func(user flows.UserRecord, memberships []flows.Membership, defaultTenantID string) (string, error) {
			tenants := make([]jwt.TenantClaim, 0, len(memberships))
			for _, m := range memberships {
				tenants = append(tenants, jwt.TenantClaim{
					TenantID: m.TenantID,
					Name:     m.TenantName,
					Role:     m.Role,
				})
			}
			return e.jwtManager.CreateAccess(jwt.AccessParams{
				UserID:          user.ID,
				Email:           user.Email,
				Name:            user.Name,
				Picture:         user.AvatarURL,
				Tenants:         tenants,
				DefaultTenantID: defaultTenantID,
			})
		},
		IssueRefreshToken: e.jwtManager.CreateRefresh,
		AccessTTLSeconds:  int64(e.config.JWT.AccessTTL / time.Second),
		Errors: flows.SessionErrors{
			AccountInactive: ErrAccountInactive,
			NoTenantAccess:  ErrNoTenantAccess,
		},
	}
	buildSession := func(user flows.UserRecord, memberships []flows.Membership, opts flows.SessionOptions) (*flows.SessionResult, error) {
		return flows.BuildSession(user, memberships, opts, sessionDeps)
	}

	getUserByID := func(ctx context.Context, id string) (flows.UserRecord, []flows.Membership, error) {
		user, memberships, err := e.directory.FindByIDWithTenants(ctx, id)
		if err != nil {
			return flows.UserRecord{}, nil, err
		}
		return flowUser(user), flowMemberships(memberships), nil
	}

	loginDeps := flows.LoginDeps{
		LocalProvider:       string(ProviderLocal),
		Now:                 e.now,
		ClientIPFromContext: clientIPFromContext,
		GetUserByEmail: func(ctx context.Context, email string) (flows.UserRecord, []flows.Membership, error) {
			user, memberships, err := e.directory.FindByEmailWithTenants(ctx, email)
			if err != nil {
				return flows.UserRecord{}, nil, err
			}
			return flowUser(user), flowMemberships(memberships), nil
		},
		VerifyPassword: e.hasher.Verify,
		EvaluateLockout: func(lockedUntil *time.Time, now time.Time) bool {
			return e.lockout.Evaluate(lockedUntil, now) == limiters.LockoutLocked
		},
		NextLockoutState:  e.lockout.OnFailure,
		UpdateFailedState: e.directory.UpdateFailedAttempts,
		ResetFailedState:  e.directory.ResetFailedAttempts,
		BuildSession:      buildSession,
		MetricInc:         e.metricIncInt,
		EmitAudit:         e.makeEmit(string(ProviderLocal)),
		Warn:              log.Printf,
		Metrics: flows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginLocked:      int(MetricLoginLocked),
			LoginRateLimited: int(MetricLoginRateLimited),
			SessionIssued:    int(MetricSessionIssued),
		},
		Events: flows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginLocked:      auditEventLoginLocked,
			LoginRateLimited: auditEventLoginRateLimited,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			AccountLocked:      ErrAccountLocked,
			LoginRateLimited:   ErrLoginRateLimited,
		},
	}
	if e.throttle != nil {
		// A throttle backend outage must not block logins: only a real limit
		// decision propagates, everything else is logged and ignored.
		loginDeps.CheckLoginRate = func(ctx context.Context, identifier, ip string) error {
			err := e.throttle.CheckLogin(ctx, identifier, ip)
			if errors.Is(err, rate.ErrRateLimited) {
				return err
			}
			if err != nil {
				log.Printf("authcore: login throttle check failed: %v", err)
			}
			return nil
		}
		loginDeps.IncrementLoginRate = func(ctx context.Context, identifier, ip string) error {
			err := e.throttle.IncrementLogin(ctx, identifier, ip)
			if errors.Is(err, rate.ErrRateLimited) {
				return err
			}
			if err != nil {
				log.Printf("authcore: login throttle increment failed: %v", err)
			}
			return nil
		}
		loginDeps.ResetLoginRate = func(ctx context.Context, identifier, ip string) error {
			return e.throttle.ResetLogin(ctx, identifier, ip)
		}
	}

	externalDeps := flows.ExternalDeps{
		Enabled:  e.config.OAuth.Enabled,
		StateTTL: e.config.OAuth.StateTTL,
		NewState: func() (string, error) {
			return stores.NewStateToken(e.randSource)
		},
		NewVerifier: func() (string, string, error) {
			return stores.NewVerifier(e.randSource)
		},
		SaveState: func(ctx context.Context, state, verifier, challenge string) error {
			return e.stateStore.Save(ctx, state, stores.StateRecord{
				Verifier:  verifier,
				Challenge: challenge,
			}, e.config.OAuth.StateTTL)
		},
		ConsumeState: func(ctx context.Context, state string) (string, error) {
			record, err := e.stateStore.Consume(ctx, state)
			if err != nil {
				return "", err
			}
			return record.Verifier, nil
		},
		UpsertUser: func(ctx context.Context, input flows.ExternalUpsert) (flows.UserRecord, []flows.Membership, error) {
			user, memberships, err := e.directory.UpsertExternalUser(ctx, ExternalUserUpsert{
				Email:     input.Email,
				Name:      input.Name,
				SubjectID: input.SubjectID,
				Picture:   input.Picture,
			})
			if err != nil {
				return flows.UserRecord{}, nil, err
			}
			return flowUser(user), flowMemberships(memberships), nil
		},
		BuildSession: buildSession,
		MetricInc:    e.metricIncInt,
		EmitAudit:    e.makeEmit(string(ProviderExternal)),
		Metrics: flows.ExternalMetrics{
			Initiated:       int(MetricExternalInitiated),
			Success:         int(MetricExternalSuccess),
			Failure:         int(MetricExternalFailure),
			StateRejected:   int(MetricStateRejected),
			ExchangeFailure: int(MetricExchangeFailure),
			SessionIssued:   int(MetricSessionIssued),
		},
		Events: flows.ExternalEvents{
			Initiated:     auditEventExternalInitiated,
			Success:       auditEventExternalSuccess,
			Failure:       auditEventExternalFailure,
			StateRejected: auditEventExternalStateRejected,
		},
		Errors: flows.ExternalErrors{
			EngineNotReady:   ErrEngineNotReady,
			ProviderDisabled: ErrProviderDisabled,
			InvalidState:     ErrInvalidState,
			ExchangeFailed:   ErrExchangeFailed,
			MissingEmail:     ErrMissingEmail,
		},
	}
	if e.provider != nil {
		externalDeps.AuthorizationURL = e.provider.AuthorizationURL
		externalDeps.Exchange = func(ctx context.Context, code, verifier string) (flows.ExternalClaims, error) {
			claims, err := e.provider.Exchange(ctx, code, verifier)
			if err != nil {
				return flows.ExternalClaims{}, err
			}
			return flows.ExternalClaims{
				Subject:  claims.Subject,
				Email:    claims.Email,
				Username: claims.Username,
				Name:     claims.Name,
				Picture:  claims.Picture,
			}, nil
		}
	}

	refreshDeps := flows.RefreshDeps{
		ParseRefresh: func(token string) (flows.RefreshPayload, error) {
			claims, err := e.jwtManager.ParseRefresh(token)
			if err != nil {
				return flows.RefreshPayload{}, err
			}
			return flows.RefreshPayload{
				Subject:      claims.Subject,
				TokenVersion: claims.TokenVersion,
			}, nil
		},
		GetUserByID:      getUserByID,
		BumpTokenVersion: e.directory.IncrementTokenVersion,
		BuildSession:     buildSession,
		MetricInc:        e.metricIncInt,
		EmitAudit:        e.makeEmit(""),
		Metrics: flows.RefreshMetrics{
			Success:         int(MetricRefreshSuccess),
			Failure:         int(MetricRefreshFailure),
			VersionMismatch: int(MetricTokenVersionMismatch),
			SessionIssued:   int(MetricSessionIssued),
		},
		Events: flows.RefreshEvents{
			Success: auditEventRefreshSuccess,
			Failure: auditEventRefreshFailure,
		},
		Errors: flows.RefreshErrors{
			EngineNotReady:  ErrEngineNotReady,
			TokenInvalid:    ErrTokenInvalid,
			VersionMismatch: ErrTokenVersionMismatch,
		},
	}

	tenantDeps := flows.TenantDeps{
		GetUserByID:      getUserByID,
		BumpTokenVersion: e.directory.IncrementTokenVersion,
		BuildSession:     buildSession,
		MetricInc:        e.metricIncInt,
		EmitAudit:        e.makeEmit(""),
		Metrics: flows.TenantMetrics{
			Switch:         int(MetricTenantSwitch),
			SwitchDenied:   int(MetricTenantSwitchDenied),
			SessionIssued:  int(MetricSessionIssued),
			SessionRevoked: int(MetricSessionRevoked),
		},
		Events: flows.TenantEvents{
			Switch:       auditEventTenantSwitch,
			SwitchDenied: auditEventTenantSwitchDenied,
			Revoked:      auditEventSessionRevoked,
		},
		Errors: flows.TenantErrors{
			EngineNotReady:   ErrEngineNotReady,
			TenantNotAllowed: ErrTenantNotAllowed,
		},
	}

	e.deps = flows.Deps{
		Session:  sessionDeps,
		Login:    loginDeps,
		External: externalDeps,
		Refresh:  refreshDeps,
		Tenant:   tenantDeps,
	}
}

func (e *Engine) metricIncInt(id int) {
	e.metricInc(MetricID(id))
}

func flowUser(u *User) flows.UserRecord {
	if u == nil {
		return flows.UserRecord{}
	}
	return flows.UserRecord{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		AvatarURL:      u.AvatarURL,
		Provider:       string(u.Provider),
		PasswordHash:   u.PasswordHash,
		Active:         u.Status == AccountActive,
		FailedAttempts: u.FailedAttempts,
		LockedUntil:    u.LockedUntil,
		TokenVersion:   u.TokenVersion,
	}
}

func flowMemberships(ms []TenantMembership) []flows.Membership {
	out := make([]flows.Membership, 0, len(ms))
	for _, m := range ms {
		out = append(out, flows.Membership{
			TenantID:   m.TenantID,
			TenantName: m.TenantName,
			Role:       m.Role,
		})
	}
	return out
}

func sessionFromResult(r *flows.SessionResult) *AuthSession {
	if r == nil {
		return nil
	}
	tenants := make([]TenantMembership, 0, len(r.Memberships))
	for _, m := range r.Memberships {
		tenants = append(tenants, TenantMembership{
			TenantID:   m.TenantID,
			TenantName: m.TenantName,
			Role:       m.Role,
		})
	}
	return &AuthSession{
		User: AuthenticatedUser{
			ID:        r.User.ID,
			Email:     r.User.Email,
			Name:      r.User.Name,
			AvatarURL: r.User.AvatarURL,
			Tenants:   tenants,
		},
		Tokens: TokenPair{
			AccessToken:  r.Tokens.AccessToken,
			RefreshToken: r.Tokens.RefreshToken,
			ExpiresIn:    r.Tokens.ExpiresIn,
		},
		DefaultTenantID: r.DefaultTenantID,
	}
}
