package flows

import (
	"context"
	"time"
)

// ExternalStart is the handoff returned to the web client before redirecting
// the browser to the identity provider.
type ExternalStart struct {
	AuthorizationURL string
	State            string
	ExpiresIn        int64
}

// ExternalClaims is the flow-local shape of the identity returned by the
// provider after code exchange.
type ExternalClaims struct {
	Subject  string
	Email    string
	Username string
	Name     string
	Picture  string
}

// ExternalUpsert carries the provider identity handed to the directory for
// find-or-create.
type ExternalUpsert struct {
	Email     string
	Name      string
	SubjectID string
	Picture   string
}

// ExternalMetrics carries metric IDs needed by the external login flows.
type ExternalMetrics struct {
	Initiated       int
	Success         int
	Failure         int
	StateRejected   int
	ExchangeFailure int
	SessionIssued   int
}

// ExternalEvents carries audit event names used by the external login flows.
type ExternalEvents struct {
	Initiated     string
	Success       string
	Failure       string
	StateRejected string
}

// ExternalErrors carries host-level sentinel errors used by the external
// login flows.
type ExternalErrors struct {
	EngineNotReady   error
	ProviderDisabled error
	InvalidState     error
	ExchangeFailed   error
	MissingEmail     error
}

// ExternalDeps captures external login dependencies.
type ExternalDeps struct {
	Enabled  bool
	StateTTL time.Duration

	NewState    func() (string, error)
	NewVerifier func() (verifier, challenge string, err error)

	SaveState    func(ctx context.Context, state, verifier, challenge string) error
	ConsumeState func(ctx context.Context, state string) (verifier string, err error)

	AuthorizationURL func(state, challenge string) string
	Exchange         func(ctx context.Context, code, verifier string) (ExternalClaims, error)
	UpsertUser       func(context.Context, ExternalUpsert) (UserRecord, []Membership, error)

	BuildSession func(UserRecord, []Membership, SessionOptions) (*SessionResult, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, metaFn func() map[string]string)

	Metrics ExternalMetrics
	Events  ExternalEvents
	Errors  ExternalErrors
}

// RunInitiateExternal mints the single-use state and PKCE pair, persists them
// under the state TTL, and returns the provider authorization URL.
func RunInitiateExternal(ctx context.Context, deps ExternalDeps) (*ExternalStart, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if !deps.Enabled {
		return nil, deps.Errors.ProviderDisabled
	}
	if deps.NewState == nil || deps.NewVerifier == nil || deps.SaveState == nil || deps.AuthorizationURL == nil {
		return nil, deps.Errors.EngineNotReady
	}

	state, err := deps.NewState()
	if err != nil {
		return nil, err
	}
	verifier, challenge, err := deps.NewVerifier()
	if err != nil {
		return nil, err
	}
	// The verifier is stored server-side only; the browser sees the challenge
	// embedded in the authorization URL and nothing else.
	if err := deps.SaveState(ctx, state, verifier, challenge); err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.Initiated)
	deps.EmitAudit(ctx, deps.Events.Initiated, true, "", nil, nil)
	return &ExternalStart{
		AuthorizationURL: deps.AuthorizationURL(state, challenge),
		State:            state,
		ExpiresIn:        int64(deps.StateTTL / time.Second),
	}, nil
}

// RunCompleteExternal consumes the state, exchanges the authorization code,
// upserts the provider identity, and issues a session. The state is consumed
// before any network call: a replayed or expired state never reaches the
// provider.
func RunCompleteExternal(ctx context.Context, code, state string, deps ExternalDeps) (*SessionResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if !deps.Enabled {
		return nil, deps.Errors.ProviderDisabled
	}
	if deps.ConsumeState == nil || deps.Exchange == nil || deps.UpsertUser == nil || deps.BuildSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	verifier, err := deps.ConsumeState(ctx, state)
	if err != nil {
		deps.MetricInc(deps.Metrics.StateRejected)
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.StateRejected, false, "", deps.Errors.InvalidState, func() map[string]string {
			return map[string]string{"reason": "state_unknown_or_expired"}
		})
		return nil, deps.Errors.InvalidState
	}

	claims, err := deps.Exchange(ctx, code, verifier)
	if err != nil {
		deps.MetricInc(deps.Metrics.ExchangeFailure)
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, "", deps.Errors.ExchangeFailed, func() map[string]string {
			return map[string]string{"reason": "code_exchange_failed"}
		})
		return nil, deps.Errors.ExchangeFailed
	}

	email := claims.Email
	if email == "" {
		email = claims.Username
	}
	if email == "" {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, "", deps.Errors.MissingEmail, func() map[string]string {
			return map[string]string{"reason": "no_email_claim"}
		})
		return nil, deps.Errors.MissingEmail
	}

	user, memberships, err := deps.UpsertUser(ctx, ExternalUpsert{
		Email:     email,
		Name:      claims.Name,
		SubjectID: claims.Subject,
		Picture:   claims.Picture,
	})
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, "", err, func() map[string]string {
			return map[string]string{"reason": "directory_upsert_failed"}
		})
		return nil, err
	}

	result, err := deps.BuildSession(user, memberships, SessionOptions{TokenVersion: user.TokenVersion})
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, user.ID, err, func() map[string]string {
			return map[string]string{"reason": "session_rejected"}
		})
		return nil, err
	}

	deps.MetricInc(deps.Metrics.SessionIssued)
	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, user.ID, nil, func() map[string]string {
		return map[string]string{"tenant": result.DefaultTenantID}
	})
	return result, nil
}
