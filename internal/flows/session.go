package flows

import "time"

// UserRecord is the flow-local user model. Active mirrors the account
// status; flows never see other lifecycle states.
type UserRecord struct {
	ID             string
	Email          string
	Name           string
	AvatarURL      string
	Provider       string
	PasswordHash   string
	Active         bool
	FailedAttempts int
	LockedUntil    *time.Time
	TokenVersion   int64
}

// Membership is one tenant membership of a user.
type Membership struct {
	TenantID   string
	TenantName string
	Role       string
}

// SessionTokens is the issued token pair. ExpiresIn is the access token
// lifetime in seconds.
type SessionTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// SessionResult is the output of every session-issuing flow.
type SessionResult struct {
	User            UserRecord
	Memberships     []Membership
	Tokens          SessionTokens
	DefaultTenantID string
}

// SessionOptions steers session construction. DefaultTenantID is honored
// only when present among the memberships; otherwise the first membership in
// stored order wins (silent fallback, not an error). TokenVersion is the
// version embedded into the refresh token.
type SessionOptions struct {
	DefaultTenantID string
	TokenVersion    int64
}

// SessionErrors carries host-level sentinel errors for session construction.
type SessionErrors struct {
	AccountInactive error
	NoTenantAccess  error
}

// SessionDeps captures session construction dependencies.
type SessionDeps struct {
	IssueAccessToken  func(user UserRecord, memberships []Membership, defaultTenantID string) (string, error)
	IssueRefreshToken func(userID string, tokenVersion int64) (string, error)
	AccessTTLSeconds  int64
	Errors            SessionErrors
}

// BuildSession composes a user, its memberships, and a fresh token pair into
// a session. It is the single choke point enforcing that inactive accounts
// and users without tenant access never receive tokens.
func BuildSession(user UserRecord, memberships []Membership, opts SessionOptions, deps SessionDeps) (*SessionResult, error) {
	if !user.Active {
		return nil, deps.Errors.AccountInactive
	}
	if len(memberships) == 0 {
		return nil, deps.Errors.NoTenantAccess
	}

	defaultTenantID := memberships[0].TenantID
	if opts.DefaultTenantID != "" {
		for _, m := range memberships {
			if m.TenantID == opts.DefaultTenantID {
				defaultTenantID = opts.DefaultTenantID
				break
			}
		}
	}

	access, err := deps.IssueAccessToken(user, memberships, defaultTenantID)
	if err != nil {
		return nil, err
	}
	refresh, err := deps.IssueRefreshToken(user.ID, opts.TokenVersion)
	if err != nil {
		return nil, err
	}

	return &SessionResult{
		User:        user,
		Memberships: memberships,
		Tokens: SessionTokens{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    deps.AccessTTLSeconds,
		},
		DefaultTenantID: defaultTenantID,
	}, nil
}
