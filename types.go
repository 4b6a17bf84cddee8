package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/sprintloop/authcore/internal/audit"
)

// AuthProvider tags how an account authenticates.
type AuthProvider string

const (
	// ProviderLocal marks accounts that authenticate with a stored password hash.
	ProviderLocal AuthProvider = "LOCAL"
	// ProviderExternal marks accounts provisioned through the external identity provider.
	ProviderExternal AuthProvider = "EXTERNAL"
)

// AccountStatus represents the lifecycle state of a user account.
type AccountStatus string

const (
	// AccountActive is the only status eligible for session issuance.
	AccountActive AccountStatus = "ACTIVE"
	// AccountInactive blocks session issuance without deleting the record.
	AccountInactive AccountStatus = "INACTIVE"
)

// User is the identity record the engine reads from and writes back through
// [UserDirectory]. PasswordHash is present only for [ProviderLocal] accounts.
// TokenVersion is a monotonic counter; bumping it invalidates every
// outstanding refresh token for the user at once.
type User struct {
	ID             string
	Email          string
	Name           string
	AvatarURL      string
	Provider       AuthProvider
	PasswordHash   string
	Status         AccountStatus
	FailedAttempts int
	LockedUntil    *time.Time
	TokenVersion   int64
}

// TenantMembership links a user to one tenant with a role. Roles are opaque
// strings to this core; they are carried into the access token unchanged.
type TenantMembership struct {
	TenantID   string
	TenantName string
	Role       string
}

// AuthenticatedUser is the identity snapshot embedded in an [AuthSession].
type AuthenticatedUser struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
	Tenants   []TenantMembership
}

// TokenPair carries one signed access token and its paired refresh token.
// ExpiresIn is the access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// AuthSession is the output of every successful login, refresh, and tenant
// switch. It is never persisted as a whole; only the token version lineage
// survives via User.TokenVersion.
type AuthSession struct {
	User            AuthenticatedUser
	Tokens          TokenPair
	DefaultTenantID string
}

// ExternalLoginStart is returned by [Engine.InitiateExternalLogin].
// ExpiresIn is the PKCE state lifetime in seconds; the callback must arrive
// before it elapses.
type ExternalLoginStart struct {
	AuthorizationURL string
	State            string
	ExpiresIn        int64
}

// ExternalUserUpsert is the input for [UserDirectory.UpsertExternalUser].
type ExternalUserUpsert struct {
	Email     string
	Name      string
	SubjectID string
	Picture   string
}

// UserDirectory is the persistence interface the host must implement.
// Lookup methods return [ErrUserNotFound] when no account matches.
//
// UpdateFailedAttempts and IncrementTokenVersion mutate counters that race
// under concurrent logins against the same account; implementations must
// apply them with compare-and-set (or equivalently serialized) semantics so
// two parallel failures cannot both observe count=4 and write count=5.
type UserDirectory interface {
	FindByEmailWithTenants(ctx context.Context, email string) (*User, []TenantMembership, error)
	FindByIDWithTenants(ctx context.Context, id string) (*User, []TenantMembership, error)
	UpsertExternalUser(ctx context.Context, input ExternalUserUpsert) (*User, []TenantMembership, error)
	IncrementTokenVersion(ctx context.Context, id string) (int64, error)
	UpdateFailedAttempts(ctx context.Context, id string, count int, lockedUntil *time.Time) error
	ResetFailedAttempts(ctx context.Context, id string) error
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
