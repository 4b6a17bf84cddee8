package authcore

import (
	"errors"
	"fmt"
)

// Error taxonomy. The three class sentinels below are what HTTP controllers
// map to status codes; every specific sentinel wraps exactly one class so
// errors.Is works at both granularities:
//
//	errors.Is(err, ErrAccountLocked) // the precise condition
//	errors.Is(err, ErrForbidden)     // the response class
//
// Unauthorized failures are deliberately indistinguishable to callers of the
// HTTP API ("invalid credentials") so account existence cannot be probed.
var (
	// ErrUnauthorized classifies bad credentials, invalid or expired tokens,
	// invalid PKCE state, and token version mismatches.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden classifies locked or inactive accounts and tenant access
	// violations. Messages may be specific; no secret is disclosed.
	ErrForbidden = errors.New("forbidden")
	// ErrBadRequest classifies malformed or unsupported requests, such as a
	// disabled external provider.
	ErrBadRequest = errors.New("bad request")
)

var (
	// ErrInvalidCredentials is returned for unknown emails, wrong passwords,
	// and local login against external-provider accounts alike.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	// ErrTokenInvalid is returned for refresh tokens with a bad signature,
	// wrong kind, or expired lifetime.
	ErrTokenInvalid = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	// ErrTokenVersionMismatch is returned when a refresh token's embedded
	// version no longer equals the user's current token version.
	ErrTokenVersionMismatch = fmt.Errorf("%w: token version mismatch", ErrUnauthorized)
	// ErrInvalidState is returned when a PKCE state value is unknown, already
	// consumed, or past its TTL.
	ErrInvalidState = fmt.Errorf("%w: invalid or expired state", ErrUnauthorized)
	// ErrExchangeFailed is returned when the external provider's token
	// exchange fails at the network or protocol level.
	ErrExchangeFailed = fmt.Errorf("%w: identity exchange failed", ErrUnauthorized)

	// ErrAccountLocked is returned while the lockout window is active.
	ErrAccountLocked = fmt.Errorf("%w: account locked", ErrForbidden)
	// ErrAccountInactive is returned for accounts whose status is not ACTIVE.
	ErrAccountInactive = fmt.Errorf("%w: account inactive", ErrForbidden)
	// ErrNoTenantAccess is returned when a user has zero tenant memberships.
	ErrNoTenantAccess = fmt.Errorf("%w: no tenant access", ErrForbidden)
	// ErrTenantNotAllowed is returned when a tenant switch targets a tenant
	// outside the caller's membership set.
	ErrTenantNotAllowed = fmt.Errorf("%w: tenant not in memberships", ErrForbidden)

	// ErrProviderDisabled is returned by InitiateExternalLogin when the
	// external provider is disabled in configuration.
	ErrProviderDisabled = fmt.Errorf("%w: external provider disabled", ErrBadRequest)
	// ErrMissingEmail is returned when the external provider supplies no
	// usable identity email.
	ErrMissingEmail = fmt.Errorf("%w: identity provider returned no email", ErrBadRequest)
)

var (
	// ErrUserNotFound must be returned by [UserDirectory] lookups when no
	// account matches. The engine never surfaces it to callers; it is mapped
	// to ErrInvalidCredentials or ErrTokenInvalid at the flow boundary.
	ErrUserNotFound = errors.New("user not found")
	// ErrLoginRateLimited is returned when the optional login throttle denies
	// an attempt before credentials are checked. It deliberately wraps none of
	// the three classes: it is a load-shedding decision, not an authorization
	// outcome, and controllers match it directly (HTTP 429).
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrEngineNotReady is returned when the engine is used before Build or
	// with missing dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)
