package authcore

import (
	"context"

	"github.com/sprintloop/authcore/internal/flows"
)

// InitiateExternalLogin starts the provider handoff: it mints a single-use
// state and PKCE pair, stores them under the state TTL, and returns the
// authorization URL for the browser redirect. Fails with
// [ErrProviderDisabled] when the external provider is off; no state is
// created in that case.
func (e *Engine) InitiateExternalLogin(ctx context.Context) (*ExternalLoginStart, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start, err := flows.RunInitiateExternal(ctx, e.deps.External)
	if err != nil {
		return nil, err
	}
	return &ExternalLoginStart{
		AuthorizationURL: start.AuthorizationURL,
		State:            start.State,
		ExpiresIn:        start.ExpiresIn,
	}, nil
}

// CompleteExternalLogin finishes the provider callback. The state is
// consumed atomically before anything else: a reused, unknown, or expired
// state fails with [ErrInvalidState] and the authorization code is never
// sent to the provider.
func (e *Engine) CompleteExternalLogin(ctx context.Context, code, state string) (*AuthSession, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	result, err := flows.RunCompleteExternal(ctx, code, state, e.deps.External)
	if err != nil {
		return nil, err
	}
	return sessionFromResult(result), nil
}
