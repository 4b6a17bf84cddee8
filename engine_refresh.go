package authcore

import (
	"context"

	"github.com/sprintloop/authcore/internal/flows"
)

// RefreshSession rotates a refresh token into a fresh session. The presented
// token must carry the user's current token version; rotation bumps the
// version, so the presented token and all its predecessors are dead once
// this returns. Stale versions fail with [ErrTokenVersionMismatch].
func (e *Engine) RefreshSession(ctx context.Context, refreshToken string) (*AuthSession, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	result, err := flows.RunRefresh(ctx, refreshToken, e.deps.Refresh)
	if err != nil {
		return nil, err
	}
	return sessionFromResult(result), nil
}
