package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

var loginTestErrors = LoginErrors{
	EngineNotReady:     errors.New("engine not initialized"),
	InvalidCredentials: errors.New("invalid credentials"),
	AccountLocked:      errors.New("account locked"),
	LoginRateLimited:   errors.New("login rate limited"),
}

func loginTestDeps(user UserRecord, passwordOK bool) LoginDeps {
	return LoginDeps{
		LocalProvider: "LOCAL",
		Now:           func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) },
		GetUserByEmail: func(context.Context, string) (UserRecord, []Membership, error) {
			return user, []Membership{{TenantID: "t-acme"}}, nil
		},
		VerifyPassword:  func(string, string) (bool, error) { return passwordOK, nil },
		EvaluateLockout: func(*time.Time, time.Time) bool { return false },
		NextLockoutState: func(failed int, _ time.Time) (int, *time.Time, bool) {
			return failed + 1, nil, false
		},
		UpdateFailedState: func(context.Context, string, int, *time.Time) error { return nil },
		ResetFailedState:  func(context.Context, string) error { return nil },
		BuildSession: func(u UserRecord, m []Membership, _ SessionOptions) (*SessionResult, error) {
			return &SessionResult{User: u, Memberships: m, DefaultTenantID: m[0].TenantID}, nil
		},
		Errors: loginTestErrors,
	}
}

func captureWarn(warnings *[]string) func(string, ...any) {
	return func(format string, args ...any) {
		*warnings = append(*warnings, fmt.Sprintf(format, args...))
	}
}

func TestRunLocalLogin_WarnCarriesCounterUpdateError(t *testing.T) {
	user := UserRecord{ID: "u1", Provider: "LOCAL", PasswordHash: "h", Active: true}
	deps := loginTestDeps(user, false)

	var warnings []string
	deps.Warn = captureWarn(&warnings)
	deps.UpdateFailedState = func(context.Context, string, int, *time.Time) error {
		return errors.New("directory write timed out")
	}

	_, err := RunLocalLogin(context.Background(), "alice@example.com", "wrong", deps)
	if !errors.Is(err, loginTestErrors.InvalidCredentials) {
		t.Fatalf("expected credential error, got %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
	if !strings.Contains(warnings[0], "directory write timed out") {
		t.Fatalf("warning lost the underlying error: %q", warnings[0])
	}
}

func TestRunLocalLogin_WarnCarriesResetErrors(t *testing.T) {
	user := UserRecord{ID: "u1", Provider: "LOCAL", PasswordHash: "h", Active: true}
	deps := loginTestDeps(user, true)

	var warnings []string
	deps.Warn = captureWarn(&warnings)
	deps.ResetFailedState = func(context.Context, string) error {
		return errors.New("directory reset refused")
	}
	deps.ResetLoginRate = func(context.Context, string, string) error {
		return errors.New("redis gone")
	}

	result, err := RunLocalLogin(context.Background(), "alice@example.com", "correct", deps)
	if err != nil || result == nil {
		t.Fatalf("login must succeed despite reset failures: %v", err)
	}
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", warnings)
	}
	if !strings.Contains(warnings[0], "directory reset refused") || !strings.Contains(warnings[1], "redis gone") {
		t.Fatalf("warnings lost the underlying errors: %v", warnings)
	}
}
