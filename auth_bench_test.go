package authcore

import (
	"context"
	"testing"
)

func newBenchmarkEngine(b *testing.B) (*Engine, *AuthSession) {
	b.Helper()

	cfg := testConfig()
	dir := newFakeDirectory()
	hash := mustHash(b, cfg, testPasswordU1)
	dir.addUser(User{
		ID:           "u1",
		Email:        "alice@example.com",
		Provider:     ProviderLocal,
		PasswordHash: hash,
		Status:       AccountActive,
	}, []TenantMembership{{TenantID: "t-acme", TenantName: "Acme", Role: "admin"}})

	engine, err := New().
		WithConfig(cfg).
		WithUserDirectory(dir).
		Build()
	if err != nil {
		b.Fatalf("Build: %v", err)
	}
	b.Cleanup(engine.Close)

	session, err := engine.LoginLocal(context.Background(), "alice@example.com", testPasswordU1)
	if err != nil {
		b.Fatalf("LoginLocal: %v", err)
	}
	return engine, session
}

func BenchmarkVerifyAccessToken(b *testing.B) {
	engine, session := newBenchmarkEngine(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.VerifyAccessToken(session.Tokens.AccessToken); err != nil {
			b.Fatalf("verify: %v", err)
		}
	}
}

func BenchmarkLoginLocal(b *testing.B) {
	engine, _ := newBenchmarkEngine(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.LoginLocal(context.Background(), "alice@example.com", testPasswordU1); err != nil {
			b.Fatalf("login: %v", err)
		}
	}
}

func BenchmarkRefreshSession(b *testing.B) {
	engine, session := newBenchmarkEngine(b)

	refresh := session.Tokens.RefreshToken
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		next, err := engine.RefreshSession(context.Background(), refresh)
		if err != nil {
			b.Fatalf("refresh: %v", err)
		}
		refresh = next.Tokens.RefreshToken
	}
}
