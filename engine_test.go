package authcore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sprintloop/authcore/password"
)

const (
	testPasswordU1 = "correct-password-123"
	testPasswordU2 = "another-password-456"
)

// testClock is a mutable clock shared between the engine and assertions.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeDirectory is an in-memory UserDirectory with serialized counter
// updates, mirroring what a SQL implementation provides.
type fakeDirectory struct {
	mu          sync.Mutex
	users       map[string]*User
	byEmail     map[string]string
	memberships map[string][]TenantMembership

	// external upserts get memberships from here, keyed by email
	externalMemberships map[string][]TenantMembership
	upsertCalls         int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:               make(map[string]*User),
		byEmail:             make(map[string]string),
		memberships:         make(map[string][]TenantMembership),
		externalMemberships: make(map[string][]TenantMembership),
	}
}

func (d *fakeDirectory) addUser(u User, tenants []TenantMembership) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copied := u
	d.users[u.ID] = &copied
	d.byEmail[u.Email] = u.ID
	d.memberships[u.ID] = append([]TenantMembership(nil), tenants...)
}

func (d *fakeDirectory) snapshot(id string) (User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return User{}, false
	}
	out := *u
	if u.LockedUntil != nil {
		until := *u.LockedUntil
		out.LockedUntil = &until
	}
	return out, true
}

func (d *fakeDirectory) remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[id]; ok {
		delete(d.byEmail, u.Email)
	}
	delete(d.users, id)
	delete(d.memberships, id)
}

func (d *fakeDirectory) findLocked(id string) (*User, []TenantMembership, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, nil, ErrUserNotFound
	}
	out := *u
	if u.LockedUntil != nil {
		until := *u.LockedUntil
		out.LockedUntil = &until
	}
	return &out, append([]TenantMembership(nil), d.memberships[id]...), nil
}

func (d *fakeDirectory) FindByEmailWithTenants(_ context.Context, email string) (*User, []TenantMembership, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.byEmail[email]
	if !ok {
		return nil, nil, ErrUserNotFound
	}
	return d.findLocked(id)
}

func (d *fakeDirectory) FindByIDWithTenants(_ context.Context, id string) (*User, []TenantMembership, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.findLocked(id)
}

func (d *fakeDirectory) UpsertExternalUser(_ context.Context, input ExternalUserUpsert) (*User, []TenantMembership, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.upsertCalls++

	if id, ok := d.byEmail[input.Email]; ok {
		u := d.users[id]
		u.Name = input.Name
		u.AvatarURL = input.Picture
		return d.findLocked(id)
	}

	id := "ext-" + input.SubjectID
	d.users[id] = &User{
		ID:        id,
		Email:     input.Email,
		Name:      input.Name,
		AvatarURL: input.Picture,
		Provider:  ProviderExternal,
		Status:    AccountActive,
	}
	d.byEmail[input.Email] = id
	d.memberships[id] = append([]TenantMembership(nil), d.externalMemberships[input.Email]...)
	return d.findLocked(id)
}

func (d *fakeDirectory) IncrementTokenVersion(_ context.Context, id string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return 0, ErrUserNotFound
	}
	u.TokenVersion++
	return u.TokenVersion, nil
}

func (d *fakeDirectory) UpdateFailedAttempts(_ context.Context, id string, count int, lockedUntil *time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.FailedAttempts = count
	u.LockedUntil = lockedUntil
	return nil
}

func (d *fakeDirectory) ResetFailedAttempts(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.FailedAttempts = 0
	u.LockedUntil = nil
	return nil
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.PrivateKey = []byte("test-secret-0123456789abcdef0123")
	cfg.JWT.Issuer = "authcore-test"
	// Keep hashing cheap in tests; production defaults are much heavier.
	cfg.Password = PasswordConfig{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	return cfg
}

func mustHash(t testing.TB, cfg Config, plaintext string) string {
	t.Helper()
	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	hash, err := hasher.Hash(plaintext)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return hash
}

// seedDirectory creates the standard fixture: u1 with two tenants, u2 with
// one, u3 inactive, u4 external-only, u5 with no memberships.
func seedDirectory(t *testing.T, cfg Config) *fakeDirectory {
	t.Helper()
	dir := newFakeDirectory()

	hashU1 := mustHash(t, cfg, testPasswordU1)
	hashU2 := mustHash(t, cfg, testPasswordU2)

	dir.addUser(User{
		ID:           "u1",
		Email:        "alice@example.com",
		Name:         "Alice",
		Provider:     ProviderLocal,
		PasswordHash: hashU1,
		Status:       AccountActive,
	}, []TenantMembership{
		{TenantID: "t-acme", TenantName: "Acme", Role: "ADMIN"},
		{TenantID: "t-beta", TenantName: "Beta Corp", Role: "MEMBER"},
	})

	dir.addUser(User{
		ID:           "u2",
		Email:        "bob@example.com",
		Name:         "Bob",
		Provider:     ProviderLocal,
		PasswordHash: hashU2,
		Status:       AccountActive,
	}, []TenantMembership{
		{TenantID: "t-acme", TenantName: "Acme", Role: "MEMBER"},
	})

	dir.addUser(User{
		ID:           "u3",
		Email:        "carol@example.com",
		Name:         "Carol",
		Provider:     ProviderLocal,
		PasswordHash: hashU1,
		Status:       AccountInactive,
	}, []TenantMembership{
		{TenantID: "t-acme", TenantName: "Acme", Role: "MEMBER"},
	})

	dir.addUser(User{
		ID:       "u4",
		Email:    "dave@example.com",
		Name:     "Dave",
		Provider: ProviderExternal,
		Status:   AccountActive,
	}, []TenantMembership{
		{TenantID: "t-acme", TenantName: "Acme", Role: "MEMBER"},
	})

	dir.addUser(User{
		ID:           "u5",
		Email:        "erin@example.com",
		Name:         "Erin",
		Provider:     ProviderLocal,
		PasswordHash: hashU1,
		Status:       AccountActive,
	}, nil)

	return dir
}

func newTestEngine(t *testing.T, cfg Config, dir *fakeDirectory, clk *testClock) *Engine {
	t.Helper()
	b := New().WithConfig(cfg).WithUserDirectory(dir)
	if clk != nil {
		b = b.WithClock(clk.Now)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func TestLoginLocal_Success(t *testing.T) {
	cfg := testConfig()
	dir := seedDirectory(t, cfg)
	engine := newTestEngine(t, cfg, dir, nil)

	session, err := engine.LoginLocal(context.Background(), "alice@example.com", testPasswordU1)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if session.Tokens.AccessToken == "" || session.Tokens.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if session.Tokens.ExpiresIn != 900 {
		t.Fatalf("expected ExpiresIn 900, got %d", session.Tokens.ExpiresIn)
	}
	if session.DefaultTenantID != "t-acme" {
		t.Fatalf("expected first membership as default tenant, got %q", session.DefaultTenantID)
	}
	if len(session.User.Tenants) != 2 {
		t.Fatalf("expected 2 tenants, got %d", len(session.User.Tenants))
	}
}

func TestLoginLocal_UnknownEmail(t *testing.T) {
	cfg := testConfig()
	dir := seedDirectory(t, cfg)
	engine := newTestEngine(t, cfg, dir, nil)

	_, err := engine.LoginLocal(context.Background(), "nobody@example.com", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized class, got %v", err)
	}
}

func TestLoginLocal_ExternalAccountHasNoPassword(t *testing.T) {
	cfg := testConfig()
	dir := seedDirectory(t, cfg)
	engine := newTestEngine(t, cfg, dir, nil)

	// Same error as an unknown email: account existence stays hidden.
	_, err := engine.LoginLocal(context.Background(), "dave@example.com", "anything")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for external account, got %v", err)
	}
}

func TestLoginLocal_FifthFailureLocks(t *testing.T) {
	cfg := testConfig()
	dir := seedDirectory(t, cfg)
	clk := newTestClock()
	engine := newTestEngine(t, cfg, dir, clk)
	ctx := context.Background()

	for i := 0; i < cfg.Lockout.Threshold-1; i++ {
		_, err := engine.LoginLocal(ctx, "alice@example.com", "wrong-password")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// The threshold-crossing failure itself answers with the locked error.
	_, err := engine.LoginLocal(ctx, "alice@example.com", "wrong-password")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("threshold attempt: expected ErrAccountLocked, got %v", err)
	}
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden class, got %v", err)
	}

	u, _ := dir.snapshot("u1")
	if u.FailedAttempts != cfg.Lockout.Threshold {
		t.Fatalf("expected persisted count %d, got %d", cfg.Lockout.Threshold, u.FailedAttempts)
	}
	if u.LockedUntil == nil {
		t.Fatal("expected persisted lockedUntil")
	}
	want := clk.Now().Add(cfg.Lockout.Window)
	if !u.LockedUntil.Equal(want) {
		t.Fatalf("expected lockedUntil %v, got %v", want, *u.LockedUntil)
	}
}

func TestLoginLocal_SeededNearThreshold(t *testing.T) {
	cfg := testConfig()
	dir := seedDirectory(t, cfg)
	clk := newTestClock()
	engine := newTestEngine(t, cfg, dir, clk)

	// Simulate four prior failures persisted by earlier requests.
	four := 4
	if err := dir.UpdateFailedAttempts(context.Background(), "u1", four, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := engine.LoginLocal(context.Background(), "alice@example.com", "wrong-password")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked on 5th failure, got %v", err)
	}

	u, _ := dir.snapshot("u1")
	if u.FailedAttempts != 5 {
		t.Fatalf("expected persisted count 5, got %d", u.FailedAttempts)
	}
	if u.LockedUntil == nil || !u.LockedUntil.Equal(clk.Now().Add(15*time.Minute)) {
		t.Fatalf("expected lockedUntil 15m out, got %v", u.LockedUntil)
	}
}

func TestLoginLocal_LockedRejectsCorrectPassword(t *testing.T) {
	cfg := testConfig()
	dir := seedDirectory(t, cfg)
	clk := newTestClock()
	engine := newTestEngine(t, cfg, dir, clk)
	ctx := context.Background()

	until := clk.Now().Add(10 * time.Minute)
	if err := dir.UpdateFailedAttempts(ctx, "u1", 5, &until); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := engine.LoginLocal(ctx, "alice@example.com", testPasswordU1)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with correct password, got %v", err)
	}

	// The rejected attempt must not touch the counter.
	u, _ := dir.snapshot("u1")
	if u.FailedAttempts != 5 {
		t.Fatalf("counter changed during lockout: %d", u.FailedAttempts)
	}
}

func TestLoginLocal_WindowExpiry(t *testing.T) {
	cfg := testConfig()
	dir := seedDirectory(t, cfg)
	clk := newTestClock()
	engine := newTestEngine(t, cfg, dir, clk)
	ctx := context.Background()

	until := clk.Now().Add(cfg.Lockout.Window)
	if err := dir.UpdateFailedAttempts(ctx, "u1", 5, &until); err != nil {
		t.Fatalf("seed: %v", err)
	}

	clk.Advance(cfg.Lockout.Window + time.Second)

	// Past the window a wrong password re-locks immediately: the counter was
	// never reset, so the next failure is number six.
	_, err := engine.LoginLocal(ctx, "alice@example.com", "wrong-password")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected immediate re-lock after window, got %v", err)
	}

	clk.Advance(cfg.Lockout.Window + time.Second)

	// A correct password past the window succeeds and resets everything.
	session, err := engine.LoginLocal(ctx, "alice@example.com", testPasswordU1)
	if err != nil {
		t.Fatalf("login after window failed: %v", err)
	}
	if session == nil {
		t.Fatal("expected session")
	}
	u, _ := dir.snapshot("u1")
	if u.FailedAttempts != 0 || u.LockedUntil != nil {
		t.Fatalf("expected counter reset, got count=%d lockedUntil=%v", u.FailedAttempts, u.LockedUntil)
	}
}

func TestLoginLocal_CounterResetsOnSuccess(t *testing.T) {
	cfg := testConfig()
	dir := seedDirectory(t, cfg)
	engine := newTestEngine(t, cfg, dir, nil)
	ctx := context.Background()

	for i := 0; i < cfg.Lockout.Threshold-1; i++ {
		if _, err := engine.LoginLocal(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if _, err := engine.LoginLocal(ctx, "alice@example.com", testPasswordU1); err != nil {
		t.Fatalf("success login failed: %v", err)
	}

	// Fresh budget after the reset: threshold-1 more failures stay generic.
	for i := 0; i < cfg.Lockout.Threshold-1; i++ {
		if _, err := engine.LoginLocal(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("post-reset attempt %d: %v", i+1, err)
		}
	}
}

func TestLoginLocal_InactiveAccount(t *testing.T) {
	cfg := testConfig()
	dir := seedDirectory(t, cfg)
	engine := newTestEngine(t, cfg, dir, nil)

	_, err := engine.LoginLocal(context.Background(), "carol@example.com", testPasswordU1)
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden class, got %v", err)
	}
}

func TestLoginLocal_NoTenantAccess(t *testing.T) {
	cfg := testConfig()
	dir := seedDirectory(t, cfg)
	engine := newTestEngine(t, cfg, dir, nil)

	_, err := engine.LoginLocal(context.Background(), "erin@example.com", testPasswordU1)
	if !errors.Is(err, ErrNoTenantAccess) {
		t.Fatalf("expected ErrNoTenantAccess, got %v", err)
	}
}

func TestLoginLocal_Metrics(t *testing.T) {
	cfg := testConfig()
	dir := seedDirectory(t, cfg)
	engine := newTestEngine(t, cfg, dir, nil)
	ctx := context.Background()

	if _, err := engine.LoginLocal(ctx, "alice@example.com", testPasswordU1); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := engine.LoginLocal(ctx, "alice@example.com", "wrong-password"); err == nil {
		t.Fatal("expected failure")
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("login success counter: %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("login failure counter: %d", snap.Counters[MetricLoginFailure])
	}
	if snap.Counters[MetricSessionIssued] != 1 {
		t.Fatalf("session issued counter: %d", snap.Counters[MetricSessionIssued])
	}
}

func TestLoginLocal_AuditEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	dir := seedDirectory(t, cfg)
	sink := NewChannelSink(16)

	engine, err := New().WithConfig(cfg).WithUserDirectory(dir).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	if _, err := engine.LoginLocal(ctx, "alice@example.com", testPasswordU1); err != nil {
		t.Fatalf("login: %v", err)
	}

	select {
	case event := <-sink.Events():
		if event.EventType != "login_success" {
			t.Fatalf("expected login_success event, got %q", event.EventType)
		}
		if event.UserID != "u1" || !event.Success {
			t.Fatalf("unexpected event payload: %+v", event)
		}
		if event.IP != "203.0.113.7" {
			t.Fatalf("expected client IP in event, got %q", event.IP)
		}
		if event.Provider != string(ProviderLocal) {
			t.Fatalf("expected LOCAL provider tag, got %q", event.Provider)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event received")
	}
}

func TestBuild_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing key", func(c *Config) { c.JWT.PrivateKey = nil }},
		{"zero threshold", func(c *Config) { c.Lockout.Threshold = 0 }},
		{"refresh not above access", func(c *Config) { c.JWT.RefreshTTL = c.JWT.AccessTTL }},
		{"oauth enabled without client", func(c *Config) { c.OAuth.Enabled = true }},
		{"throttle without redis", func(c *Config) { c.Security.EnableLoginThrottle = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			_, err := New().WithConfig(cfg).WithUserDirectory(newFakeDirectory()).Build()
			if err == nil {
				t.Fatal("expected build error")
			}
		})
	}

	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected error without user directory")
	}
}

func TestBuilder_SingleUse(t *testing.T) {
	cfg := testConfig()
	b := New().WithConfig(cfg).WithUserDirectory(newFakeDirectory())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestLoginLocal_ConcurrentSameAccount(t *testing.T) {
	cfg := testConfig()
	dir := seedDirectory(t, cfg)
	engine := newTestEngine(t, cfg, dir, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.LoginLocal(ctx, "alice@example.com", testPasswordU1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent login failed: %v", err)
		}
	}
}

func ExampleEngine_LoginLocal() {
	cfg := defaultConfig()
	cfg.JWT.PrivateKey = []byte("example-secret-0123456789abcdef0")

	engine, err := New().
		WithConfig(cfg).
		WithUserDirectory(newFakeDirectory()).
		Build()
	if err != nil {
		fmt.Println("build failed")
		return
	}
	defer engine.Close()

	_, err = engine.LoginLocal(context.Background(), "nobody@example.com", "pw")
	fmt.Println(errors.Is(err, ErrUnauthorized))
	// Output: true
}
