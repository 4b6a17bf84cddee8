package authcore

import (
	"errors"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sprintloop/authcore/identity"
	internalaudit "github.com/sprintloop/authcore/internal/audit"
	"github.com/sprintloop/authcore/internal/limiters"
	"github.com/sprintloop/authcore/internal/rate"
	"github.com/sprintloop/authcore/internal/stores"
	"github.com/sprintloop/authcore/jwt"
	"github.com/sprintloop/authcore/password"
)

const memoryStateSweepInterval = time.Minute

// Builder assembles an [Engine]. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	directory UserDirectory
	auditSink AuditSink

	now        func() time.Time
	randSource io.Reader

	built bool
}

// New returns a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the shared Redis client. Required for the login throttle
// and for multi-instance PKCE state; without it the engine falls back to a
// process-local state store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserDirectory supplies the host's persistence implementation. Required.
func (b *Builder) WithUserDirectory(d UserDirectory) *Builder {
	b.directory = d
	return b
}

// WithAuditSink supplies the audit destination. Events are dispatched only
// when Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine clock. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithRandom overrides the entropy source for state tokens and PKCE
// verifiers. Intended for tests.
func (b *Builder) WithRandom(r io.Reader) *Builder {
	b.randSource = r
	return b
}

// Build validates the configuration, wires every collaborator, and returns
// the immutable engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.directory == nil {
		return nil, errors.New("user directory required")
	}
	if cfg.Security.EnableLoginThrottle && b.redis == nil {
		return nil, errors.New("login throttle requires redis client")
	}

	engine := &Engine{
		config:     cfg,
		directory:  b.directory,
		now:        b.now,
		randSource: b.randSource,
	}
	if engine.now == nil {
		engine.now = time.Now
	}

	method, err := jwt.ParseSigningMethod(cfg.JWT.SigningMethod)
	if err != nil {
		return nil, err
	}
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: method,
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm.WithClock(engine.now)

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	engine.lockout = limiters.LockoutPolicy{
		Threshold: cfg.Lockout.Threshold,
		Window:    cfg.Lockout.Window,
	}

	if cfg.OAuth.Enabled {
		provider, err := identity.NewProvider(identity.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			AuthURL:      cfg.OAuth.AuthURL,
			TokenURL:     cfg.OAuth.TokenURL,
			UserInfoURL:  cfg.OAuth.UserInfoURL,
			RedirectURL:  cfg.OAuth.RedirectURL,
			Scopes:       cfg.OAuth.Scopes,
			HTTPTimeout:  cfg.OAuth.HTTPTimeout,
		})
		if err != nil {
			return nil, err
		}
		engine.provider = provider
	}

	if b.redis != nil {
		engine.stateStore = stores.NewRedisStateStore(b.redis, cfg.OAuth.StatePrefix, engine.now)
	} else {
		memory := stores.NewMemoryStateStore(engine.now)
		memory.StartSweeper(memoryStateSweepInterval)
		engine.stateStore = memory
		engine.memoryState = memory
	}

	if cfg.Security.EnableLoginThrottle {
		engine.throttle = rate.New(b.redis, rate.Config{
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		})
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	engine.buildFlowDeps()

	b.built = true

	return engine, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
