package authcore

import (
	"errors"
	"strings"
	"time"
)

// Config is the complete engine configuration. Populate it before
// [Builder.Build]; the engine treats it as immutable afterwards.
type Config struct {
	JWT      JWTConfig
	Lockout  LockoutConfig
	OAuth    OAuthConfig
	Password PasswordConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig controls token issuance and verification.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// LockoutConfig controls the consecutive-failure lockout policy for local
// logins. A threshold of 5 with a 15 minute window means the 5th consecutive
// failure locks the account until the window elapses or a successful login
// resets the counter.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
}

// OAuthConfig describes the external identity provider. When Enabled is
// false, InitiateExternalLogin fails with [ErrProviderDisabled] and no PKCE
// state is created.
type OAuthConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Scopes       []string
	StateTTL     time.Duration // PKCE state lifetime, default 5 minutes
	StatePrefix  string        // Redis key prefix for the shared state store
	HTTPTimeout  time.Duration // client-side timeout on the token exchange
}

// PasswordConfig holds the Argon2id parameters. Defaults are tuned so one
// verification costs on the order of 100ms on current server hardware.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityConfig controls the optional pre-credential login throttle. The
// throttle requires a Redis client and sits in front of the lockout policy;
// it bounds attempt volume per identifier+IP, while lockout bounds
// consecutive failures per account.
type SecurityConfig struct {
	EnableLoginThrottle   bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// AuditConfig controls dispatcher buffering behavior.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig enables the in-process atomic counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the configuration the Builder starts from. Hosts
// typically take it, set JWT.PrivateKey and the OAuth block, and pass the
// result to [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Window:    15 * time.Minute,
		},
		OAuth: OAuthConfig{
			Enabled:     false,
			Scopes:      []string{"openid", "email", "profile"},
			StateTTL:    5 * time.Minute,
			StatePrefix: "pkce",
			HTTPTimeout: 10 * time.Second,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   false,
			MaxLoginAttempts:      20,
			LoginCooldownDuration: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = append([]byte(nil), cfg.JWT.PrivateKey...)
	out.JWT.PublicKey = append([]byte(nil), cfg.JWT.PublicKey...)
	out.OAuth.Scopes = append([]string(nil), cfg.OAuth.Scopes...)
	return out
}

// Validate checks internal consistency. Build calls it; hosts loading config
// from files may call it earlier for better error locality.
func (c Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT.AccessTTL must be positive")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT.RefreshTTL must exceed JWT.AccessTTL")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256", "ed25519":
	default:
		return errors.New("JWT.SigningMethod must be hs256 or ed25519")
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("JWT.PrivateKey is required")
	}
	if c.Lockout.Threshold < 1 {
		return errors.New("Lockout.Threshold must be at least 1")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout.Window must be positive")
	}
	if c.OAuth.Enabled {
		if c.OAuth.ClientID == "" {
			return errors.New("OAuth.ClientID is required when OAuth is enabled")
		}
		if c.OAuth.AuthURL == "" || c.OAuth.TokenURL == "" {
			return errors.New("OAuth.AuthURL and OAuth.TokenURL are required when OAuth is enabled")
		}
		if c.OAuth.RedirectURL == "" {
			return errors.New("OAuth.RedirectURL is required when OAuth is enabled")
		}
		if c.OAuth.StateTTL <= 0 {
			return errors.New("OAuth.StateTTL must be positive")
		}
	}
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts < 1 {
			return errors.New("Security.MaxLoginAttempts must be at least 1")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("Security.LoginCooldownDuration must be positive")
		}
	}
	return nil
}
