package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a symmetric secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key.
	MethodEd25519 SigningMethod = "ed25519"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// ErrTokenInvalid covers bad signatures, expired lifetimes, malformed
// claims, and token-kind mismatches.
var ErrTokenInvalid = errors.New("invalid token")

// Config holds signing and verification parameters. For HS256, PrivateKey is
// the shared secret and PublicKey is unused.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// Manager signs and parses tokens. Immutable after construction.
type Manager struct {
	config Config
	now    func() time.Time
}

// TenantClaim is one tenant membership entry inside the access token. The
// JSON keys (tenantId, nome, role) are the session contract the web client
// already depends on.
type TenantClaim struct {
	TenantID string `json:"tenantId"`
	Name     string `json:"nome"`
	Role     string `json:"role"`
}

// AccessClaims is the access token payload. Subject is the user id.
type AccessClaims struct {
	Email           string        `json:"email"`
	Name            string        `json:"name"`
	Picture         string        `json:"picture,omitempty"`
	Tenants         []TenantClaim `json:"tenants"`
	DefaultTenantID string        `json:"defaultTenantId"`
	Kind            string        `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims is the refresh token payload. TokenVersion is the user's
// version counter at issuance time; the engine compares it against the
// current record on every refresh.
type RefreshClaims struct {
	TokenVersion int64  `json:"tokenVersion"`
	Kind         string `json:"typ"`
	jwt.RegisteredClaims
}

// AccessParams is the input to [Manager.CreateAccess].
type AccessParams struct {
	UserID          string
	Email           string
	Name            string
	Picture         string
	Tenants         []TenantClaim
	DefaultTenantID string
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg, now: time.Now}, nil
}

// WithClock overrides the issuance clock. Intended for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

// AccessTTL reports the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.config.AccessTTL
}

// CreateAccess signs an access token for the given identity snapshot.
func (m *Manager) CreateAccess(p AccessParams) (string, error) {
	now := m.now()
	claims := AccessClaims{
		Email:           p.Email,
		Name:            p.Name,
		Picture:         p.Picture,
		Tenants:         p.Tenants,
		DefaultTenantID: p.DefaultTenantID,
		Kind:            kindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.UserID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}
	return m.sign(jwt.NewWithClaims(m.getMethod(), claims))
}

// CreateRefresh signs a refresh token carrying tokenVersion for the user.
func (m *Manager) CreateRefresh(userID string, tokenVersion int64) (string, error) {
	now := m.now()
	claims := RefreshClaims{
		TokenVersion: tokenVersion,
		Kind:         kindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.RefreshTTL)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}
	return m.sign(jwt.NewWithClaims(m.getMethod(), claims))
}

// ParseAccess verifies signature, lifetime, issuer, and token kind.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Kind != kindAccess {
		return nil, fmt.Errorf("%w: not an access token", ErrTokenInvalid)
	}
	return claims, nil
}

// ParseRefresh verifies signature, lifetime, issuer, and token kind. It does
// not compare TokenVersion against the user record.
func (m *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Kind != kindRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", ErrTokenInvalid)
	}
	return claims, nil
}

func (m *Manager) sign(token *jwt.Token) (string, error) {
	signKey, err := m.getSignKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(signKey)
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.getMethod().Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.getVerifyKey()
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}

func (m *Manager) getMethod() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return jwt.SigningMethodEdDSA
	default:
		return jwt.SigningMethodHS256
	}
}

func (m *Manager) getSignKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return parseEdPrivateKey(m.config.PrivateKey)
	default:
		return m.config.PrivateKey, nil
	}
}

func (m *Manager) getVerifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(m.config.PublicKey)
	default:
		return m.config.PrivateKey, nil
	}
}

// ParseSigningMethod maps a config string to a [SigningMethod].
func ParseSigningMethod(s string) (SigningMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hs256":
		return MethodHS256, nil
	case "ed25519":
		return MethodEd25519, nil
	default:
		return "", errors.New("unsupported signing method")
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
