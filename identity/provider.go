package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// ErrExchangeFailed covers network errors, non-2xx provider responses, and
// malformed provider payloads during the code exchange or userinfo fetch.
var ErrExchangeFailed = errors.New("identity exchange failed")

// Claims is the normalized identity payload derived from the provider's
// userinfo response. Email may be empty; Username is the provider's fallback
// identifier (preferred_username).
type Claims struct {
	Subject  string
	Email    string
	Username string
	Name     string
	Picture  string
}

// Config describes one external identity provider.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Scopes       []string
	HTTPTimeout  time.Duration
}

// Provider builds authorization URLs and performs the token exchange.
// Immutable after construction and safe for concurrent use.
type Provider struct {
	conf        *oauth2.Config
	userInfoURL string
	client      *http.Client
}

// NewProvider creates a Provider from cfg. HTTPTimeout defaults to 10s.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client id required")
	}
	if cfg.AuthURL == "" || cfg.TokenURL == "" || cfg.UserInfoURL == "" {
		return nil, errors.New("provider endpoints required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect url required")
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Provider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       append([]string(nil), cfg.Scopes...),
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

// AuthorizationURL builds the provider's /authorize URL binding the given
// state and S256 code challenge. No network call is made.
func (p *Provider) AuthorizationURL(state, codeChallenge string) string {
	return p.conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange trades the authorization code and PKCE verifier for provider
// tokens, then fetches and normalizes the userinfo claims.
func (p *Provider) Exchange(ctx context.Context, code, codeVerifier string) (*Claims, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.conf.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return p.fetchUserInfo(ctx, token.AccessToken)
}

type userInfoResponse struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	Picture           string `json:"picture"`
}

func (p *Provider) fetchUserInfo(ctx context.Context, accessToken string) (*Claims, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo status %d", ErrExchangeFailed, resp.StatusCode)
	}

	var info userInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("%w: userinfo missing subject", ErrExchangeFailed)
	}

	return &Claims{
		Subject:  info.Sub,
		Email:    info.Email,
		Username: info.PreferredUsername,
		Name:     info.Name,
		Picture:  info.Picture,
	}, nil
}
