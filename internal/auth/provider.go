// Package auth implements the core of the authentication gateway: the OIDC
// provider client, the identity reconciler that turns verified claims into
// local user records, the open-redirect validator, and the flow controller
// that drives login, callback and logout.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	// discoveryTimeout bounds provider discovery at startup. Discovery is
	// performed once and cached for the process lifetime; if it does not
	// complete within this window the process must not start.
	discoveryTimeout = 10 * time.Second

	// clockSkew is the tolerance applied when validating ID token timestamps.
	clockSkew = time.Second

	// stateBytes is the length of the random state parameter before encoding.
	stateBytes = 16
)

// Claims are the verified identity claims extracted from an ID token.
// They are transient: consumed once by the reconciler, never persisted as-is.
type Claims struct {
	Subject       string `json:"sub"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
}

// Provider issues authorization redirects and exchanges authorization codes
// for verified claims against a single external identity provider.
type Provider interface {
	// AuthorizationURL builds the authorization request URL. It returns the
	// random state parameter and, when PKCE is enabled, the code verifier the
	// caller must retain until the callback.
	AuthorizationURL() (authURL, state, codeVerifier string, err error)

	// Exchange redeems the authorization code and returns the verified claims
	// from the ID token. verifier is the PKCE code verifier from
	// AuthorizationURL, empty when PKCE is disabled. All failures are
	// ErrProvider.
	Exchange(ctx context.Context, code, verifier string) (*Claims, error)

	// LogoutURL builds the provider's end-session redirect returning the user
	// to postLogout afterwards. Falls back to postLogout directly when the
	// provider does not advertise an end_session_endpoint.
	LogoutURL(postLogout string) string
}

// ProviderConfig holds the static client configuration for the identity
// provider. All fields except EnablePKCE are required.
type ProviderConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string // the gateway's /oidc-callback endpoint, absolute
	EnablePKCE   bool
}

// oidcProvider implements Provider using coreos/go-oidc. Discovery happens
// once in NewProvider; the resulting endpoint and key configuration are held
// for the process lifetime — repeated discovery per request would add latency
// and a new failure surface to every login.
type oidcProvider struct {
	cfg        ProviderConfig
	oauth2Cfg  oauth2.Config
	verifier   *gooidc.IDTokenVerifier
	endSession string
}

// NewProvider performs provider discovery and returns the configured client.
// A discovery failure is a configuration error: the caller is expected to
// abort startup.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" || cfg.RedirectURL == "" {
		return nil, fmt.Errorf("auth: issuer URL, client ID and redirect URL are required")
	}

	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	provider, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("auth: discovering provider %q: %w", cfg.IssuerURL, err)
	}

	// end_session_endpoint is optional in the discovery document; providers
	// without one get a plain post-logout redirect.
	var extra struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&extra); err != nil {
		return nil, fmt.Errorf("auth: reading provider metadata: %w", err)
	}

	return &oidcProvider{
		cfg: cfg,
		oauth2Cfg: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{gooidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&gooidc.Config{
			ClientID: cfg.ClientID,
			Now:      func() time.Time { return time.Now().Add(-clockSkew) },
		}),
		endSession: extra.EndSessionEndpoint,
	}, nil
}

// AuthorizationURL implements Provider.
func (p *oidcProvider) AuthorizationURL() (string, string, string, error) {
	state, err := generateRandomBase64(stateBytes)
	if err != nil {
		return "", "", "", fmt.Errorf("auth: generating state: %w", err)
	}

	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}

	var codeVerifier string
	if p.cfg.EnablePKCE {
		codeVerifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(codeVerifier))
	}

	return p.oauth2Cfg.AuthCodeURL(state, opts...), state, codeVerifier, nil
}

// Exchange implements Provider. Every failure mode — network, invalid code,
// missing or unverifiable ID token — is wrapped in ErrProvider so the flow
// controller can treat them uniformly.
func (p *oidcProvider) Exchange(ctx context.Context, code, verifier string) (*Claims, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := p.oauth2Cfg.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: exchanging code: %v", ErrProvider, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%w: token response missing id_token", ErrProvider)
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: verifying id_token: %v", ErrProvider, err)
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: extracting claims: %v", ErrProvider, err)
	}

	return &claims, nil
}

// LogoutURL implements Provider.
func (p *oidcProvider) LogoutURL(postLogout string) string {
	if p.endSession == "" {
		return postLogout
	}
	q := url.Values{}
	q.Set("post_logout_redirect_uri", postLogout)
	q.Set("client_id", p.cfg.ClientID)
	return p.endSession + "?" + q.Encode()
}

// generateRandomBase64 returns a URL-safe base64-encoded random string of n bytes.
func generateRandomBase64(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
