package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitegate-io/sitegate/internal/db"
	"github.com/sitegate-io/sitegate/internal/session"
)

// Service orchestrates login, callback and logout. A login flow moves through
// authorization-requested (state issued, user redirected to the provider),
// callback-received (code exchanged for claims), and either authenticated
// (session created, safe redirect computed) or rejected. A callback whose
// state has no matching in-flight login is rejected without processing.
//
// The HTTP layer depends on Service, never on the provider, reconciler or
// validator directly.
type Service struct {
	provider   Provider
	reconciler *Reconciler
	redirects  *RedirectValidator
	sessions   *session.Manager
	pending    *pendingStore
	postLogout string
	logger     *zap.Logger
}

// NewService creates the flow controller. postLogoutURL is where the provider
// returns the user after logout, conventionally the hosting root URL.
func NewService(
	provider Provider,
	reconciler *Reconciler,
	redirects *RedirectValidator,
	sessions *session.Manager,
	postLogoutURL string,
	logger *zap.Logger,
) *Service {
	return &Service{
		provider:   provider,
		reconciler: reconciler,
		redirects:  redirects,
		sessions:   sessions,
		pending:    newPendingStore(pendingTTL),
		postLogout: postLogoutURL,
		logger:     logger.Named("auth_flow"),
	}
}

// LoginResult is returned by Callback on successful authentication.
type LoginResult struct {
	User *db.User

	// Handle is the opaque session handle the HTTP layer must set as the
	// session cookie.
	Handle string

	// RedirectTo is the validated post-login redirect target.
	RedirectTo string
}

// Login starts an authorization flow. It records the caller's desired return
// path against a fresh state value and returns the provider authorization URL
// to redirect the visitor to. The return path is stored opaque and
// unvalidated — validation happens against the authenticated user at
// callback time.
func (s *Service) Login(ctx context.Context, returnPath string) (string, error) {
	authURL, state, verifier, err := s.provider.AuthorizationURL()
	if err != nil {
		return "", err
	}

	s.pending.put(state, pendingLogin{
		ReturnPath:   returnPath,
		CodeVerifier: verifier,
		CreatedAt:    time.Now(),
	})

	return authURL, nil
}

// Callback completes the flow after the provider redirects back. On any
// rejection — unknown state, provider failure, reconciliation refusal — no
// session is created and no partial state is left behind.
func (s *Service) Callback(ctx context.Context, code, state string) (*LoginResult, error) {
	pend, ok := s.pending.consume(state)
	if !ok {
		return nil, ErrStateMismatch
	}

	claims, err := s.provider.Exchange(ctx, code, pend.CodeVerifier)
	if err != nil {
		return nil, err
	}

	user, err := s.reconciler.Reconcile(ctx, claims)
	if err != nil {
		return nil, err
	}

	handle, err := s.sessions.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("auth: creating session: %w", err)
	}

	target := s.redirects.Validate(ctx, pend.ReturnPath, user)

	s.logger.Info("login completed",
		zap.String("sub", user.ID),
		zap.Bool("admin", user.Admin),
		zap.Duration("flow_duration", time.Since(pend.CreatedAt)),
	)

	return &LoginResult{User: user, Handle: handle, RedirectTo: target}, nil
}

// Logout destroys the session and returns the provider logout redirect.
// Reachable only with an authenticated session; destroying is idempotent so
// a stale handle still produces a clean logout.
func (s *Service) Logout(ctx context.Context, handle string) (string, error) {
	if err := s.sessions.Destroy(ctx, handle); err != nil {
		return "", fmt.Errorf("auth: destroying session: %w", err)
	}
	return s.provider.LogoutURL(s.postLogout), nil
}
