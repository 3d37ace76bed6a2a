package auth

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitegate-io/sitegate/internal/session"
)

// fakeFlowProvider is a Provider that hands out deterministic states and a
// fixed claim set, recording what it receives.
type fakeFlowProvider struct {
	nextState   int
	lastState   string
	claims      *Claims
	exchangeErr error
	gotCode     string
	gotVerifier string
}

func (p *fakeFlowProvider) AuthorizationURL() (string, string, string, error) {
	p.nextState++
	p.lastState = fmt.Sprintf("state-%d", p.nextState)
	return "https://idp.example/authorize?state=" + p.lastState, p.lastState, "verifier-" + p.lastState, nil
}

func (p *fakeFlowProvider) Exchange(_ context.Context, code, verifier string) (*Claims, error) {
	p.gotCode = code
	p.gotVerifier = verifier
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return p.claims, nil
}

func (p *fakeFlowProvider) LogoutURL(postLogout string) string {
	return "https://idp.example/logout?post_logout_redirect_uri=" + postLogout
}

func newTestService(provider Provider, users *fakeUserRepo, sites *fakeSiteRepo) (*Service, *session.Manager) {
	logger := zap.NewNop()
	sessions := session.NewManager(session.NewMemoryStore(), users, 0)
	svc := NewService(
		provider,
		NewReconciler(users, "", logger),
		NewRedirectValidator(sites, logger),
		sessions,
		"https://gateway.example/",
		logger,
	)
	return svc, sessions
}

func TestService_LoginThenCallback(t *testing.T) {
	provider := &fakeFlowProvider{claims: testClaims()}
	users := newFakeUserRepo()
	svc, sessions := newTestService(provider, users, newFakeSiteRepo())
	ctx := context.Background()

	authURL, err := svc.Login(ctx, "/editor")
	require.NoError(t, err)
	assert.Contains(t, authURL, provider.lastState)

	res, err := svc.Callback(ctx, "code-1", provider.lastState)
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.User.ID)
	assert.Equal(t, "/editor", res.RedirectTo)
	assert.Equal(t, "code-1", provider.gotCode)
	assert.Equal(t, "verifier-"+provider.lastState, provider.gotVerifier, "the stored PKCE verifier must travel to the exchange")

	resolved, err := sessions.Resolve(ctx, res.Handle)
	require.NoError(t, err)
	assert.Equal(t, "abc123", resolved.ID)
}

func TestService_CallbackWithoutPriorLogin(t *testing.T) {
	provider := &fakeFlowProvider{claims: testClaims()}
	svc, _ := newTestService(provider, newFakeUserRepo(), newFakeSiteRepo())

	_, err := svc.Callback(context.Background(), "code-1", "forged-state")
	require.ErrorIs(t, err, ErrStateMismatch)
	assert.Empty(t, provider.gotCode, "a callback without matching state must not reach the provider")
}

func TestService_StateIsSingleUse(t *testing.T) {
	provider := &fakeFlowProvider{claims: testClaims()}
	svc, _ := newTestService(provider, newFakeUserRepo(), newFakeSiteRepo())
	ctx := context.Background()

	_, err := svc.Login(ctx, "")
	require.NoError(t, err)
	state := provider.lastState

	_, err = svc.Callback(ctx, "code-1", state)
	require.NoError(t, err)

	_, err = svc.Callback(ctx, "code-1", state)
	require.ErrorIs(t, err, ErrStateMismatch)
}

func TestService_ProviderFailureRejects(t *testing.T) {
	provider := &fakeFlowProvider{exchangeErr: fmt.Errorf("%w: code expired", ErrProvider)}
	users := newFakeUserRepo()
	svc, _ := newTestService(provider, users, newFakeSiteRepo())
	ctx := context.Background()

	_, err := svc.Login(ctx, "/editor")
	require.NoError(t, err)

	_, err = svc.Callback(ctx, "code-1", provider.lastState)
	require.ErrorIs(t, err, ErrProvider)
	assert.Zero(t, users.writes, "no user may be persisted on a provider failure")
}

func TestService_RejectionCreatesNoState(t *testing.T) {
	provider := &fakeFlowProvider{claims: testClaims()}
	provider.claims.EmailVerified = false
	users := newFakeUserRepo()
	svc, _ := newTestService(provider, users, newFakeSiteRepo())
	ctx := context.Background()

	_, err := svc.Login(ctx, "/editor")
	require.NoError(t, err)

	_, err = svc.Callback(ctx, "code-1", provider.lastState)
	require.ErrorIs(t, err, ErrEmailNotVerified)
	assert.Zero(t, users.writes)
}

func TestService_CrossOriginRedirectValidated(t *testing.T) {
	provider := &fakeFlowProvider{claims: testClaims()}
	sites := newFakeSiteRepo()
	sites.addSite("blog.example", "abc123")
	svc, _ := newTestService(provider, newFakeUserRepo(), sites)
	ctx := context.Background()

	_, err := svc.Login(ctx, "https://blog.example/admin")
	require.NoError(t, err)

	res, err := svc.Callback(ctx, "code-1", provider.lastState)
	require.NoError(t, err)
	assert.Equal(t, "https://blog.example/admin", res.RedirectTo)
}

func TestService_Logout(t *testing.T) {
	provider := &fakeFlowProvider{claims: testClaims()}
	svc, sessions := newTestService(provider, newFakeUserRepo(), newFakeSiteRepo())
	ctx := context.Background()

	_, err := svc.Login(ctx, "")
	require.NoError(t, err)
	res, err := svc.Callback(ctx, "code-1", provider.lastState)
	require.NoError(t, err)

	logoutURL, err := svc.Logout(ctx, res.Handle)
	require.NoError(t, err)
	assert.Contains(t, logoutURL, "idp.example/logout")

	_, err = sessions.Resolve(ctx, res.Handle)
	assert.ErrorIs(t, err, session.ErrNotFound)
}
