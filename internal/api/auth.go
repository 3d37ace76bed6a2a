package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sitegate-io/sitegate/internal/auth"
)

const (
	// sessionCookie is the httpOnly cookie carrying the opaque session
	// handle. No Max-Age is set: the server-side sliding expiration governs
	// the session lifetime, not the browser.
	sessionCookie = "sitegate_session"

	// loginFailedPath is the generic failure page every rejected login is
	// redirected to, regardless of the rejection reason.
	loginFailedPath = "/login-failed"
)

// AuthHandler serves the browser-facing login, callback and logout routes.
type AuthHandler struct {
	svc    *auth.Service
	logger *zap.Logger
	secure bool // true in production (HTTPS), false in development
}

// NewAuthHandler creates an AuthHandler. secure controls the cookie Secure
// flag — set to true in production and false in local development over HTTP.
func NewAuthHandler(svc *auth.Service, logger *zap.Logger, secure bool) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger.Named("auth_handler"),
		secure: secure,
	}
}

// Login handles GET /login. The optional redirectUrl query parameter is the
// visitor's desired post-login return path; it travels opaque through the
// provider round-trip and is validated only at callback time.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	returnPath := r.URL.Query().Get("redirectUrl")

	authURL, err := h.svc.Login(r.Context(), returnPath)
	if err != nil {
		h.logger.Error("failed to start login", zap.Error(err))
		http.Redirect(w, r, loginFailedPath, http.StatusFound)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles GET and POST /oidc-callback. The provider redirects here
// with the authorization code and the echoed state. Every rejection kind gets
// the same generic failure redirect; the distinguishing reason goes to the
// log and the metrics counter only.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// FormValue covers both the GET query form and the response_mode=form_post
	// variant some providers use.
	code := r.FormValue("code")
	state := r.FormValue("state")

	if code == "" || state == "" {
		loginsTotal.WithLabelValues(resultStateMismatch).Inc()
		http.Redirect(w, r, loginFailedPath, http.StatusFound)
		return
	}

	res, err := h.svc.Callback(r.Context(), code, state)
	if err != nil {
		h.rejectLogin(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    res.Handle,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	loginsTotal.WithLabelValues(resultSuccess).Inc()
	http.Redirect(w, r, res.RedirectTo, http.StatusFound)
}

// rejectLogin logs the rejection with its reason and issues the generic
// failure redirect. No session cookie is set on any rejection path.
func (h *AuthHandler) rejectLogin(w http.ResponseWriter, r *http.Request, err error) {
	var result string
	switch {
	case errors.Is(err, auth.ErrStateMismatch):
		result = resultStateMismatch
	case errors.Is(err, auth.ErrEmailNotVerified):
		result = resultEmailNotVerified
	case errors.Is(err, auth.ErrEmailConflict):
		result = resultEmailConflict
	default:
		result = resultProviderError
	}

	h.logger.Warn("login rejected", zap.String("reason", result), zap.Error(err))
	loginsTotal.WithLabelValues(result).Inc()
	http.Redirect(w, r, loginFailedPath, http.StatusFound)
}

// Logout handles GET /logout. The session is destroyed first, then the user
// is sent through the provider's logout redirect, which returns them to the
// hosting root URL. Without a session cookie this degrades to the provider
// redirect alone.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	handle := ""
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		handle = cookie.Value
	}

	logoutURL, err := h.svc.Logout(r.Context(), handle)
	if err != nil {
		h.logger.Warn("logout error", zap.Error(err))
		logoutURL = "/"
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, logoutURL, http.StatusFound)
}

// LoginFailed handles GET /login-failed with a deliberately uninformative
// page — the reason for the failure is never exposed to the client.
func (h *AuthHandler) LoginFailed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!doctype html>
<html>
<head><title>Sign-in failed</title></head>
<body>
<h1>Sign-in failed</h1>
<p>We could not sign you in. Please <a href="/login">try again</a>.</p>
</body>
</html>
`))
}
