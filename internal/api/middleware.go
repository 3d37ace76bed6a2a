package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sitegate-io/sitegate/internal/db"
	"github.com/sitegate-io/sitegate/internal/session"
)

// contextKey is an unexported type for context keys defined in this package.
// Using a custom type prevents collisions with keys defined in other packages.
type contextKey int

const (
	// contextKeyUser is the context key under which the authenticated
	// *db.User is stored after successful session resolution.
	contextKeyUser contextKey = iota
)

// Authenticate resolves the session cookie, extends the sliding expiration
// window, and stores the freshly fetched user in the request context. A
// missing, expired or dangling session is treated as anonymous and answered
// with a 401 — the client re-authenticates via /login rather than receiving a
// hard error.
func Authenticate(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookie)
			if err != nil {
				ErrUnauthorized(w)
				return
			}

			user, err := sessions.Resolve(r.Context(), cookie.Value)
			if err != nil {
				ErrUnauthorized(w)
				return
			}

			// Sliding window: each authenticated request pushes expiry out.
			_ = sessions.Touch(r.Context(), cookie.Value)

			ctx := context.WithValue(r.Context(), contextKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin allows the request to proceed only when the authenticated user
// carries the administrator flag. Must run after Authenticate.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := userFromCtx(r.Context())
			if user == nil {
				// Should never happen if Authenticate runs first.
				ErrUnauthorized(w)
				return
			}
			if !user.Admin {
				ErrForbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger returns a Chi-compatible middleware that logs each request
// using the provided zap logger. Chi's middleware.RequestID is expected to
// run before this middleware so the request ID is available in the context.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// userFromCtx retrieves the user stored by the Authenticate middleware.
// Returns nil if the request is unauthenticated.
func userFromCtx(ctx context.Context) *db.User {
	user, _ := ctx.Value(contextKeyUser).(*db.User)
	return user
}
