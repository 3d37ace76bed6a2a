package auth

import "errors"

// Sentinel errors returned by the auth flow. Callers branch with errors.Is;
// the HTTP layer surfaces all of them as the same generic failure redirect so
// the response does not leak which condition occurred. The distinguishing
// reason is logged server-side.
var (
	// ErrProvider is returned when the identity provider interaction fails:
	// network error, invalid or expired authorization code, or an ID token
	// that does not verify against the provider's keys.
	ErrProvider = errors.New("auth: identity provider error")

	// ErrEmailNotVerified is returned when the provider has not verified the
	// email address in the claims. An unverified email must never be trusted
	// as a unique key for account linking.
	ErrEmailNotVerified = errors.New("auth: email not verified")

	// ErrEmailConflict is returned when a different provider identity already
	// holds the claimed email address. The accounts are never silently merged.
	ErrEmailConflict = errors.New("auth: email already belongs to another identity")

	// ErrStateMismatch is returned when a callback carries a state value with
	// no matching in-flight login, either because none was ever issued or
	// because the pending login went stale.
	ErrStateMismatch = errors.New("auth: unknown or expired state")
)
