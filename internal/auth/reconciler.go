package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sitegate-io/sitegate/internal/db"
	"github.com/sitegate-io/sitegate/internal/repositories"
)

// Reconciler is the single place where external identity claims become local
// trust decisions. Given verified claims it creates, updates, or rejects the
// corresponding local user record.
type Reconciler struct {
	users repositories.UserRepository

	// bootstrapAdmin is the subject identifier that is promoted to
	// administrator on login. Empty disables bootstrap promotion.
	bootstrapAdmin string

	logger *zap.Logger
}

// NewReconciler creates a Reconciler. bootstrapAdminSubject may be empty.
func NewReconciler(users repositories.UserRepository, bootstrapAdminSubject string, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		users:          users,
		bootstrapAdmin: bootstrapAdminSubject,
		logger:         logger.Named("reconciler"),
	}
}

// Reconcile maps verified provider claims to a local user record.
//
// Rejections — ErrEmailNotVerified when the provider has not verified the
// email, ErrEmailConflict when a different identity already holds it — leave
// no trace in persistent state. On success the record is inserted or updated:
// name, email and picture always follow the claims, while the administrator
// flag is monotonic — once granted it is never cleared here, and it is granted
// when the subject matches the configured bootstrap administrator.
//
// Two concurrent first logins can race on the same email; the storage-level
// uniqueness constraint is the arbiter, and the losing write surfaces as
// ErrEmailConflict discovered post-hoc.
func (r *Reconciler) Reconcile(ctx context.Context, claims *Claims) (*db.User, error) {
	if !claims.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	byEmail, err := r.users.GetByEmail(ctx, claims.Email)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("auth: looking up user by email: %w", err)
	}

	if byEmail != nil && byEmail.ID != claims.Subject {
		r.logger.Warn("email claimed by a different identity",
			zap.String("sub", claims.Subject),
			zap.String("existing_id", byEmail.ID),
		)
		return nil, ErrEmailConflict
	}

	admin := r.bootstrapAdmin != "" && claims.Subject == r.bootstrapAdmin
	if byEmail != nil && byEmail.Admin {
		admin = true
	}
	if !admin {
		// The email lookup misses when the identity's email changed at the
		// provider. The admin flag still must not regress, so consult the
		// record under the subject identifier as well.
		byID, err := r.users.GetByID(ctx, claims.Subject)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("auth: looking up user by id: %w", err)
		}
		if byID != nil && byID.Admin {
			admin = true
		}
	}

	user := &db.User{
		ID:      claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
		Admin:   admin,
	}

	if err := r.users.Upsert(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			r.logger.Warn("lost first-login race on email", zap.String("sub", claims.Subject))
			return nil, ErrEmailConflict
		}
		return nil, fmt.Errorf("auth: persisting user: %w", err)
	}

	return user, nil
}
