// Package repositories defines the persistence interfaces consumed by the
// auth and API layers. Implementations live in internal/repository.
package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/sitegate-io/sitegate/internal/db"
)

// ListOptions contains common pagination options for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository provides access to persistent user records. Email uniqueness
// is enforced at the storage layer; Upsert surfaces a violation as ErrConflict.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*db.User, error)
	GetByEmail(ctx context.Context, email string) (*db.User, error)

	// Upsert inserts the user or, if a record with the same ID already
	// exists, updates its mutable fields (email, name, picture, admin).
	Upsert(ctx context.Context, user *db.User) error

	List(ctx context.Context, opts ListOptions) ([]db.User, int64, error)
}

// SiteRepository provides read access to tenant sites and their editor sets,
// plus the management operations used by the admin API. The redirect
// validator consults it read-only.
type SiteRepository interface {
	GetByDomain(ctx context.Context, domain string) (*db.Site, error)
	IsEditor(ctx context.Context, siteID uuid.UUID, userID string) (bool, error)
	Create(ctx context.Context, site *db.Site) error
	AddEditor(ctx context.Context, siteID uuid.UUID, userID string) error
	List(ctx context.Context, opts ListOptions) ([]db.Site, int64, error)
}
