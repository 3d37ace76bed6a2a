package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a local account backed by an external OIDC identity.
//
// ID is the provider-issued subject claim and is immutable for the lifetime
// of the account — it is assigned on first login and never reassigned. Name,
// Email and Picture are refreshed from the identity provider on every
// successful login. Email is unique across all users; the database constraint
// is the authoritative arbiter when two first logins race on the same email.
type User struct {
	ID        string    `gorm:"primaryKey"` // OIDC subject claim
	Email     string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null;default:''"`
	Picture   string    `gorm:"not null;default:''"`
	Admin     bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Site is a tenant site hosted by the platform. Domain is the site's
// canonical host name and is the key the redirect validator matches
// cross-origin targets against.
type Site struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	Domain    string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null;default:''"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Editors is populated by the repository via a manual query. GORM cannot
	// resolve foreign keys against a uuid.UUID primary key, so the association
	// is excluded from its schema handling.
	Editors []SiteEditor `gorm:"-"`
}

// BeforeCreate generates a time-ordered UUID v7 if the ID is not already set.
func (s *Site) BeforeCreate(tx *gorm.DB) error {
	if s.ID == (uuid.UUID{}) {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		s.ID = id
	}
	return nil
}

// SiteEditor grants a user edit access to a site. Membership in this set is
// what authorizes a cross-origin post-login redirect to the site's domain.
type SiteEditor struct {
	SiteID    uuid.UUID `gorm:"type:text;primaryKey"`
	UserID    string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}
