package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitegate-io/sitegate/internal/db"
	"github.com/sitegate-io/sitegate/internal/repositories"
)

// gormSiteRepository is the GORM implementation of SiteRepository.
type gormSiteRepository struct {
	db *gorm.DB
}

// NewSiteRepository returns a SiteRepository backed by the provided *gorm.DB.
func NewSiteRepository(db *gorm.DB) repositories.SiteRepository {
	return &gormSiteRepository{db: db}
}

// GetByDomain retrieves a site by its domain name, with the editor set loaded.
// Returns ErrNotFound if no record exists. The editor rows are fetched with a
// second explicit query — GORM cannot auto-resolve UUID-typed foreign keys.
func (r *gormSiteRepository) GetByDomain(ctx context.Context, domain string) (*db.Site, error) {
	var site db.Site
	err := r.db.WithContext(ctx).First(&site, "domain = ?", domain).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("sites: get by domain: %w", err)
	}

	if err := r.db.WithContext(ctx).
		Find(&site.Editors, "site_id = ?", site.ID).Error; err != nil {
		return nil, fmt.Errorf("sites: load editors: %w", err)
	}

	return &site, nil
}

// IsEditor reports whether the given user is in the site's editor set.
func (r *gormSiteRepository) IsEditor(ctx context.Context, siteID uuid.UUID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.SiteEditor{}).
		Where("site_id = ? AND user_id = ?", siteID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("sites: is editor: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new site record. Returns ErrConflict when the domain is
// already registered.
func (r *gormSiteRepository) Create(ctx context.Context, site *db.Site) error {
	if err := r.db.WithContext(ctx).Create(site).Error; err != nil {
		if isDuplicate(err) {
			return repositories.ErrConflict
		}
		return fmt.Errorf("sites: create: %w", err)
	}
	return nil
}

// AddEditor grants a user edit access to a site. Adding an existing editor is
// a no-op — the desired state is already met.
func (r *gormSiteRepository) AddEditor(ctx context.Context, siteID uuid.UUID, userID string) error {
	err := r.db.WithContext(ctx).Create(&db.SiteEditor{
		SiteID:    siteID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}).Error
	if err != nil {
		if isDuplicate(err) {
			return nil
		}
		return fmt.Errorf("sites: add editor: %w", err)
	}
	return nil
}

// List returns a paginated list of sites and the total count.
// Editor sets are not loaded here — use GetByDomain for a single site.
func (r *gormSiteRepository) List(ctx context.Context, opts repositories.ListOptions) ([]db.Site, int64, error) {
	var sites []db.Site
	var total int64

	if err := r.db.WithContext(ctx).Model(&db.Site{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("sites: list count: %w", err)
	}

	if err := r.db.WithContext(ctx).
		Limit(opts.Limit).
		Offset(opts.Offset).
		Order("created_at ASC").
		Find(&sites).Error; err != nil {
		return nil, 0, fmt.Errorf("sites: list: %w", err)
	}

	return sites, total, nil
}
