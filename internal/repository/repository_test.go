package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sitegate-io/sitegate/internal/db"
	"github.com/sitegate-io/sitegate/internal/repositories"
)

// openTestDB opens a fresh in-memory SQLite database with migrations applied.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := db.New(db.Config{
		Driver: "sqlite",
		DSN:    ":memory:",
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	return database
}

func TestUserRepository_UpsertInsertsAndUpdates(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	ctx := context.Background()

	user := &db.User{ID: "abc123", Email: "a@x.com", Name: "Ada"}
	require.NoError(t, repo.Upsert(ctx, user))

	user.Name = "Ada Lovelace"
	user.Admin = true
	require.NoError(t, repo.Upsert(ctx, user))

	got, err := repo.GetByID(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.Name)
	assert.True(t, got.Admin)

	_, total, err := repo.List(ctx, repositories.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestUserRepository_UpsertEmailConflict(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &db.User{ID: "u1", Email: "a@x.com"}))

	err := repo.Upsert(ctx, &db.User{ID: "u2", Email: "a@x.com"})
	assert.ErrorIs(t, err, repositories.ErrConflict)
}

func TestUserRepository_GetByEmail(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &db.User{ID: "u1", Email: "a@x.com"}))

	got, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	_, err = repo.GetByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestSiteRepository_DomainUniqueness(t *testing.T) {
	repo := NewSiteRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &db.Site{Domain: "blog.example"}))

	err := repo.Create(ctx, &db.Site{Domain: "blog.example"})
	assert.ErrorIs(t, err, repositories.ErrConflict)
}

func TestSiteRepository_EditorsAndMembership(t *testing.T) {
	database := openTestDB(t)
	sites := NewSiteRepository(database)
	users := NewUserRepository(database)
	ctx := context.Background()

	require.NoError(t, users.Upsert(ctx, &db.User{ID: "u1", Email: "a@x.com"}))

	site := &db.Site{Domain: "blog.example"}
	require.NoError(t, sites.Create(ctx, site))
	require.NoError(t, sites.AddEditor(ctx, site.ID, "u1"))
	// Granting twice is a no-op, not an error.
	require.NoError(t, sites.AddEditor(ctx, site.ID, "u1"))

	got, err := sites.GetByDomain(ctx, "blog.example")
	require.NoError(t, err)
	require.Len(t, got.Editors, 1)
	assert.Equal(t, "u1", got.Editors[0].UserID)

	ok, err := sites.IsEditor(ctx, site.ID, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = sites.IsEditor(ctx, site.ID, "u2")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = sites.GetByDomain(ctx, "missing.example")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}
