package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitegate-io/sitegate/internal/db"
	"github.com/sitegate-io/sitegate/internal/repositories"
)

// fakeUserRepo is an in-memory UserRepository that mimics the storage-level
// email uniqueness constraint and counts writes.
type fakeUserRepo struct {
	mu        sync.Mutex
	byID      map[string]db.User
	writes    int
	upsertErr error // forced error for the next Upsert, consumed once
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[string]db.User)}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUserRepo) Upsert(_ context.Context, user *db.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		err := f.upsertErr
		f.upsertErr = nil
		return err
	}
	for id, u := range f.byID {
		if u.Email == user.Email && id != user.ID {
			return repositories.ErrConflict
		}
	}
	f.byID[user.ID] = *user
	f.writes++
	return nil
}

func (f *fakeUserRepo) List(_ context.Context, _ repositories.ListOptions) ([]db.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.User
	for _, u := range f.byID {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func testClaims() *Claims {
	return &Claims{
		Subject:       "abc123",
		Name:          "Ada",
		Email:         "a@x.com",
		EmailVerified: true,
		Picture:       "https://idp.example/ada.png",
	}
}

func TestReconcile_RejectsUnverifiedEmail(t *testing.T) {
	repo := newFakeUserRepo()
	r := NewReconciler(repo, "", zap.NewNop())

	claims := testClaims()
	claims.EmailVerified = false

	_, err := r.Reconcile(context.Background(), claims)
	require.ErrorIs(t, err, ErrEmailNotVerified)
	assert.Zero(t, repo.writes, "rejection must not write")
}

func TestReconcile_RejectsEmailHeldByOtherIdentity(t *testing.T) {
	repo := newFakeUserRepo()
	repo.byID["u1"] = db.User{ID: "u1", Email: "a@x.com"}
	r := NewReconciler(repo, "", zap.NewNop())

	claims := testClaims()
	claims.Subject = "u2"

	_, err := r.Reconcile(context.Background(), claims)
	require.ErrorIs(t, err, ErrEmailConflict)
	assert.Equal(t, 0, repo.writes)
}

func TestReconcile_CreatesThenUpdates(t *testing.T) {
	repo := newFakeUserRepo()
	r := NewReconciler(repo, "", zap.NewNop())

	first, err := r.Reconcile(context.Background(), testClaims())
	require.NoError(t, err)

	claims := testClaims()
	claims.Name = "Ada Lovelace"
	second, err := r.Reconcile(context.Background(), claims)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.byID, 1, "second login must update, not duplicate")
	assert.Equal(t, "Ada Lovelace", repo.byID["abc123"].Name)
}

func TestReconcile_BootstrapAdmin(t *testing.T) {
	repo := newFakeUserRepo()
	r := NewReconciler(repo, "abc123", zap.NewNop())

	user, err := r.Reconcile(context.Background(), testClaims())
	require.NoError(t, err)
	assert.Equal(t, "abc123", user.ID)
	assert.True(t, user.Admin)
}

func TestReconcile_AdminIsMonotonic(t *testing.T) {
	repo := newFakeUserRepo()
	repo.byID["abc123"] = db.User{ID: "abc123", Email: "a@x.com", Admin: true}

	// No bootstrap match, no admin trigger in the claims.
	r := NewReconciler(repo, "", zap.NewNop())

	user, err := r.Reconcile(context.Background(), testClaims())
	require.NoError(t, err)
	assert.True(t, user.Admin, "admin flag must never regress")
}

func TestReconcile_AdminSurvivesEmailChange(t *testing.T) {
	repo := newFakeUserRepo()
	repo.byID["abc123"] = db.User{ID: "abc123", Email: "old@x.com", Admin: true}
	r := NewReconciler(repo, "", zap.NewNop())

	claims := testClaims()
	claims.Email = "new@x.com"

	user, err := r.Reconcile(context.Background(), claims)
	require.NoError(t, err)
	assert.True(t, user.Admin)
	assert.Equal(t, "new@x.com", user.Email)
}

func TestReconcile_StorageConflictBecomesEmailConflict(t *testing.T) {
	// Two concurrent first logins can both pass the email lookup; the loser
	// of the write race gets the storage-level conflict.
	repo := newFakeUserRepo()
	repo.upsertErr = repositories.ErrConflict
	r := NewReconciler(repo, "", zap.NewNop())

	_, err := r.Reconcile(context.Background(), testClaims())
	require.ErrorIs(t, err, ErrEmailConflict)
}
