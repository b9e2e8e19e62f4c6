package resolver

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cachememory "github.com/dropDatabas3/socialink/internal/cache/memory"
	"github.com/dropDatabas3/socialink/internal/domain/repository"
	"github.com/dropDatabas3/socialink/internal/social"
	storememory "github.com/dropDatabas3/socialink/internal/store/memory"
)

type testAccount struct{ ref repository.AccountRef }

func (a testAccount) AccountRef() repository.AccountRef { return a.ref }

type staticLookup struct{ refs map[repository.AccountRef]bool }

func (l staticLookup) Resolve(ctx context.Context, ref repository.AccountRef) (social.Account, error) {
	if !l.refs[ref] {
		return nil, fmt.Errorf("account %s/%s: %w", ref.Kind, ref.ID, repository.ErrNotFound)
	}
	return testAccount{ref: ref}, nil
}

// countingRepo counts GetByProvider calls to observe cache behavior.
type countingRepo struct {
	repository.IdentityRepository
	byProvider atomic.Int32
}

func (c *countingRepo) GetByProvider(ctx context.Context, provider, puid string) (*repository.SocialIdentity, error) {
	c.byProvider.Add(1)
	return c.IdentityRepository.GetByProvider(ctx, provider, puid)
}

func seed(t *testing.T) (*countingRepo, staticLookup, repository.AccountRef) {
	t.Helper()
	store := storememory.New()
	owner := repository.AccountRef{Kind: "user", ID: "u1"}
	_, err := store.Link(context.Background(), owner, repository.IdentityInput{
		Provider:       "google",
		ProviderUserID: "42",
		Email:          "u1@example.com",
		AccessToken:    "tok",
	})
	require.NoError(t, err)

	repo := &countingRepo{IdentityRepository: store}
	lookup := staticLookup{refs: map[repository.AccountRef]bool{owner: true}}
	return repo, lookup, owner
}

func TestResolver_Resolve(t *testing.T) {
	repo, lookup, owner := seed(t)
	r := New(repo, lookup)

	acct, ident, err := r.Resolve(context.Background(), "google", social.RemoteProfile{ID: "42"})
	require.NoError(t, err)
	require.Equal(t, owner, acct.AccountRef())
	require.Equal(t, owner, ident.Owner)

	_, _, err = r.Resolve(context.Background(), "google", social.RemoteProfile{ID: "unknown"})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCached_SecondResolveSkipsProviderLookup(t *testing.T) {
	repo, lookup, owner := seed(t)
	r := NewCached(New(repo, lookup), cachememory.New(time.Minute), time.Minute)
	ctx := context.Background()

	acct, _, err := r.Resolve(ctx, "google", social.RemoteProfile{ID: "42"})
	require.NoError(t, err)
	require.Equal(t, owner, acct.AccountRef())
	require.Equal(t, int32(1), repo.byProvider.Load())

	acct, ident, err := r.Resolve(ctx, "google", social.RemoteProfile{ID: "42"})
	require.NoError(t, err)
	require.Equal(t, owner, acct.AccountRef())
	require.NotNil(t, ident)
	require.Equal(t, int32(1), repo.byProvider.Load(), "cache hit must not consult the provider index")
}

func TestCached_Invalidate(t *testing.T) {
	repo, lookup, _ := seed(t)
	r := NewCached(New(repo, lookup), cachememory.New(time.Minute), time.Minute)
	ctx := context.Background()

	_, _, err := r.Resolve(ctx, "google", social.RemoteProfile{ID: "42"})
	require.NoError(t, err)

	r.Invalidate("google", "42")

	_, _, err = r.Resolve(ctx, "google", social.RemoteProfile{ID: "42"})
	require.NoError(t, err)
	require.Equal(t, int32(2), repo.byProvider.Load())
}

func TestCached_StaleEntryFallsThrough(t *testing.T) {
	repo, lookup, owner := seed(t)
	r := NewCached(New(repo, lookup), cachememory.New(time.Minute), time.Minute)
	ctx := context.Background()

	_, _, err := r.Resolve(ctx, "google", social.RemoteProfile{ID: "42"})
	require.NoError(t, err)

	// Identity removed underneath the cache.
	deleted, err := repo.IdentityRepository.Unlink(ctx, owner, "google")
	require.NoError(t, err)
	require.True(t, deleted)

	_, _, err = r.Resolve(ctx, "google", social.RemoteProfile{ID: "42"})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCached_MissIsNotCached(t *testing.T) {
	repo, lookup, _ := seed(t)
	r := NewCached(New(repo, lookup), cachememory.New(time.Minute), time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := r.Resolve(ctx, "google", social.RemoteProfile{ID: "ghost"})
		require.ErrorIs(t, err, repository.ErrNotFound)
	}
	require.Equal(t, int32(2), repo.byProvider.Load())
}
