// Package resolver finds the local account behind a remote OAuth profile.
// It is read-only: resolving never mutates the identity store.
package resolver

import (
	"context"

	"github.com/dropDatabas3/socialink/internal/domain/repository"
	"github.com/dropDatabas3/socialink/internal/social"
)

// Resolver looks up the account linked to (provider, remote user id).
type Resolver struct {
	ids      repository.IdentityRepository
	accounts social.AccountLookup
}

// New creates a resolver over the identity store and account lookup.
func New(ids repository.IdentityRepository, accounts social.AccountLookup) *Resolver {
	return &Resolver{ids: ids, accounts: accounts}
}

// Resolve returns the owner account and its identity for the given remote
// profile, or repository.ErrNotFound when no identity matches.
func (r *Resolver) Resolve(ctx context.Context, provider string, profile social.RemoteProfile) (social.Account, *repository.SocialIdentity, error) {
	ident, err := r.ids.GetByProvider(ctx, provider, profile.ID)
	if err != nil {
		return nil, nil, err
	}
	acct, err := r.accounts.Resolve(ctx, ident.Owner)
	if err != nil {
		return nil, nil, err
	}
	return acct, ident, nil
}
