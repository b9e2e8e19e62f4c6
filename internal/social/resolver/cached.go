package resolver

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/socialink/internal/cache"
	"github.com/dropDatabas3/socialink/internal/domain/repository"
	"github.com/dropDatabas3/socialink/internal/observability/logger"
	"github.com/dropDatabas3/socialink/internal/social"
)

const keyPrefix = "social:owner:"

// Cached decorates Resolver with an owner-reference cache. Lookups for the
// same remote identity are deduplicated with singleflight so a burst of
// concurrent callbacks hits the store once. Only positive results are
// cached; a miss always goes to the store.
type Cached struct {
	inner *Resolver
	cache cache.Cache
	ttl   time.Duration
	sf    singleflight.Group
}

// NewCached wraps the resolver with the given cache and entry TTL.
func NewCached(inner *Resolver, c cache.Cache, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{inner: inner, cache: c, ttl: ttl}
}

// Resolve returns the owner account for the remote profile, consulting the
// cache first. The identity record itself always comes from the store so
// token/profile fields are never stale.
func (r *Cached) Resolve(ctx context.Context, provider string, profile social.RemoteProfile) (social.Account, *repository.SocialIdentity, error) {
	key := cacheKey(provider, profile.ID)

	if b, ok := r.cache.Get(key); ok {
		var ref repository.AccountRef
		if err := json.Unmarshal(b, &ref); err == nil && !ref.IsZero() {
			acct, err := r.inner.accounts.Resolve(ctx, ref)
			if err == nil {
				ident, err := r.inner.ids.GetByOwnerProvider(ctx, ref, provider)
				if err == nil {
					return acct, ident, nil
				}
			}
			// Stale entry; fall through to the store.
			r.cache.Delete(key)
		}
	}

	v, err, _ := r.sf.Do(key, func() (any, error) {
		acct, ident, err := r.inner.Resolve(ctx, provider, profile)
		if err != nil {
			return nil, err
		}
		if b, merr := json.Marshal(ident.Owner); merr == nil {
			r.cache.Set(key, b, r.ttl)
		} else {
			logger.From(ctx).Warn("owner ref marshal failed", logger.Err(merr))
		}
		return resolved{acct: acct, ident: ident}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	res := v.(resolved)
	return res.acct, res.ident, nil
}

// Invalidate drops the cached owner for a remote identity. Call it after an
// unlink (or when consuming an Unlinked event from another node).
func (r *Cached) Invalidate(provider, providerUserID string) {
	r.cache.Delete(cacheKey(provider, providerUserID))
}

type resolved struct {
	acct  social.Account
	ident *repository.SocialIdentity
}

func cacheKey(provider, providerUserID string) string {
	return keyPrefix + provider + ":" + providerUserID
}
