package social

import (
	"context"

	"github.com/dropDatabas3/socialink/internal/domain/repository"
)

// Account is the capability any local account type implements to hold
// social identities. The engine never inspects the account beyond its
// polymorphic reference.
type Account interface {
	AccountRef() repository.AccountRef
}

// AccountLookup resolves an owner reference back to a live account.
type AccountLookup interface {
	Resolve(ctx context.Context, ref repository.AccountRef) (Account, error)
}

// Provisioner creates a new local account from a remote profile when a login
// callback matches no known identity.
type Provisioner interface {
	Create(ctx context.Context, provider string, profile RemoteProfile) (Account, error)
}

// EmailPolicy decides whether the remote profile's email already belongs to
// a different, unlinked local account. When it returns true the login is
// rejected with ReasonDuplicateEmail instead of provisioning.
type EmailPolicy interface {
	EmailTaken(ctx context.Context, provider string, profile RemoteProfile) (bool, error)
}

// EmailPolicyFunc adapts a function to EmailPolicy.
type EmailPolicyFunc func(ctx context.Context, provider string, profile RemoteProfile) (bool, error)

func (f EmailPolicyFunc) EmailTaken(ctx context.Context, provider string, profile RemoteProfile) (bool, error) {
	return f(ctx, provider, profile)
}

// DenyNone is the default email policy: no email is ever considered taken.
// Hosts that enforce email uniqueness across signup methods supply their own.
func DenyNone() EmailPolicy {
	return EmailPolicyFunc(func(context.Context, string, RemoteProfile) (bool, error) {
		return false, nil
	})
}

// Allowlist answers whether a provider key is configured and enabled.
type Allowlist interface {
	IsAllowed(provider string) bool
}

// AllowlistFunc adapts a function to Allowlist.
type AllowlistFunc func(provider string) bool

func (f AllowlistFunc) IsAllowed(provider string) bool { return f(provider) }

// Exchanger is the OAuth client adapter capability: exchange an
// authorization code for a remote profile. Concrete providers live outside
// this module.
type Exchanger interface {
	ExchangeCode(ctx context.Context, provider, code string) (RemoteProfile, error)
}
