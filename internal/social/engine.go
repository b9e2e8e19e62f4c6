package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/socialink/internal/domain/repository"
	"github.com/dropDatabas3/socialink/internal/events"
	"github.com/dropDatabas3/socialink/internal/observability/logger"
	"github.com/dropDatabas3/socialink/internal/observability/metrics"
)

// Errors for the decision engine. Business rejections are Outcome values,
// not errors; these cover infrastructure and adapter failures only.
var (
	ErrExchangeFailed = errors.New("code exchange failed")
	ErrNoExchanger    = errors.New("no exchanger configured")
	ErrNoAccount      = errors.New("nil account")
)

// errEmailTaken aborts FindOrCreate from inside the owner callback; it never
// escapes the engine.
var errEmailTaken = errors.New("email taken")

// Deps contains dependencies for the decision engine.
type Deps struct {
	Identities repository.IdentityRepository
	Accounts   AccountLookup
	Provision  Provisioner
	Allow      Allowlist
	Emails     EmailPolicy     // optional; defaults to DenyNone
	Exchange   Exchanger       // optional; required by LoginWithCode/LinkWithCode
	Reporter   events.Reporter // optional; defaults to events.Noop
	Metrics    *metrics.Social // optional
	Now        func() time.Time // optional; defaults to time.Now
}

// Engine is the authentication decision engine: one entry decision per
// inbound OAuth callback, plus unlink and identity queries.
type Engine struct {
	ids      repository.IdentityRepository
	accounts AccountLookup
	prov     Provisioner
	allow    Allowlist
	emails   EmailPolicy
	exchange Exchanger
	reporter events.Reporter
	metrics  *metrics.Social
	now      func() time.Time
}

// NewEngine creates a decision engine from its dependencies.
func NewEngine(d Deps) *Engine {
	e := &Engine{
		ids:      d.Identities,
		accounts: d.Accounts,
		prov:     d.Provision,
		allow:    d.Allow,
		emails:   d.Emails,
		exchange: d.Exchange,
		reporter: d.Reporter,
		metrics:  d.Metrics,
		now:      d.Now,
	}
	if e.emails == nil {
		e.emails = DenyNone()
	}
	if e.reporter == nil {
		e.reporter = events.Noop{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// HandleLoginCallback decides a login-flow callback: authenticate the owner
// of a known identity, or provision a new account and link it. The identity
// write and the authenticated outcome are atomic: any store failure aborts
// the operation before an event is emitted.
func (e *Engine) HandleLoginCallback(ctx context.Context, provider string, profile RemoteProfile) (Outcome, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.engine"), logger.Flow("login"))

	if !e.allow.IsAllowed(provider) {
		log.Warn("provider not allowed", logger.Provider(provider))
		e.metrics.Callback(provider, "login", string(ReasonUnknownProvider))
		return rejected(ReasonUnknownProvider), nil
	}

	var fresh Account
	ident, created, err := e.ids.FindOrCreate(ctx, profile.identityInput(provider, e.now()), func(ctx context.Context) (repository.AccountRef, error) {
		// Runs inside the store's critical section: only the winner of a
		// concurrent-callback race reaches this point.
		taken, err := e.emails.EmailTaken(ctx, provider, profile)
		if err != nil {
			return repository.AccountRef{}, fmt.Errorf("email policy: %w", err)
		}
		if taken {
			return repository.AccountRef{}, errEmailTaken
		}
		acct, err := e.prov.Create(ctx, provider, profile)
		if err != nil {
			return repository.AccountRef{}, fmt.Errorf("provision: %w", err)
		}
		fresh = acct
		return acct.AccountRef(), nil
	})
	if errors.Is(err, errEmailTaken) {
		log.Info("duplicate email, login rejected", logger.Provider(provider), logger.Email(profile.Email))
		e.metrics.Callback(provider, "login", string(ReasonDuplicateEmail))
		return rejected(ReasonDuplicateEmail), nil
	}
	if err != nil {
		return Outcome{}, err
	}

	if created {
		log.Info("account provisioned and linked",
			logger.Provider(provider),
			logger.ProviderUserID(profile.ID),
			logger.IdentityID(ident.ID),
			logger.Owner(ident.Owner.Kind, ident.Owner.ID),
		)
		e.metrics.Callback(provider, "login", string(OutcomeAuthenticatedNew))
		e.metrics.Write("create")
		e.reporter.Linked(ctx, events.LinkedEvent{
			Account:  ident.Owner,
			Provider: provider,
			Identity: *ident,
			At:       e.now(),
		})
		return Outcome{Kind: OutcomeAuthenticatedNew, Account: fresh, Identity: ident}, nil
	}

	acct, err := e.accounts.Resolve(ctx, ident.Owner)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve owner %s/%s: %w", ident.Owner.Kind, ident.Owner.ID, err)
	}
	log.Debug("existing identity authenticated",
		logger.Provider(provider),
		logger.IdentityID(ident.ID),
		logger.Owner(ident.Owner.Kind, ident.Owner.ID),
	)
	e.metrics.Callback(provider, "login", string(OutcomeAuthenticatedExisting))
	e.metrics.Write("update")
	return Outcome{Kind: OutcomeAuthenticatedExisting, Account: acct, Identity: ident}, nil
}

// HandleLinkCallback decides a link-flow callback for an already
// authenticated account.
func (e *Engine) HandleLinkCallback(ctx context.Context, provider string, profile RemoteProfile, account Account) (Outcome, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.engine"), logger.Flow("link"))

	if account == nil {
		return Outcome{}, ErrNoAccount
	}
	if !e.allow.IsAllowed(provider) {
		log.Warn("provider not allowed", logger.Provider(provider))
		e.metrics.Callback(provider, "link", string(ReasonUnknownProvider))
		return rejected(ReasonUnknownProvider), nil
	}
	owner := account.AccountRef()

	// Self-link check comes first: it wins even when another account also
	// holds the remote identity.
	if reason, ok, err := e.linkRejection(ctx, owner, provider, profile.ID); err != nil {
		return Outcome{}, err
	} else if !ok {
		log.Info("link rejected", logger.Provider(provider), logger.Outcome(string(reason)))
		e.metrics.Callback(provider, "link", string(reason))
		return rejected(reason), nil
	}

	ident, err := e.ids.Link(ctx, owner, profile.identityInput(provider, e.now()))
	if repository.IsConflict(err) {
		// Lost a race after the pre-checks; re-read to classify.
		reason, _, cerr := e.linkRejection(ctx, owner, provider, profile.ID)
		if cerr != nil {
			return Outcome{}, cerr
		}
		if reason == "" {
			reason = ReasonAlreadyLinkedByOther
		}
		log.Info("link rejected on conflict", logger.Provider(provider), logger.Outcome(string(reason)))
		e.metrics.Callback(provider, "link", string(reason))
		return rejected(reason), nil
	}
	if err != nil {
		return Outcome{}, err
	}

	log.Info("identity linked",
		logger.Provider(provider),
		logger.IdentityID(ident.ID),
		logger.Owner(owner.Kind, owner.ID),
	)
	e.metrics.Callback(provider, "link", string(OutcomeLinked))
	e.metrics.Write("create")
	e.reporter.Linked(ctx, events.LinkedEvent{
		Account:  owner,
		Provider: provider,
		Identity: *ident,
		At:       e.now(),
	})
	return Outcome{Kind: OutcomeLinked, Account: account, Identity: ident}, nil
}

// linkRejection returns the rejection reason for a would-be link, or ok=true
// when the link may proceed.
func (e *Engine) linkRejection(ctx context.Context, owner repository.AccountRef, provider, providerUserID string) (RejectReason, bool, error) {
	_, err := e.ids.GetByOwnerProvider(ctx, owner, provider)
	if err == nil {
		return ReasonAlreadyLinkedBySelf, false, nil
	}
	if !repository.IsNotFound(err) {
		return "", false, err
	}

	other, err := e.ids.GetByProvider(ctx, provider, providerUserID)
	if err == nil && other.Owner != owner {
		return ReasonAlreadyLinkedByOther, false, nil
	}
	if err != nil && !repository.IsNotFound(err) {
		return "", false, err
	}
	return "", true, nil
}

// CanLink is the pre-flight check callers run before starting the OAuth
// round-trip for a link. providerUserID may be empty when the remote
// identity is not yet known; the cross-account check is then skipped.
func (e *Engine) CanLink(ctx context.Context, account Account, provider string) (RejectReason, bool, error) {
	if account == nil {
		return "", false, ErrNoAccount
	}
	if !e.allow.IsAllowed(provider) {
		return ReasonUnknownProvider, false, nil
	}
	_, err := e.ids.GetByOwnerProvider(ctx, account.AccountRef(), provider)
	if err == nil {
		return ReasonAlreadyLinkedBySelf, false, nil
	}
	if !repository.IsNotFound(err) {
		return "", false, err
	}
	return "", true, nil
}

// Unlink deletes the account's identity for provider, if present. It is
// idempotent: a second call is a no-op and emits no second event.
func (e *Engine) Unlink(ctx context.Context, account Account, provider string) error {
	if account == nil {
		return ErrNoAccount
	}
	owner := account.AccountRef()

	deleted, err := e.ids.Unlink(ctx, owner, provider)
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}

	logger.From(ctx).Info("identity unlinked",
		logger.Layer("service"),
		logger.Component("social.engine"),
		logger.Provider(provider),
		logger.Owner(owner.Kind, owner.ID),
	)
	e.metrics.Unlink(provider)
	e.metrics.Write("delete")
	e.reporter.Unlinked(ctx, events.UnlinkedEvent{
		Account:  owner,
		Provider: provider,
		At:       e.now(),
	})
	return nil
}

// HasIdentity reports whether the account holds an identity for provider.
func (e *Engine) HasIdentity(ctx context.Context, account Account, provider string) (bool, error) {
	if account == nil {
		return false, ErrNoAccount
	}
	_, err := e.ids.GetByOwnerProvider(ctx, account.AccountRef(), provider)
	if repository.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IdentityFor fetches the account's identity for provider, or ErrNotFound.
func (e *Engine) IdentityFor(ctx context.Context, account Account, provider string) (*repository.SocialIdentity, error) {
	if account == nil {
		return nil, ErrNoAccount
	}
	return e.ids.GetByOwnerProvider(ctx, account.AccountRef(), provider)
}

// Identities lists all identities linked to the account.
func (e *Engine) Identities(ctx context.Context, account Account) ([]repository.SocialIdentity, error) {
	if account == nil {
		return nil, ErrNoAccount
	}
	return e.ids.GetByOwner(ctx, account.AccountRef())
}

// LoginWithCode drives the OAuth adapter and then the login decision.
// Adapter failures are upstream auth failures and propagate as errors.
func (e *Engine) LoginWithCode(ctx context.Context, provider, code string) (Outcome, error) {
	profile, err := e.exchangeCode(ctx, provider, code)
	if err != nil {
		return Outcome{}, err
	}
	return e.HandleLoginCallback(ctx, provider, profile)
}

// LinkWithCode drives the OAuth adapter and then the link decision.
func (e *Engine) LinkWithCode(ctx context.Context, provider, code string, account Account) (Outcome, error) {
	profile, err := e.exchangeCode(ctx, provider, code)
	if err != nil {
		return Outcome{}, err
	}
	return e.HandleLinkCallback(ctx, provider, profile, account)
}

func (e *Engine) exchangeCode(ctx context.Context, provider, code string) (RemoteProfile, error) {
	if e.exchange == nil {
		return RemoteProfile{}, ErrNoExchanger
	}
	profile, err := e.exchange.ExchangeCode(ctx, provider, code)
	if err != nil {
		return RemoteProfile{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return profile, nil
}
