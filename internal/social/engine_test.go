package social

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/socialink/internal/domain/repository"
	"github.com/dropDatabas3/socialink/internal/events"
	storememory "github.com/dropDatabas3/socialink/internal/store/memory"
)

// ---- fakes ----

type testAccount struct{ ref repository.AccountRef }

func (a testAccount) AccountRef() repository.AccountRef { return a.ref }

func userRef(id string) repository.AccountRef {
	return repository.AccountRef{Kind: "user", ID: id}
}

// testDirectory acts as both AccountLookup and Provisioner: provisioned
// accounts become resolvable immediately.
type testDirectory struct {
	mu       sync.Mutex
	accounts map[repository.AccountRef]Account
	created  int
}

func newTestDirectory() *testDirectory {
	return &testDirectory{accounts: make(map[repository.AccountRef]Account)}
}

func (d *testDirectory) add(id string) Account {
	d.mu.Lock()
	defer d.mu.Unlock()
	acct := testAccount{ref: userRef(id)}
	d.accounts[acct.ref] = acct
	return acct
}

func (d *testDirectory) Resolve(ctx context.Context, ref repository.AccountRef) (Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	acct, ok := d.accounts[ref]
	if !ok {
		return nil, fmt.Errorf("account %s/%s: %w", ref.Kind, ref.ID, repository.ErrNotFound)
	}
	return acct, nil
}

func (d *testDirectory) Create(ctx context.Context, provider string, profile RemoteProfile) (Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created++
	acct := testAccount{ref: userRef(fmt.Sprintf("acct-%d", d.created))}
	d.accounts[acct.ref] = acct
	return acct, nil
}

func (d *testDirectory) createdCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created
}

type recordingReporter struct {
	mu       sync.Mutex
	linked   []events.LinkedEvent
	unlinked []events.UnlinkedEvent
}

func (r *recordingReporter) Linked(ctx context.Context, ev events.LinkedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.linked = append(r.linked, ev)
}

func (r *recordingReporter) Unlinked(ctx context.Context, ev events.UnlinkedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlinked = append(r.unlinked, ev)
}

func (r *recordingReporter) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.linked), len(r.unlinked)
}

// untouchableRepo fails the test on any store access.
type untouchableRepo struct{ t *testing.T }

func (u untouchableRepo) fail() {
	u.t.Helper()
	u.t.Fatal("identity store must not be touched")
}

func (u untouchableRepo) GetByProvider(context.Context, string, string) (*repository.SocialIdentity, error) {
	u.fail()
	return nil, nil
}
func (u untouchableRepo) GetByOwner(context.Context, repository.AccountRef) ([]repository.SocialIdentity, error) {
	u.fail()
	return nil, nil
}
func (u untouchableRepo) GetByOwnerProvider(context.Context, repository.AccountRef, string) (*repository.SocialIdentity, error) {
	u.fail()
	return nil, nil
}
func (u untouchableRepo) FindOrCreate(context.Context, repository.IdentityInput, repository.OwnerFunc) (*repository.SocialIdentity, bool, error) {
	u.fail()
	return nil, false, nil
}
func (u untouchableRepo) Link(context.Context, repository.AccountRef, repository.IdentityInput) (*repository.SocialIdentity, error) {
	u.fail()
	return nil, nil
}
func (u untouchableRepo) Unlink(context.Context, repository.AccountRef, string) (bool, error) {
	u.fail()
	return false, nil
}

type fixture struct {
	engine   *Engine
	store    *storememory.Store
	dir      *testDirectory
	reporter *recordingReporter
}

func newFixture(opts ...func(*Deps)) *fixture {
	f := &fixture{
		store:    storememory.New(),
		dir:      newTestDirectory(),
		reporter: &recordingReporter{},
	}
	deps := Deps{
		Identities: f.store,
		Accounts:   f.dir,
		Provision:  f.dir,
		Allow: AllowlistFunc(func(p string) bool {
			return p == "google" || p == "line"
		}),
		Reporter: f.reporter,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.engine = NewEngine(deps)
	return f
}

func googleProfile(id string) RemoteProfile {
	return RemoteProfile{
		ID:        id,
		Name:      "Ada Lovelace",
		Nickname:  "ada",
		Email:     "ada@example.com",
		AvatarURL: "https://avatars.example.com/ada.png",
		Token:     "tok-" + id,
		Raw:       map[string]any{"sub": id},
	}
}

// ---- login flow ----

func TestLoginCallback_RegistersNewAccount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	out, err := f.engine.HandleLoginCallback(ctx, "google", googleProfile("abc"))
	require.NoError(t, err)
	require.Equal(t, OutcomeAuthenticatedNew, out.Kind)
	require.NotNil(t, out.Account)
	require.NotNil(t, out.Identity)
	require.Equal(t, out.Account.AccountRef(), out.Identity.Owner)
	require.Equal(t, 1, f.dir.createdCount())

	linked, unlinked := f.reporter.counts()
	require.Equal(t, 1, linked)
	require.Equal(t, 0, unlinked)

	ident, err := f.store.GetByProvider(ctx, "google", "abc")
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", ident.Email)
	require.Equal(t, "tok-abc", ident.AccessToken)
}

func TestLoginCallback_ExistingIdentityUpdates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.engine.HandleLoginCallback(ctx, "google", googleProfile("abc"))
	require.NoError(t, err)

	profile := googleProfile("abc")
	profile.Name = "Ada K. Lovelace"
	profile.Token = "tok-rotated"

	second, err := f.engine.HandleLoginCallback(ctx, "google", profile)
	require.NoError(t, err)
	require.Equal(t, OutcomeAuthenticatedExisting, second.Kind)
	require.Equal(t, first.Account.AccountRef(), second.Account.AccountRef())
	require.Equal(t, "Ada K. Lovelace", second.Identity.Name)
	require.Equal(t, "tok-rotated", second.Identity.AccessToken)

	// No second account, no second linked event.
	require.Equal(t, 1, f.dir.createdCount())
	linked, _ := f.reporter.counts()
	require.Equal(t, 1, linked)
}

func TestLoginCallback_IdempotentUpdate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	profile := googleProfile("abc")

	_, err := f.engine.HandleLoginCallback(ctx, "google", profile)
	require.NoError(t, err)
	a, err := f.store.GetByProvider(ctx, "google", "abc")
	require.NoError(t, err)

	_, err = f.engine.HandleLoginCallback(ctx, "google", profile)
	require.NoError(t, err)
	b, err := f.store.GetByProvider(ctx, "google", "abc")
	require.NoError(t, err)

	require.Equal(t, a.Name, b.Name)
	require.Equal(t, a.Email, b.Email)
	require.Equal(t, a.AccessToken, b.AccessToken)
	require.Equal(t, a.RefreshToken, b.RefreshToken)
	require.Equal(t, a.Raw, b.Raw)
}

func TestLoginCallback_DuplicateEmail(t *testing.T) {
	f := newFixture(func(d *Deps) {
		d.Emails = EmailPolicyFunc(func(ctx context.Context, provider string, p RemoteProfile) (bool, error) {
			return p.Email == "ada@example.com", nil
		})
	})
	ctx := context.Background()

	out, err := f.engine.HandleLoginCallback(ctx, "google", googleProfile("abc"))
	require.NoError(t, err)
	require.True(t, out.Rejected())
	require.Equal(t, ReasonDuplicateEmail, out.Reason)
	require.Equal(t, 0, f.dir.createdCount())

	_, err = f.store.GetByProvider(ctx, "google", "abc")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLoginCallback_UnknownProviderTouchesNothing(t *testing.T) {
	engine := NewEngine(Deps{
		Identities: untouchableRepo{t: t},
		Accounts:   newTestDirectory(),
		Provision:  newTestDirectory(),
		Allow:      AllowlistFunc(func(string) bool { return false }),
	})

	out, err := engine.HandleLoginCallback(context.Background(), "unknown-provider", googleProfile("abc"))
	require.NoError(t, err)
	require.True(t, out.Rejected())
	require.Equal(t, ReasonUnknownProvider, out.Reason)
}

func TestLoginCallback_ConcurrentCreationRace(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	const n = 16

	outcomes := make([]Outcome, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = f.engine.HandleLoginCallback(ctx, "google", googleProfile("raced"))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var created, updated int
	for _, out := range outcomes {
		switch out.Kind {
		case OutcomeAuthenticatedNew:
			created++
		case OutcomeAuthenticatedExisting:
			updated++
		default:
			t.Fatalf("unexpected outcome %q", out.Kind)
		}
	}
	require.Equal(t, 1, created)
	require.Equal(t, n-1, updated)
	require.Equal(t, 1, f.dir.createdCount())

	idents, err := f.store.GetByOwner(ctx, outcomes[0].Identity.Owner)
	require.NoError(t, err)
	require.Len(t, idents, 1)
}

// ---- link flow ----

func TestLinkCallback_Linked(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acct := f.dir.add("u1")

	out, err := f.engine.HandleLinkCallback(ctx, "line", googleProfile("42"), acct)
	require.NoError(t, err)
	require.Equal(t, OutcomeLinked, out.Kind)
	require.Equal(t, acct.AccountRef(), out.Identity.Owner)

	linked, _ := f.reporter.counts()
	require.Equal(t, 1, linked)

	has, err := f.engine.HasIdentity(ctx, acct, "line")
	require.NoError(t, err)
	require.True(t, has)
}

func TestLinkCallback_AlreadyLinkedBySelfWins(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	self := f.dir.add("u1")
	other := f.dir.add("u2")

	// self already linked to google id "1"; other holds google id "42".
	_, err := f.engine.HandleLinkCallback(ctx, "google", googleProfile("1"), self)
	require.NoError(t, err)
	_, err = f.engine.HandleLinkCallback(ctx, "google", googleProfile("42"), other)
	require.NoError(t, err)

	// A link attempt by self on the id held by other must still report self.
	out, err := f.engine.HandleLinkCallback(ctx, "google", googleProfile("42"), self)
	require.NoError(t, err)
	require.True(t, out.Rejected())
	require.Equal(t, ReasonAlreadyLinkedBySelf, out.Reason)
}

func TestLinkCallback_AlreadyLinkedByOther(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.dir.add("a")
	b := f.dir.add("b")

	_, err := f.engine.HandleLinkCallback(ctx, "line", googleProfile("42"), a)
	require.NoError(t, err)

	out, err := f.engine.HandleLinkCallback(ctx, "line", googleProfile("42"), b)
	require.NoError(t, err)
	require.True(t, out.Rejected())
	require.Equal(t, ReasonAlreadyLinkedByOther, out.Reason)

	idents, err := f.engine.Identities(ctx, b)
	require.NoError(t, err)
	require.Empty(t, idents)
}

func TestLinkCallback_UnknownProvider(t *testing.T) {
	f := newFixture()
	acct := f.dir.add("u1")

	out, err := f.engine.HandleLinkCallback(context.Background(), "myspace", googleProfile("42"), acct)
	require.NoError(t, err)
	require.Equal(t, ReasonUnknownProvider, out.Reason)
}

func TestCanLink(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acct := f.dir.add("u1")

	reason, ok, err := f.engine.CanLink(ctx, acct, "google")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, reason)

	_, err = f.engine.HandleLinkCallback(ctx, "google", googleProfile("1"), acct)
	require.NoError(t, err)

	reason, ok, err = f.engine.CanLink(ctx, acct, "google")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, ReasonAlreadyLinkedBySelf, reason)

	reason, ok, err = f.engine.CanLink(ctx, acct, "myspace")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, ReasonUnknownProvider, reason)
}

// ---- unlink ----

func TestUnlink_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acct := f.dir.add("u1")

	_, err := f.engine.HandleLinkCallback(ctx, "google", googleProfile("1"), acct)
	require.NoError(t, err)

	require.NoError(t, f.engine.Unlink(ctx, acct, "google"))
	require.NoError(t, f.engine.Unlink(ctx, acct, "google"))

	_, unlinked := f.reporter.counts()
	require.Equal(t, 1, unlinked, "second unlink must not emit a second event")

	has, err := f.engine.HasIdentity(ctx, acct, "google")
	require.NoError(t, err)
	require.False(t, has)
}

// ---- code exchange ----

type fakeExchanger struct {
	profile RemoteProfile
	err     error
}

func (f fakeExchanger) ExchangeCode(ctx context.Context, provider, code string) (RemoteProfile, error) {
	return f.profile, f.err
}

func TestLoginWithCode(t *testing.T) {
	f := newFixture(func(d *Deps) {
		d.Exchange = fakeExchanger{profile: googleProfile("abc")}
	})

	out, err := f.engine.LoginWithCode(context.Background(), "google", "code-1")
	require.NoError(t, err)
	require.Equal(t, OutcomeAuthenticatedNew, out.Kind)
}

func TestLoginWithCode_UpstreamFailure(t *testing.T) {
	f := newFixture(func(d *Deps) {
		d.Exchange = fakeExchanger{err: errors.New("provider down")}
	})

	_, err := f.engine.LoginWithCode(context.Background(), "google", "code-1")
	require.ErrorIs(t, err, ErrExchangeFailed)
}

func TestLoginWithCode_NoExchanger(t *testing.T) {
	f := newFixture()

	_, err := f.engine.LoginWithCode(context.Background(), "google", "code-1")
	require.ErrorIs(t, err, ErrNoExchanger)
}

// ---- queries ----

func TestIdentityQueries(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acct := f.dir.add("u1")

	_, err := f.engine.IdentityFor(ctx, acct, "google")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.engine.HandleLinkCallback(ctx, "google", googleProfile("1"), acct)
	require.NoError(t, err)
	_, err = f.engine.HandleLinkCallback(ctx, "line", googleProfile("2"), acct)
	require.NoError(t, err)

	ident, err := f.engine.IdentityFor(ctx, acct, "google")
	require.NoError(t, err)
	require.Equal(t, "1", ident.ProviderUserID)

	idents, err := f.engine.Identities(ctx, acct)
	require.NoError(t, err)
	require.Len(t, idents, 2)
}

func TestExpiresAtFromProfile(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(func(d *Deps) {
		d.Now = func() time.Time { return now }
	})
	ctx := context.Background()

	seconds := int64(3600)
	profile := googleProfile("abc")
	profile.ExpiresIn = &seconds

	out, err := f.engine.HandleLoginCallback(ctx, "google", profile)
	require.NoError(t, err)
	require.NotNil(t, out.Identity.ExpiresAt)
	require.Equal(t, now.Add(time.Hour), *out.Identity.ExpiresAt)
}
