package social

import "github.com/dropDatabas3/socialink/internal/domain/repository"

// OutcomeKind classifies the terminal state of a callback.
type OutcomeKind string

const (
	// OutcomeAuthenticatedExisting is a login that matched a known identity.
	OutcomeAuthenticatedExisting OutcomeKind = "authenticated_existing"

	// OutcomeAuthenticatedNew is a login that provisioned and linked a new
	// account.
	OutcomeAuthenticatedNew OutcomeKind = "authenticated_new"

	// OutcomeLinked is a successful explicit link to the authenticated
	// account.
	OutcomeLinked OutcomeKind = "linked"

	// OutcomeRejected is a business-rule rejection; see Outcome.Reason.
	OutcomeRejected OutcomeKind = "rejected"
)

// RejectReason says why a callback was rejected. Rejections are values the
// caller branches on, never errors.
type RejectReason string

const (
	ReasonUnknownProvider      RejectReason = "unknown_provider"
	ReasonAlreadyLinkedBySelf  RejectReason = "already_linked_by_self"
	ReasonAlreadyLinkedByOther RejectReason = "already_linked_by_other"
	ReasonDuplicateEmail       RejectReason = "duplicate_email"
)

// Outcome is the result of one callback decision. Account and Identity are
// set on every non-rejected outcome; Reason only when Kind is
// OutcomeRejected.
type Outcome struct {
	Kind     OutcomeKind
	Reason   RejectReason
	Account  Account
	Identity *repository.SocialIdentity
}

// Rejected reports whether the callback was rejected.
func (o Outcome) Rejected() bool { return o.Kind == OutcomeRejected }

// Authenticated reports whether the callback ended with a logged-in account
// (existing or freshly provisioned).
func (o Outcome) Authenticated() bool {
	return o.Kind == OutcomeAuthenticatedExisting || o.Kind == OutcomeAuthenticatedNew
}

func rejected(reason RejectReason) Outcome {
	return Outcome{Kind: OutcomeRejected, Reason: reason}
}
