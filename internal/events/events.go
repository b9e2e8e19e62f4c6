// Package events defines the linked/unlinked domain events emitted after an
// identity write commits. Delivery is fire-and-forget: reporters never fail
// the operation that triggered them.
package events

import (
	"context"
	"time"

	"github.com/dropDatabas3/socialink/internal/domain/repository"
)

// LinkedEvent is emitted when a new social identity is attached to an
// account, both on an explicit link and on register-and-link.
type LinkedEvent struct {
	Account  repository.AccountRef     `json:"account"`
	Provider string                    `json:"provider"`
	Identity repository.SocialIdentity `json:"identity"`
	At       time.Time                 `json:"at"`
}

// UnlinkedEvent is emitted when an account's identity for a provider is
// deleted. A no-op unlink emits nothing.
type UnlinkedEvent struct {
	Account  repository.AccountRef `json:"account"`
	Provider string                `json:"provider"`
	At       time.Time             `json:"at"`
}

// Reporter receives domain events. Implementations must be safe for
// concurrent use and must not block the caller for long.
type Reporter interface {
	Linked(ctx context.Context, ev LinkedEvent)
	Unlinked(ctx context.Context, ev UnlinkedEvent)
}

// Noop discards all events.
type Noop struct{}

func (Noop) Linked(context.Context, LinkedEvent)     {}
func (Noop) Unlinked(context.Context, UnlinkedEvent) {}

// Fanout delivers each event to every reporter in order.
type Fanout []Reporter

func (f Fanout) Linked(ctx context.Context, ev LinkedEvent) {
	for _, r := range f {
		r.Linked(ctx, ev)
	}
}

func (f Fanout) Unlinked(ctx context.Context, ev UnlinkedEvent) {
	for _, r := range f {
		r.Unlinked(ctx, ev)
	}
}
