package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/socialink/internal/observability/logger"
)

// LogReporter writes events to the structured log. Useful as an audit trail
// when no external sink is configured.
type LogReporter struct {
	log *zap.Logger
}

// NewLogReporter creates a reporter over the given logger. A nil logger
// falls back to the package singleton.
func NewLogReporter(l *zap.Logger) *LogReporter {
	if l == nil {
		l = logger.Named("events")
	}
	return &LogReporter{log: l}
}

func (r *LogReporter) Linked(ctx context.Context, ev LinkedEvent) {
	r.log.Info("social identity linked",
		logger.Owner(ev.Account.Kind, ev.Account.ID),
		logger.Provider(ev.Provider),
		logger.IdentityID(ev.Identity.ID),
		logger.ProviderUserID(ev.Identity.ProviderUserID),
	)
}

func (r *LogReporter) Unlinked(ctx context.Context, ev UnlinkedEvent) {
	r.log.Info("social identity unlinked",
		logger.Owner(ev.Account.Kind, ev.Account.ID),
		logger.Provider(ev.Provider),
	)
}
