package notification

import (
	"context"
	"log/slog"

	"github.com/jonny/hookaudit/internal/domain/model"
)

// NoopNotifier logs records instead of forwarding them.
// Used in local development when no sink is configured.
type NoopNotifier struct {
	logger *slog.Logger
}

// NewNoopNotifier creates a new NoopNotifier.
func NewNoopNotifier(logger *slog.Logger) *NoopNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) Name() string { return "noop" }

func (n *NoopNotifier) NotifyRecord(ctx context.Context, rec model.Record) error {
	actor, _ := rec.Actor()
	n.logger.DebugContext(ctx, "noop: audit record",
		"id", rec.ID(),
		"kind", rec.Kind(),
		"actor", actor,
	)
	return nil
}
