package outbound

import (
	"context"

	"github.com/jonny/hookaudit/internal/domain/model"
)

// Notifier forwards persisted records to an external sink.
type Notifier interface {
	Name() string
	NotifyRecord(ctx context.Context, rec model.Record) error
}

// SinkError reports a failed delivery to a single sink. Fan-out notifiers
// join one SinkError per failing sink.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string { return e.Sink + ": " + e.Err.Error() }
func (e *SinkError) Unwrap() error { return e.Err }
