package notification

import (
	"context"
	"errors"
	"sync"

	"github.com/jonny/hookaudit/internal/domain/model"
	"github.com/jonny/hookaudit/internal/domain/port/outbound"
)

// Multi fans a record out to several notifiers concurrently.
type Multi struct {
	sinks []outbound.Notifier
}

// NewMulti creates a Multi over sinks. Nil entries are skipped.
func NewMulti(sinks ...outbound.Notifier) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Multi) Name() string { return "multi" }

// NotifyRecord delivers rec to every sink. A failing sink does not stop the
// others; failures are joined as *outbound.SinkError values in sink order.
func (m *Multi) NotifyRecord(ctx context.Context, rec model.Record) error {
	errs := make([]error, len(m.sinks))
	var wg sync.WaitGroup
	for i, sink := range m.sinks {
		wg.Go(func() {
			if err := sink.NotifyRecord(ctx, rec); err != nil {
				errs[i] = &outbound.SinkError{Sink: sink.Name(), Err: err}
			}
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}
