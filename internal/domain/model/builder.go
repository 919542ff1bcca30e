package model

import (
	"fmt"
	"time"
)

// RecordBuilder assembles a single Record. Open one with NewRecordBuilder,
// chain the enrichment steps in any order and finish with Seal.
//
// The first misuse (unknown sequencing, empty actor, enrichment after Seal)
// is kept and returned by Seal; later calls become no-ops. A RecordBuilder
// is not safe for concurrent use.
type RecordBuilder struct {
	rec    Record
	err    error
	sealed bool
}

// NewRecordBuilder opens a record of the given kind with a fresh ID and the
// current time. Kinds outside the closed set are rejected.
func NewRecordBuilder(kind Kind) (*RecordBuilder, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("opening record: %w: %q", ErrUnknownKind, kind)
	}
	return &RecordBuilder{
		rec: Record{
			id:        newID(),
			timestamp: time.Now().UTC(),
			kind:      kind,
		},
	}, nil
}

// ready reports whether an enrichment step may run, recording the reason
// when it may not.
func (b *RecordBuilder) ready() bool {
	switch {
	case b.err != nil:
		return false
	case b.sealed:
		b.err = ErrSealed
		return false
	case b.rec.kind == "":
		b.err = ErrNotOpened
		return false
	}
	return true
}

// ByUser attaches the authenticated actor. Callers without an actor should
// skip this step instead of passing a placeholder.
func (b *RecordBuilder) ByUser(actor string) *RecordBuilder {
	if b == nil || !b.ready() {
		return b
	}
	if actor == "" {
		b.err = ErrEmptyActor
		return b
	}
	b.rec.actor = actor
	return b
}

// FromSourceEvent attaches a copy of the notification payload and derives
// the normalized source event from it. A nil payload is stored as empty.
func (b *RecordBuilder) FromSourceEvent(payload Payload) *RecordBuilder {
	if b == nil || !b.ready() {
		return b
	}
	raw := payload.Clone()
	if raw == nil {
		raw = Payload{}
	}
	b.rec.rawSourceEvent = raw
	b.rec.sourceEvent = extractSourceEvent(raw)
	b.rec.senderMissing = !senderLogin(raw).IsSet()
	b.rec.hasSourceEvent = true
	return b
}

// OnResource attaches a copy of the resource descriptor and derives the
// normalized target resource from it.
func (b *RecordBuilder) OnResource(descriptor Payload) *RecordBuilder {
	if b == nil || !b.ready() {
		return b
	}
	raw := descriptor.Clone()
	if raw == nil {
		raw = Payload{}
	}
	b.rec.rawTargetResource = raw
	b.rec.targetResource = extractTargetResource(raw)
	b.rec.hasTargetResource = true
	return b
}

// WithResult attaches the outcome of the action. No per-kind processing is
// applied yet, so the normalized outcome equals the raw one.
func (b *RecordBuilder) WithResult(outcome any) *RecordBuilder {
	if b == nil || !b.ready() {
		return b
	}
	b.rec.rawOutcome = cloneValue(outcome)
	b.rec.outcome = cloneValue(outcome)
	return b
}

// Err returns the first error recorded by the builder.
func (b *RecordBuilder) Err() error {
	if b == nil {
		return ErrNotOpened
	}
	return b.err
}

// Seal freezes the record. A builder can be sealed once; enrichment after
// that fails with ErrSealed.
func (b *RecordBuilder) Seal() (Record, error) {
	switch {
	case b == nil:
		return Record{}, ErrNotOpened
	case b.sealed:
		return Record{}, ErrSealed
	case b.err != nil:
		return Record{}, b.err
	case b.rec.kind == "":
		return Record{}, ErrNotOpened
	}
	b.sealed = true
	return b.rec, nil
}
