package model

import "errors"

var (
	// ErrUnknownKind is returned when a kind outside the closed set is used.
	ErrUnknownKind = errors.New("unknown audit record kind")
	// ErrNotOpened is returned when a builder is used without NewRecordBuilder.
	ErrNotOpened = errors.New("record builder not opened")
	// ErrSealed is returned when a sealed builder is enriched or sealed again.
	ErrSealed = errors.New("record already sealed")
	// ErrEmptyActor is returned when ByUser is called without an actor.
	ErrEmptyActor = errors.New("actor must not be empty")
	// ErrIncompleteRecord is returned when a record is not fit for persistence.
	ErrIncompleteRecord = errors.New("incomplete audit record")
	// ErrNotObject is returned when a payload document is not a JSON object.
	ErrNotObject = errors.New("payload is not a JSON object")
)
