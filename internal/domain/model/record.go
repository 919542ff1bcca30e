package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// UnknownSender stands in for the sender identity when a source event does
// not name one.
const UnknownSender = "UNKNOWN SENDER"

// SourceEvent is the normalized view of an inbound notification payload.
type SourceEvent struct {
	SenderIdentity string           `json:"sender"`
	Action         Optional[string] `json:"action"`
}

// RepositoryRef identifies the repository an action touched.
type RepositoryRef struct {
	ID       Optional[int64]  `json:"id"`
	FullName Optional[string] `json:"full_name"`
	URL      Optional[string] `json:"url"`
	CloneURL Optional[string] `json:"clone_url"`
	GitURL   Optional[string] `json:"git_url"`
	SSHURL   Optional[string] `json:"ssh_url"`
}

// TargetResource is the normalized view of a resource descriptor.
// PullRequest accepts either a number or an object carrying "number", and
// Commit either a string or an object carrying "sha". Any other shape
// leaves the field unset; the raw descriptor keeps the original value.
type TargetResource struct {
	Repository  RepositoryRef    `json:"repository"`
	IssueNumber Optional[int64]  `json:"issue_number"`
	Commit      Optional[string] `json:"commit"`
	PullRequest Optional[int64]  `json:"pull_request"`
}

// Record is a sealed audit record. It is produced by RecordBuilder.Seal or
// Restore and cannot be modified; accessors hand out copies of the raw
// documents it retains.
type Record struct {
	id        string
	timestamp time.Time
	kind      Kind
	actor     string

	sourceEvent    SourceEvent
	rawSourceEvent Payload
	hasSourceEvent bool
	// senderMissing is set when SenderIdentity holds UnknownSender as a
	// fallback rather than as the sender's actual login.
	senderMissing bool

	targetResource    TargetResource
	rawTargetResource Payload
	hasTargetResource bool

	outcome    any
	rawOutcome any
}

func (r Record) ID() string           { return r.id }
func (r Record) Timestamp() time.Time { return r.timestamp }
func (r Record) Kind() Kind           { return r.kind }

// Actor returns the user responsible for the action, if one was attached.
func (r Record) Actor() (string, bool) {
	return r.actor, r.actor != ""
}

// SourceEvent returns the normalized source event and whether one was attached.
func (r Record) SourceEvent() (SourceEvent, bool) {
	return r.sourceEvent, r.hasSourceEvent
}

// RawSourceEvent returns a copy of the payload the source event was derived from.
func (r Record) RawSourceEvent() Payload {
	return r.rawSourceEvent.Clone()
}

// TargetResource returns the normalized target and whether one was attached.
func (r Record) TargetResource() (TargetResource, bool) {
	return r.targetResource, r.hasTargetResource
}

// RawTargetResource returns a copy of the descriptor the target was derived from.
func (r Record) RawTargetResource() Payload {
	return r.rawTargetResource.Clone()
}

func (r Record) Outcome() any    { return cloneValue(r.outcome) }
func (r Record) RawOutcome() any { return cloneValue(r.rawOutcome) }

// Validate reports whether the record may be persisted. Records without a
// kind or an actor are rejected with ErrIncompleteRecord.
func (r Record) Validate() error {
	var missing []string
	if r.id == "" {
		missing = append(missing, "id")
	}
	if !r.kind.Valid() {
		missing = append(missing, "kind")
	}
	if r.actor == "" {
		missing = append(missing, "actor")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteRecord, strings.Join(missing, ", "))
	}
	return nil
}

// Degraded lists the normalized fields that fell back to a sentinel
// because the raw document did not carry them.
func (r Record) Degraded() []string {
	var fields []string
	if r.hasSourceEvent {
		if r.senderMissing {
			fields = append(fields, "source_event.sender")
		}
		if !r.sourceEvent.Action.IsSet() {
			fields = append(fields, "source_event.action")
		}
	}
	if r.hasTargetResource {
		fields = append(fields, r.targetResource.missing()...)
	}
	return fields
}

func (t TargetResource) missing() []string {
	checks := []struct {
		name string
		set  bool
	}{
		{"target_resource.repository.id", t.Repository.ID.IsSet()},
		{"target_resource.repository.full_name", t.Repository.FullName.IsSet()},
		{"target_resource.repository.url", t.Repository.URL.IsSet()},
		{"target_resource.repository.clone_url", t.Repository.CloneURL.IsSet()},
		{"target_resource.repository.git_url", t.Repository.GitURL.IsSet()},
		{"target_resource.repository.ssh_url", t.Repository.SSHURL.IsSet()},
		{"target_resource.issue_number", t.IssueNumber.IsSet()},
		{"target_resource.commit", t.Commit.IsSet()},
		{"target_resource.pull_request", t.PullRequest.IsSet()},
	}
	var fields []string
	for _, c := range checks {
		if !c.set {
			fields = append(fields, c.name)
		}
	}
	return fields
}

// Snapshot is the storable form of a Record: identity plus the raw inputs.
// Normalized views are not stored because they are derived from the raw
// documents.
type Snapshot struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	Kind              Kind      `json:"kind"`
	Actor             string    `json:"actor,omitempty"`
	RawSourceEvent    Payload   `json:"raw_source_event"`
	RawTargetResource Payload   `json:"raw_target_resource"`
	RawOutcome        any       `json:"raw_outcome"`
}

// Snapshot returns the storable form of r. A nil raw document means the
// corresponding enrichment step never ran.
func (r Record) Snapshot() Snapshot {
	return Snapshot{
		ID:                r.id,
		Timestamp:         r.timestamp,
		Kind:              r.kind,
		Actor:             r.actor,
		RawSourceEvent:    r.RawSourceEvent(),
		RawTargetResource: r.RawTargetResource(),
		RawOutcome:        r.RawOutcome(),
	}
}

// Restore rebuilds a sealed Record from a snapshot, re-deriving the
// normalized views from the raw documents.
func Restore(s Snapshot) (Record, error) {
	if s.ID == "" {
		return Record{}, fmt.Errorf("restoring record: empty id")
	}
	if !s.Kind.Valid() {
		return Record{}, fmt.Errorf("restoring record %s: %w: %q", s.ID, ErrUnknownKind, s.Kind)
	}
	r := Record{
		id:         s.ID,
		timestamp:  s.Timestamp.UTC(),
		kind:       s.Kind,
		actor:      s.Actor,
		outcome:    cloneValue(s.RawOutcome),
		rawOutcome: cloneValue(s.RawOutcome),
	}
	if s.RawSourceEvent != nil {
		r.rawSourceEvent = s.RawSourceEvent.Clone()
		r.sourceEvent = extractSourceEvent(r.rawSourceEvent)
		r.senderMissing = !senderLogin(r.rawSourceEvent).IsSet()
		r.hasSourceEvent = true
	}
	if s.RawTargetResource != nil {
		r.rawTargetResource = s.RawTargetResource.Clone()
		r.targetResource = extractTargetResource(r.rawTargetResource)
		r.hasTargetResource = true
	}
	return r, nil
}

// recordJSON is the wire form used by MarshalJSON: the snapshot plus the
// normalized views.
type recordJSON struct {
	ID                string          `json:"id"`
	Timestamp         time.Time       `json:"timestamp"`
	Kind              Kind            `json:"kind"`
	Actor             string          `json:"actor,omitempty"`
	SourceEvent       *SourceEvent    `json:"source_event,omitempty"`
	RawSourceEvent    Payload         `json:"raw_source_event,omitempty"`
	TargetResource    *TargetResource `json:"target_resource,omitempty"`
	RawTargetResource Payload         `json:"raw_target_resource,omitempty"`
	Outcome           any             `json:"outcome,omitempty"`
	RawOutcome        any             `json:"raw_outcome,omitempty"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ID:                r.id,
		Timestamp:         r.timestamp,
		Kind:              r.kind,
		Actor:             r.actor,
		RawSourceEvent:    r.rawSourceEvent,
		RawTargetResource: r.rawTargetResource,
		Outcome:           r.outcome,
		RawOutcome:        r.rawOutcome,
	}
	if r.hasSourceEvent {
		se := r.sourceEvent
		out.SourceEvent = &se
	}
	if r.hasTargetResource {
		tr := r.targetResource
		out.TargetResource = &tr
	}
	return json.Marshal(out)
}

// Headline is a one-line human summary, e.g.
// "pull request action by alice on octocat/Hello-World".
func (r Record) Headline() string {
	actor := r.actor
	if actor == "" {
		actor = "unknown actor"
	}
	line := r.kind.Label() + " by " + actor
	if name, ok := r.targetResource.Repository.FullName.Get(); ok && r.hasTargetResource {
		line += " on " + name
	}
	return line
}
