package model

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is the category of an audited action.
type Kind string

const (
	KindRepositoryAccess  Kind = "REPOSITORY_ACCESS"
	KindIssueAction       Kind = "ISSUE_ACTION"
	KindPullRequestAction Kind = "PULL_REQUEST_ACTION"
	KindCommitStatus      Kind = "COMMIT_STATUS"
	KindAuthentication    Kind = "AUTHENTICATION"
)

// kinds is the closed set of recognised kinds. Adding a category means
// adding it here.
var kinds = []Kind{
	KindRepositoryAccess,
	KindIssueAction,
	KindPullRequestAction,
	KindCommitStatus,
	KindAuthentication,
}

// Kinds returns every recognised kind.
func Kinds() []Kind {
	return slices.Clone(kinds)
}

// Valid reports whether k belongs to the closed set.
func (k Kind) Valid() bool {
	return slices.Contains(kinds, k)
}

func (k Kind) String() string {
	return string(k)
}

// Label returns a human readable form, e.g. "pull request action".
func (k Kind) Label() string {
	return strings.ReplaceAll(strings.ToLower(string(k)), "_", " ")
}

// ParseKind converts s into a Kind. Matching is case-insensitive; anything
// outside the closed set is rejected with ErrUnknownKind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}
