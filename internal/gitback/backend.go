// Package gitback adapts a version-control backend to the narrow operation
// set the sync orchestrator drives. Error classification happens once, here,
// so the orchestrator never matches on raw backend text.
package gitback

import (
	"context"
	"errors"
	"fmt"

	"draftsync/internal/diffview"
)

// Status is the subset of repository state the orchestrator cares about.
type Status struct {
	CurrentBranch  string
	TrackingBranch string
	ChangedPaths   []string
	AheadCount     int
	BehindCount    int
}

// Backend is the operation set the orchestrator drives. Implementations must
// be safe for use from one goroutine at a time per working directory; the
// orchestrator serializes calls itself.
type Backend interface {
	IsRepo(ctx context.Context) bool
	Status(ctx context.Context) (*Status, error)
	Fetch(ctx context.Context) error
	Pull(ctx context.Context) error
	Push(ctx context.Context) error
	Commit(ctx context.Context, message string) error
	Add(ctx context.Context, paths []string) error
	AddAll(ctx context.Context) error
	Stash(ctx context.Context) error
	StashPop(ctx context.Context) error
	Checkout(ctx context.Context, branch string) error
	AbortMerge(ctx context.Context) error
	Diff(ctx context.Context, ref, path string) ([]diffview.Hunk, error)
}

// ErrorKind is the adapter-level classification of a failed backend call.
type ErrorKind int

const (
	// ErrUnknown covers anything the keyword table does not recognize;
	// network and credential failures land here.
	ErrUnknown ErrorKind = iota
	// ErrMergeConflict means the operation left conflict markers behind.
	ErrMergeConflict
	// ErrDivergedRemote means a push was rejected as non-fast-forward.
	ErrDivergedRemote
	// ErrNothingToCommit means a commit had an empty index.
	ErrNothingToCommit
	// ErrNoUpstream means the branch has no tracking branch configured.
	ErrNoUpstream
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMergeConflict:
		return "merge-conflict"
	case ErrDivergedRemote:
		return "diverged-remote"
	case ErrNothingToCommit:
		return "nothing-to-commit"
	case ErrNoUpstream:
		return "no-upstream"
	default:
		return "unknown"
	}
}

// BackendError carries the operation, the classified kind, and the raw
// backend output for diagnostics.
type BackendError struct {
	Op         string
	Kind       ErrorKind
	RawMessage string
	Err        error
}

func (e *BackendError) Error() string {
	if e.RawMessage != "" {
		return fmt.Sprintf("%s failed (%s): %s", e.Op, e.Kind, e.RawMessage)
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// KindOf extracts the classified kind from err, or ErrUnknown.
func KindOf(err error) ErrorKind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ErrUnknown
}
