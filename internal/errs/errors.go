package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a sync failure. Every error crossing a package boundary in
// draftsync carries exactly one Kind so callers can branch without string
// matching.
type Kind string

const (
	KindNoFileOpen             Kind = "NO_FILE_OPEN"
	KindInvalidState           Kind = "INVALID_STATE"
	KindNetworkOrAuth          Kind = "NETWORK_OR_AUTH"
	KindBusy                   Kind = "BUSY"
	KindDivergedRemote         Kind = "DIVERGED_REMOTE"
	KindMergeConflict          Kind = "MERGE_CONFLICT"
	KindStashOrAbortFailure    Kind = "STASH_OR_ABORT_FAILURE"
	KindPartialRecoveryFailure Kind = "PARTIAL_RECOVERY_FAILURE"
	KindIO                     Kind = "IO_ERROR"
	KindExternalMerge          Kind = "EXTERNAL_MERGE_ERROR"
	KindNotFound               Kind = "NOT_FOUND"
	KindInternal               Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err (or anything it wraps) carries the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func NoFileOpen(message string) *Error {
	return New(KindNoFileOpen, message)
}

func InvalidState(message string) *Error {
	return New(KindInvalidState, message)
}

func Busy(message string) *Error {
	return New(KindBusy, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func IO(message string, err error) *Error {
	return Wrap(KindIO, message, err)
}
