package syncer

// OutcomeKind tags the result of a pull or push attempt.
type OutcomeKind int

const (
	// OutcomeSuccess means the operation completed; Text carries the
	// updated file content when the operation produced one.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeConflict means the working copy now contains conflict
	// markers; Text carries the raw conflicted content, not yet parsed.
	OutcomeConflict
	// OutcomeFailure means the operation failed; Err carries the typed
	// error.
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeConflict:
		return "conflict"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of a sync operation.
type Outcome struct {
	Kind OutcomeKind
	Text string
	Err  error
}

func successOutcome(text string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Text: text}
}

func conflictOutcome(text string) Outcome {
	return Outcome{Kind: OutcomeConflict, Text: text}
}

func failureOutcome(err error) Outcome {
	return Outcome{Kind: OutcomeFailure, Err: err}
}
