package gitback

import "strings"

// Keyword tables for classifying git's error text. Matching is fragile across
// git versions and locales, which is why commands run with LC_ALL=C and the
// match lives here rather than in the orchestrator.
var (
	conflictKeywords = []string{
		"CONFLICT",
		"Automatic merge failed",
		"needs merge",
		"unmerged files",
		"fix conflicts",
	}

	divergedKeywords = []string{
		"rejected",
		"non-fast-forward",
		"fetch first",
		"behind its remote counterpart",
	}

	nothingToCommitKeywords = []string{
		"nothing to commit",
		"no changes added to commit",
		"nothing added to commit",
	}

	noUpstreamKeywords = []string{
		"no upstream branch",
		"no tracking information",
	}
)

// classify maps raw git output to an ErrorKind. Conflict keywords win over
// divergence keywords because a conflicted pull also prints "Automatic merge
// failed" alongside other noise.
func classify(raw string) ErrorKind {
	for _, kw := range conflictKeywords {
		if strings.Contains(raw, kw) {
			return ErrMergeConflict
		}
	}
	for _, kw := range divergedKeywords {
		if strings.Contains(raw, kw) {
			return ErrDivergedRemote
		}
	}
	for _, kw := range nothingToCommitKeywords {
		if strings.Contains(raw, kw) {
			return ErrNothingToCommit
		}
	}
	for _, kw := range noUpstreamKeywords {
		if strings.Contains(raw, kw) {
			return ErrNoUpstream
		}
	}
	return ErrUnknown
}
