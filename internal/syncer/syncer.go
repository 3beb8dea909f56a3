// Package syncer orchestrates pull, push and conflict recovery for tracked
// files. One SyncSession owns one tracked path; a Registry hands out at most
// one session per path so two orchestrators can never interleave backend
// calls on the same file.
package syncer

import (
	"context"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"draftsync/internal/conflict"
	"draftsync/internal/errs"
	"draftsync/internal/gitback"
	"draftsync/internal/session"
	"draftsync/internal/snapshot"
)

// Registry hands out SyncSessions keyed by tracked path.
type Registry struct {
	workDir   string
	backend   gitback.Backend
	fs        FS
	snapshots *snapshot.Store
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*SyncSession
}

// RegistryOptions configures a Registry. Snapshots may be nil, in which case
// no pre-recovery snapshots or journal entries are taken.
type RegistryOptions struct {
	WorkDir   string
	Backend   gitback.Backend
	FS        FS
	Snapshots *snapshot.Store
	Logger    *zap.Logger
}

func NewRegistry(opts RegistryOptions) *Registry {
	if opts.FS == nil {
		opts.FS = OSFS()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Registry{
		workDir:   opts.WorkDir,
		backend:   opts.Backend,
		fs:        opts.FS,
		snapshots: opts.Snapshots,
		logger:    opts.Logger,
		sessions:  make(map[string]*SyncSession),
	}
}

// Open returns the session for a tracked path, creating it on first use.
// relPath is relative to the registry's working directory.
func (r *Registry) Open(relPath string) (*SyncSession, error) {
	if relPath == "" {
		return nil, errs.NoFileOpen("no tracked path given")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[relPath]; ok {
		return s, nil
	}

	s := &SyncSession{
		relPath:   relPath,
		absPath:   filepath.Join(r.workDir, relPath),
		backend:   r.backend,
		fs:        r.fs,
		snapshots: r.snapshots,
		logger:    r.logger.With(zap.String("path", relPath)),
		state:     StateIdle,
	}
	r.sessions[relPath] = s
	return s, nil
}

// SyncSession synchronizes one tracked file. All backend-touching operations
// are serialized by an operation lock; a second concurrent operation for the
// same path fails fast with Busy instead of queuing.
type SyncSession struct {
	relPath   string
	absPath   string
	backend   gitback.Backend
	fs        FS
	snapshots *snapshot.Store
	logger    *zap.Logger

	// opLock serializes backend call sequences for this path. It is never
	// held while waiting on the caller.
	opLock sync.Mutex

	mu         sync.Mutex
	state      State
	dirty      bool
	resolution *session.Session
}

func (s *SyncSession) Path() string {
	return s.relPath
}

func (s *SyncSession) AbsPath() string {
	return s.absPath
}

// State returns the current sync state for this path.
func (s *SyncSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MarkDirty records that the file changed locally since the last sync.
func (s *SyncSession) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Dirty reports whether the file changed locally since the last sync.
func (s *SyncSession) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *SyncSession) clearDirty() {
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}

// begin acquires the operation lock and performs the Idle -> op transition.
func (s *SyncSession) begin(op State) error {
	if !s.opLock.TryLock() {
		return errs.Busy("a sync operation is already in flight for " + s.relPath)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transitionLocked(op); err != nil {
		s.opLock.Unlock()
		return err
	}
	return nil
}

// end releases the operation lock and transitions out of the operating state.
func (s *SyncSession) end(to State) {
	s.mu.Lock()
	if err := s.transitionLocked(to); err != nil {
		// Should be unreachable: operating states may always return to
		// Idle or AwaitingResolution.
		s.logger.Error("state machine violation", zap.Error(err))
		s.state = to
	}
	s.mu.Unlock()
	s.opLock.Unlock()
}

// PullWithConflictDetection pulls from the tracking branch. A clean pull
// returns the updated file text. A pull the backend reports as conflicted
// returns the raw conflicted text; any other failure is fatal for this call.
func (s *SyncSession) PullWithConflictDetection(ctx context.Context) Outcome {
	if err := s.begin(StatePulling); err != nil {
		return failureOutcome(err)
	}

	outcome := s.pull(ctx)
	s.record("pull", outcome, "")
	if outcome.Kind == OutcomeConflict {
		s.end(StateAwaitingResolution)
	} else {
		s.end(StateIdle)
	}
	return outcome
}

func (s *SyncSession) pull(ctx context.Context) Outcome {
	err := s.backend.Pull(ctx)
	if err == nil {
		text, readErr := s.fs.ReadText(s.absPath)
		if readErr != nil {
			return failureOutcome(readErr)
		}
		s.logger.Info("pull succeeded")
		return successOutcome(text)
	}

	if gitback.KindOf(err) == gitback.ErrMergeConflict {
		// Expected branch, not an error: the working copy now holds
		// conflict markers for the caller to resolve.
		text, readErr := s.fs.ReadText(s.absPath)
		if readErr != nil {
			return failureOutcome(readErr)
		}
		s.logger.Info("pull produced conflicts")
		return conflictOutcome(text)
	}

	s.logger.Warn("pull failed", zap.Error(err))
	return failureOutcome(errs.Wrap(errs.KindNetworkOrAuth, "pull failed", err))
}

// PushWithConflictHandling pushes local commits. A push rejected because the
// remote has diverged triggers the stash/pull/pop recovery sequence; a
// conflicted pop surfaces as a conflict outcome and the push is not retried
// until resolution completes.
func (s *SyncSession) PushWithConflictHandling(ctx context.Context) Outcome {
	if err := s.begin(StatePushing); err != nil {
		return failureOutcome(err)
	}

	outcome, snapHash := s.push(ctx)
	s.record("push", outcome, snapHash)
	if outcome.Kind == OutcomeConflict {
		s.end(StateAwaitingResolution)
	} else {
		if outcome.Kind == OutcomeSuccess {
			s.clearDirty()
		}
		s.end(StateIdle)
	}
	return outcome
}

func (s *SyncSession) push(ctx context.Context) (Outcome, string) {
	err := s.backend.Push(ctx)
	if err == nil {
		s.logger.Info("push succeeded")
		return successOutcome(""), ""
	}

	if gitback.KindOf(err) != gitback.ErrDivergedRemote {
		s.logger.Warn("push failed", zap.Error(err))
		return failureOutcome(errs.Wrap(errs.KindNetworkOrAuth, "push failed", err)), ""
	}

	s.logger.Info("remote has diverged, starting recovery")
	return s.recoverDivergedPush(ctx)
}

// recoverDivergedPush runs stash -> pull -> pop -> (re-push once). The local
// file is snapshotted first so a working tree left transitional by a failed
// step can be restored by hand.
func (s *SyncSession) recoverDivergedPush(ctx context.Context) (Outcome, string) {
	snapHash := s.takeSnapshot()

	if err := s.backend.Stash(ctx); err != nil {
		return failureOutcome(errs.Wrap(errs.KindStashOrAbortFailure, "stashing local changes", err)), snapHash
	}

	if err := s.backend.Pull(ctx); err != nil {
		if gitback.KindOf(err) == gitback.ErrMergeConflict {
			// The pull itself conflicted against committed local
			// changes. The stash stays put until the resolution
			// completes.
			text, readErr := s.fs.ReadText(s.absPath)
			if readErr != nil {
				return failureOutcome(readErr), snapHash
			}
			s.logger.Info("recovery pull produced conflicts")
			return conflictOutcome(text), snapHash
		}

		// Non-conflict pull failure: put the stashed changes back so
		// the working tree is not silently missing local edits.
		s.logger.Warn("recovery pull failed, restoring stash", zap.Error(err))
		if popErr := s.backend.StashPop(ctx); popErr != nil {
			return failureOutcome(errs.Wrap(errs.KindPartialRecoveryFailure,
				"pull failed and the stashed changes could not be restored; manual intervention required", popErr)), snapHash
		}
		return failureOutcome(errs.Wrap(errs.KindNetworkOrAuth, "pull during push recovery failed", err)), snapHash
	}

	if err := s.backend.StashPop(ctx); err != nil {
		if gitback.KindOf(err) == gitback.ErrMergeConflict {
			text, readErr := s.fs.ReadText(s.absPath)
			if readErr != nil {
				return failureOutcome(readErr), snapHash
			}
			s.logger.Info("stash pop produced conflicts")
			return conflictOutcome(text), snapHash
		}
		return failureOutcome(errs.Wrap(errs.KindStashOrAbortFailure, "restoring stashed changes", err)), snapHash
	}

	text, err := s.fs.ReadText(s.absPath)
	if err != nil {
		return failureOutcome(err), snapHash
	}
	if conflict.HasConflictMarkers(text) {
		// Pop succeeded but left markers behind. Resolution must
		// complete before any further push.
		s.logger.Info("stash pop left conflict markers")
		return conflictOutcome(text), snapHash
	}

	if err := s.backend.Push(ctx); err != nil {
		s.logger.Warn("push retry failed", zap.Error(err))
		return failureOutcome(errs.Wrap(errs.KindNetworkOrAuth, "push retry failed", err)), snapHash
	}
	s.logger.Info("push succeeded after recovery")
	return successOutcome(""), snapHash
}

// OpenResolution parses conflicted text into a resolution session. Only valid
// while this path is awaiting resolution, and only one resolution session may
// be open at a time.
func (s *SyncSession) OpenResolution(conflictedText string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingResolution {
		return nil, errs.Newf(errs.KindInvalidState,
			"cannot open a resolution session while %s", s.state)
	}
	if s.resolution != nil {
		return nil, errs.InvalidState("a resolution session is already open for " + s.relPath)
	}

	doc := conflict.Parse(conflictedText, s.relPath)
	if len(doc.Sections) == 0 {
		return nil, errs.New(errs.KindInternal, "text contains no conflict sections")
	}

	res := session.New(doc, session.Hooks{
		Write: func(text string) error {
			return s.fs.WriteText(s.absPath, text)
		},
		Stage: func(ctx context.Context) error {
			return s.backend.Add(ctx, []string{s.relPath})
		},
		AbortMerge: func(ctx context.Context) error {
			return s.backend.AbortMerge(ctx)
		},
		Read: func() (string, error) {
			return s.fs.ReadText(s.absPath)
		},
		Begin: s.beginResolutionOp,
		End:   s.endResolutionOp,
	})
	s.resolution = res
	s.logger.Info("resolution session opened",
		zap.String("session_id", res.ID()),
		zap.Int("sections", len(doc.Sections)),
	)
	return res, nil
}

// ResumeResolution re-enters awaiting-resolution for a file that already
// contains conflict markers on disk, for example from a sync interrupted in a
// previous run. It returns the conflicted text for OpenResolution.
func (s *SyncSession) ResumeResolution() (string, error) {
	text, err := s.fs.ReadText(s.absPath)
	if err != nil {
		return "", err
	}
	if !conflict.HasConflictMarkers(text) {
		return "", errs.InvalidState(s.relPath + " has no conflict markers")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAwaitingResolution {
		return text, nil
	}
	if err := s.transitionLocked(StateAwaitingResolution); err != nil {
		return "", err
	}
	return text, nil
}

// Resolution returns the open resolution session, or nil.
func (s *SyncSession) Resolution() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolution
}

func (s *SyncSession) beginResolutionOp(op string) error {
	if !s.opLock.TryLock() {
		return errs.Busy("a sync operation is already in flight for " + s.relPath)
	}

	to := StateFinalizing
	if op == "cancel" {
		to = StateCancelling
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transitionLocked(to); err != nil {
		s.opLock.Unlock()
		return err
	}
	return nil
}

func (s *SyncSession) endResolutionOp(op string, closed bool) {
	s.mu.Lock()
	if closed {
		s.state = StateIdle
		s.resolution = nil
		s.dirty = false
	} else {
		// The attempt failed; the session stays open for a retry.
		s.state = StateAwaitingResolution
	}
	s.mu.Unlock()
	s.opLock.Unlock()

	if closed {
		s.logger.Info("resolution session closed", zap.String("op", op))
		if s.snapshots != nil {
			if _, err := s.snapshots.Record(s.relPath, "resolution-"+op, "success", ""); err != nil {
				s.logger.Warn("recording journal entry", zap.Error(err))
			}
		}
	}
}

// CheckRemote fetches and reports ahead/behind counts. When a sync operation
// is already in flight the check is skipped, not queued: freshness of the
// indicator is best-effort.
func (s *SyncSession) CheckRemote(ctx context.Context) (*gitback.Status, error) {
	if !s.opLock.TryLock() {
		return nil, errs.Busy("a sync operation is already in flight for " + s.relPath)
	}
	defer s.opLock.Unlock()

	if err := s.backend.Fetch(ctx); err != nil {
		return nil, errs.Wrap(errs.KindNetworkOrAuth, "fetch failed", err)
	}
	st, err := s.backend.Status(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetworkOrAuth, "status failed", err)
	}
	return st, nil
}

// CommitAndPush stages the tracked file, commits it, then pushes with the
// full divergence-recovery protocol. An empty index is treated as "nothing to
// do" and the push still runs.
func (s *SyncSession) CommitAndPush(ctx context.Context, message string) Outcome {
	if err := s.begin(StatePushing); err != nil {
		return failureOutcome(err)
	}

	var outcome Outcome
	var snapHash string
	if err := s.commit(ctx, message); err != nil {
		outcome = failureOutcome(err)
	} else {
		outcome, snapHash = s.push(ctx)
	}

	s.record("commit-and-push", outcome, snapHash)
	if outcome.Kind == OutcomeConflict {
		s.end(StateAwaitingResolution)
	} else {
		if outcome.Kind == OutcomeSuccess {
			s.clearDirty()
		}
		s.end(StateIdle)
	}
	return outcome
}

func (s *SyncSession) commit(ctx context.Context, message string) error {
	if err := s.backend.Add(ctx, []string{s.relPath}); err != nil {
		return errs.Wrap(errs.KindNetworkOrAuth, "staging "+s.relPath, err)
	}
	err := s.backend.Commit(ctx, message)
	if err == nil {
		return nil
	}
	if gitback.KindOf(err) == gitback.ErrNothingToCommit {
		s.logger.Debug("nothing to commit")
		return nil
	}
	return errs.Wrap(errs.KindNetworkOrAuth, "commit failed", err)
}

// takeSnapshot saves the current file content before a recovery sequence.
// Best effort: a snapshot failure is logged, never fatal.
func (s *SyncSession) takeSnapshot() string {
	if s.snapshots == nil {
		return ""
	}
	text, err := s.fs.ReadText(s.absPath)
	if err != nil {
		s.logger.Warn("snapshot read failed", zap.Error(err))
		return ""
	}
	hash, err := s.snapshots.Save(text)
	if err != nil {
		s.logger.Warn("snapshot save failed", zap.Error(err))
		return ""
	}
	return hash
}

func (s *SyncSession) record(op string, outcome Outcome, snapHash string) {
	if s.snapshots == nil {
		return
	}
	if _, err := s.snapshots.Record(s.relPath, op, outcome.Kind.String(), snapHash); err != nil {
		s.logger.Warn("recording journal entry", zap.Error(err))
	}
}
