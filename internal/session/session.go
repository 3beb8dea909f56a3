// Package session manages the lifecycle of one in-progress conflict
// resolution: per-section state, completion check, finalize and cancel. It is
// independent of any presentation layer; the orchestrator supplies hooks for
// everything that touches the filesystem or the backend.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"draftsync/internal/conflict"
	"draftsync/internal/errs"
)

// Hooks are the collaborators a session drives during finalize and cancel.
// Begin is called before a finalize or cancel sequence starts and may refuse
// it (for example when another sync operation holds the path's lock). End is
// called exactly once after a sequence that Begin admitted; closed reports
// whether the session actually finished, so a failed attempt leaves it open.
type Hooks struct {
	Write      func(text string) error
	Stage      func(ctx context.Context) error
	AbortMerge func(ctx context.Context) error
	Read       func() (string, error)
	Begin      func(op string) error
	End        func(op string, closed bool)
}

type phase int

const (
	phaseActive phase = iota
	phaseFinalized
	phaseCancelled
)

// Session wraps a parsed conflict document for one file.
type Session struct {
	id    string
	doc   *conflict.Document
	hooks Hooks

	mu    sync.Mutex
	phase phase
}

func New(doc *conflict.Document, hooks Hooks) *Session {
	return &Session{
		id:    uuid.New().String(),
		doc:   doc,
		hooks: hooks,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Path() string {
	return s.doc.Path
}

// Sections returns a copy of the document's sections.
func (s *Session) Sections() []conflict.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]conflict.Section, len(s.doc.Sections))
	copy(out, s.doc.Sections)
	return out
}

// Resolve sets the resolved text for one section. Re-resolving an
// already-resolved section overwrites it.
func (s *Session) Resolve(sectionID int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseActive {
		return errs.InvalidState("resolution session is closed")
	}
	return s.doc.ResolveSection(sectionID, text)
}

// KeepLocal resolves a section to its local side verbatim.
func (s *Session) KeepLocal(sectionID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseActive {
		return errs.InvalidState("resolution session is closed")
	}
	if sectionID < 0 || sectionID >= len(s.doc.Sections) {
		return errs.Newf(errs.KindNotFound, "no conflict section with id %d", sectionID)
	}
	return s.doc.ResolveSection(sectionID, s.doc.Sections[sectionID].LocalText)
}

// KeepRemote resolves a section to its remote side verbatim.
func (s *Session) KeepRemote(sectionID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseActive {
		return errs.InvalidState("resolution session is closed")
	}
	if sectionID < 0 || sectionID >= len(s.doc.Sections) {
		return errs.Newf(errs.KindNotFound, "no conflict section with id %d", sectionID)
	}
	return s.doc.ResolveSection(sectionID, s.doc.Sections[sectionID].RemoteText)
}

// KeepBoth resolves a section to local followed by remote, separated by a
// blank line.
func (s *Session) KeepBoth(sectionID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseActive {
		return errs.InvalidState("resolution session is closed")
	}
	if sectionID < 0 || sectionID >= len(s.doc.Sections) {
		return errs.Newf(errs.KindNotFound, "no conflict section with id %d", sectionID)
	}
	sec := &s.doc.Sections[sectionID]
	return s.doc.ResolveSection(sectionID, sec.LocalText+"\n\n"+sec.RemoteText)
}

// IsComplete reports whether every section has been resolved.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Resolved()
}

// Finalize rebuilds the document, writes it back and stages it. Only callable
// once, and only when every section is resolved.
func (s *Session) Finalize(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != phaseActive {
		s.mu.Unlock()
		return errs.InvalidState("resolution session is closed")
	}
	if !s.doc.Resolved() {
		s.mu.Unlock()
		return errs.InvalidState("cannot finalize with unresolved sections")
	}
	text := s.doc.Rebuild()
	s.mu.Unlock()

	if err := s.hooks.Begin("finalize"); err != nil {
		return err
	}
	finalized := false
	defer func() { s.hooks.End("finalize", finalized) }()

	if err := s.hooks.Write(text); err != nil {
		return err
	}
	if err := s.hooks.Stage(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.phase = phaseFinalized
	s.mu.Unlock()
	finalized = true
	return nil
}

// Cancel abandons the resolution: the backend aborts the merge, restoring the
// pre-merge working copy. After a successful cancel no conflict markers
// remain in the file.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != phaseActive {
		s.mu.Unlock()
		return errs.InvalidState("resolution session is closed")
	}
	s.mu.Unlock()

	if err := s.hooks.Begin("cancel"); err != nil {
		return err
	}
	cancelled := false
	defer func() { s.hooks.End("cancel", cancelled) }()

	if err := s.hooks.AbortMerge(ctx); err != nil {
		return errs.Wrap(errs.KindStashOrAbortFailure, "aborting merge", err)
	}

	text, err := s.hooks.Read()
	if err != nil {
		return err
	}
	if conflict.HasConflictMarkers(text) {
		return errs.New(errs.KindStashOrAbortFailure,
			"conflict markers remain after aborting the merge")
	}

	s.mu.Lock()
	s.phase = phaseCancelled
	s.mu.Unlock()
	cancelled = true
	return nil
}
