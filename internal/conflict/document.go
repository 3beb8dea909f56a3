// Package conflict parses git conflict-marker text into a structured,
// section-by-section editable document and rebuilds text from it.
package conflict

import (
	"strings"

	"draftsync/internal/errs"
)

// Section is one conflicting region of a document. LocalText and RemoteText
// are the two competing bodies; Resolved is nil until the section has been
// resolved.
type Section struct {
	ID         int
	LocalText  string
	RemoteText string
	Resolved   *string
}

// Document is the parsed state of one file's conflicted content. Sections are
// ordered as they appear in the source; LiteralSegments holds the
// non-conflicting runs before, between and after every section, so
// len(LiteralSegments) == len(Sections)+1 always.
type Document struct {
	Path            string
	Sections        []Section
	LiteralSegments []string
}

// Resolved reports whether every section has been resolved.
func (d *Document) Resolved() bool {
	for i := range d.Sections {
		if d.Sections[i].Resolved == nil {
			return false
		}
	}
	return true
}

// ResolveSection sets the resolved text for the section with the given id.
// Re-resolving an already-resolved section overwrites the previous text.
func (d *Document) ResolveSection(id int, text string) error {
	if id < 0 || id >= len(d.Sections) {
		return errs.Newf(errs.KindNotFound, "no conflict section with id %d", id)
	}
	d.Sections[id].Resolved = &text
	return nil
}

// Rebuild produces document text from the current resolution state. Resolved
// sections contribute their resolved text; unresolved sections are re-emitted
// as conflict blocks with LOCAL/REMOTE placeholder labels, since the original
// branch labels are not retained by the parser.
func (d *Document) Rebuild() string {
	parts := make([]string, 0, 2*len(d.Sections)+1)
	for i, seg := range d.LiteralSegments {
		parts = append(parts, seg)
		if i < len(d.Sections) {
			s := &d.Sections[i]
			if s.Resolved != nil {
				parts = append(parts, *s.Resolved)
			} else {
				parts = append(parts,
					startMarkerPrefix+"LOCAL",
					s.LocalText,
					separatorMarker,
					s.RemoteText,
					endMarkerPrefix+"REMOTE",
				)
			}
		}
	}
	return strings.Join(parts, "\n")
}
