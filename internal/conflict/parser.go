package conflict

import "strings"

const (
	startMarkerPrefix = "<<<<<<< "
	separatorMarker   = "======="
	endMarkerPrefix   = ">>>>>>> "
)

type parseState int

const (
	stateOutside parseState = iota
	stateInLocal
	stateInRemote
)

// HasConflictMarkers is a cheap gate: true only when the start prefix, the
// separator and the end prefix all occur somewhere in text. It is a substring
// test, not structural validation.
func HasConflictMarkers(text string) bool {
	return strings.Contains(text, startMarkerPrefix) &&
		strings.Contains(text, separatorMarker) &&
		strings.Contains(text, endMarkerPrefix)
}

// Parse scans raw conflicted text line by line and splits it into literal
// segments and conflict sections. The branch labels on the markers are
// discarded. A start marker with no matching end marker closes the dangling
// section at end of input with whatever was collected.
func Parse(raw, path string) *Document {
	doc := &Document{Path: path}

	var literal, local, remote []string
	state := stateOutside

	for _, line := range strings.Split(raw, "\n") {
		switch {
		case state == stateOutside && strings.HasPrefix(line, startMarkerPrefix):
			doc.LiteralSegments = append(doc.LiteralSegments, strings.Join(literal, "\n"))
			literal = nil
			local = nil
			remote = nil
			state = stateInLocal

		case state == stateInLocal && line == separatorMarker:
			state = stateInRemote

		case state != stateOutside && strings.HasPrefix(line, endMarkerPrefix):
			doc.Sections = append(doc.Sections, Section{
				ID:         len(doc.Sections),
				LocalText:  strings.Join(local, "\n"),
				RemoteText: strings.Join(remote, "\n"),
			})
			state = stateOutside

		case state == stateInLocal:
			local = append(local, line)

		case state == stateInRemote:
			remote = append(remote, line)

		default:
			literal = append(literal, line)
		}
	}

	if state != stateOutside {
		// Dangling section at EOF: keep what was collected.
		doc.Sections = append(doc.Sections, Section{
			ID:         len(doc.Sections),
			LocalText:  strings.Join(local, "\n"),
			RemoteText: strings.Join(remote, "\n"),
		})
	}
	doc.LiteralSegments = append(doc.LiteralSegments, strings.Join(literal, "\n"))

	return doc
}
