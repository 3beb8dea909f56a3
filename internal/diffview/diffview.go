// Package diffview parses unified diff output into structured hunks.
package diffview

import (
	"fmt"
	"strings"
)

// LineType indicates whether a line was added, removed, or is context.
type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// Line is a single line in a hunk.
type Line struct {
	Type    LineType
	Content string
}

// Hunk is one continuous section of changes from a unified diff.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Stats totals additions and deletions across hunks.
type Stats struct {
	Additions int
	Deletions int
}

// Parse reads `git diff`-style unified output and returns its hunks. Header
// lines (diff --git, index, ---, +++) are skipped; anything before the first
// @@ line is ignored.
func Parse(output string) ([]Hunk, error) {
	var hunks []Hunk
	var current *Hunk

	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			h, err := parseHunkHeader(line)
			if err != nil {
				return nil, err
			}
			hunks = append(hunks, h)
			current = &hunks[len(hunks)-1]

		case current == nil:
			// file header noise

		case strings.HasPrefix(line, "+"):
			current.Lines = append(current.Lines, Line{Type: Addition, Content: line[1:]})

		case strings.HasPrefix(line, "-"):
			current.Lines = append(current.Lines, Line{Type: Deletion, Content: line[1:]})

		case strings.HasPrefix(line, " "):
			current.Lines = append(current.Lines, Line{Type: Context, Content: line[1:]})

		case line == `\ No newline at end of file` || line == "":
			// skip
		}
	}

	return hunks, nil
}

// Tally computes addition/deletion totals for a set of hunks.
func Tally(hunks []Hunk) Stats {
	var s Stats
	for _, h := range hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case Addition:
				s.Additions++
			case Deletion:
				s.Deletions++
			}
		}
	}
	return s
}

// parseHunkHeader parses "@@ -oldStart,oldLines +newStart,newLines @@ ...".
func parseHunkHeader(line string) (Hunk, error) {
	var h Hunk
	rest := strings.TrimPrefix(line, "@@")
	end := strings.Index(rest, "@@")
	if end < 0 {
		return h, fmt.Errorf("malformed hunk header: %q", line)
	}
	fields := strings.Fields(rest[:end])
	if len(fields) != 2 {
		return h, fmt.Errorf("malformed hunk header: %q", line)
	}

	var err error
	h.OldStart, h.OldLines, err = parseRange(fields[0], "-")
	if err != nil {
		return h, fmt.Errorf("malformed hunk header %q: %w", line, err)
	}
	h.NewStart, h.NewLines, err = parseRange(fields[1], "+")
	if err != nil {
		return h, fmt.Errorf("malformed hunk header %q: %w", line, err)
	}
	return h, nil
}

func parseRange(field, sign string) (start, count int, err error) {
	if !strings.HasPrefix(field, sign) {
		return 0, 0, fmt.Errorf("expected %q range, got %q", sign, field)
	}
	field = field[len(sign):]
	count = 1
	if i := strings.Index(field, ","); i >= 0 {
		if _, err = fmt.Sscanf(field[i+1:], "%d", &count); err != nil {
			return 0, 0, err
		}
		field = field[:i]
	}
	if _, err = fmt.Sscanf(field, "%d", &start); err != nil {
		return 0, 0, err
	}
	return start, count, nil
}
