package conflict

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConflict = "Before\n<<<<<<< HEAD\nlocal\n=======\nremote\n>>>>>>> origin/main\nAfter"

func TestHasConflictMarkers(t *testing.T) {
	t.Run("AllThreeMarkers", func(t *testing.T) {
		assert.True(t, HasConflictMarkers(sampleConflict))
	})

	t.Run("PlainText", func(t *testing.T) {
		assert.False(t, HasConflictMarkers("just a paragraph\nwith two lines"))
	})

	t.Run("PartialMarkers", func(t *testing.T) {
		// Start and separator but no end marker.
		text := "<<<<<<< HEAD\nlocal\n=======\nremote"
		assert.False(t, HasConflictMarkers(text))
	})

	t.Run("EmptyText", func(t *testing.T) {
		assert.False(t, HasConflictMarkers(""))
	})
}

func TestParse(t *testing.T) {
	t.Run("SingleSection", func(t *testing.T) {
		doc := Parse(sampleConflict, "notes.md")

		require.Len(t, doc.Sections, 1)
		assert.Equal(t, 0, doc.Sections[0].ID)
		assert.Equal(t, "local", doc.Sections[0].LocalText)
		assert.Equal(t, "remote", doc.Sections[0].RemoteText)
		assert.Nil(t, doc.Sections[0].Resolved)
		assert.Equal(t, []string{"Before", "After"}, doc.LiteralSegments)
		assert.False(t, doc.Resolved())
	})

	t.Run("NoConflicts", func(t *testing.T) {
		text := "line one\nline two\nline three"
		doc := Parse(text, "notes.md")

		assert.Empty(t, doc.Sections)
		assert.Equal(t, []string{text}, doc.LiteralSegments)
		assert.True(t, doc.Resolved())
	})

	t.Run("MultipleSections", func(t *testing.T) {
		text := "a\n<<<<<<< HEAD\nl1\n=======\nr1\n>>>>>>> origin/main\nb\n<<<<<<< HEAD\nl2\n=======\nr2\n>>>>>>> origin/main\nc"
		doc := Parse(text, "notes.md")

		require.Len(t, doc.Sections, 2)
		assert.Equal(t, 0, doc.Sections[0].ID)
		assert.Equal(t, 1, doc.Sections[1].ID)
		assert.Equal(t, "l2", doc.Sections[1].LocalText)
		assert.Equal(t, "r2", doc.Sections[1].RemoteText)
		assert.Equal(t, []string{"a", "b", "c"}, doc.LiteralSegments)
	})

	t.Run("MultiLineSides", func(t *testing.T) {
		text := "x\n<<<<<<< HEAD\nl1\nl2\n=======\nr1\nr2\nr3\n>>>>>>> origin/main\ny"
		doc := Parse(text, "notes.md")

		require.Len(t, doc.Sections, 1)
		assert.Equal(t, "l1\nl2", doc.Sections[0].LocalText)
		assert.Equal(t, "r1\nr2\nr3", doc.Sections[0].RemoteText)
	})

	t.Run("EmptySides", func(t *testing.T) {
		text := "x\n<<<<<<< HEAD\n=======\n>>>>>>> origin/main\ny"
		doc := Parse(text, "notes.md")

		require.Len(t, doc.Sections, 1)
		assert.Equal(t, "", doc.Sections[0].LocalText)
		assert.Equal(t, "", doc.Sections[0].RemoteText)
	})

	t.Run("DanglingSectionAtEOF", func(t *testing.T) {
		text := "x\n<<<<<<< HEAD\nl1\n=======\nr1"
		doc := Parse(text, "notes.md")

		require.Len(t, doc.Sections, 1)
		assert.Equal(t, "l1", doc.Sections[0].LocalText)
		assert.Equal(t, "r1", doc.Sections[0].RemoteText)
		assert.Equal(t, []string{"x", ""}, doc.LiteralSegments)
	})

	t.Run("SeparatorOutsideSectionIsLiteral", func(t *testing.T) {
		text := "a\n=======\nb"
		doc := Parse(text, "notes.md")

		assert.Empty(t, doc.Sections)
		assert.Equal(t, []string{text}, doc.LiteralSegments)
	})
}

func TestSegmentCountInvariant(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		sampleConflict,
		"<<<<<<< HEAD\nl\n=======\nr\n>>>>>>> origin/main",
		"x\n<<<<<<< HEAD\nl\n=======\nr",
		"a\n<<<<<<< A\nl\n=======\nr\n>>>>>>> B\nb\n<<<<<<< A\nl\n=======\nr\n>>>>>>> B\nc",
		"=======\n>>>>>>> stray",
	}
	for _, in := range inputs {
		doc := Parse(in, "f.md")
		assert.Equal(t, len(doc.Sections)+1, len(doc.LiteralSegments), "input %q", in)
	}
}

func TestRoundTrip(t *testing.T) {
	text := "intro\n<<<<<<< HEAD\nours one\nours two\n=======\ntheirs\n>>>>>>> origin/main\nmiddle\n<<<<<<< HEAD\nalpha\n=======\nbeta\ngamma\n>>>>>>> origin/main\noutro"

	t.Run("AllLocal", func(t *testing.T) {
		doc := Parse(text, "f.md")
		for i := range doc.Sections {
			require.NoError(t, doc.ResolveSection(i, doc.Sections[i].LocalText))
		}
		want := "intro\nours one\nours two\nmiddle\nalpha\noutro"
		assert.Equal(t, want, doc.Rebuild())
	})

	t.Run("AllRemote", func(t *testing.T) {
		doc := Parse(text, "f.md")
		for i := range doc.Sections {
			require.NoError(t, doc.ResolveSection(i, doc.Sections[i].RemoteText))
		}
		want := "intro\ntheirs\nmiddle\nbeta\ngamma\noutro"
		assert.Equal(t, want, doc.Rebuild())
	})
}

func TestResolveSection(t *testing.T) {
	t.Run("KeepBoth", func(t *testing.T) {
		doc := Parse(sampleConflict, "notes.md")
		require.NoError(t, doc.ResolveSection(0, "local\n\nremote"))

		assert.True(t, doc.Resolved())
		assert.Equal(t, "Before\nlocal\n\nremote\nAfter", doc.Rebuild())
	})

	t.Run("UnknownID", func(t *testing.T) {
		doc := Parse(sampleConflict, "notes.md")
		err := doc.ResolveSection(5, "x")
		require.Error(t, err)
		err = doc.ResolveSection(-1, "x")
		require.Error(t, err)
	})

	t.Run("Idempotent", func(t *testing.T) {
		doc := Parse(sampleConflict, "notes.md")
		require.NoError(t, doc.ResolveSection(0, "merged"))
		once := doc.Rebuild()
		require.NoError(t, doc.ResolveSection(0, "merged"))
		assert.Equal(t, once, doc.Rebuild())
		assert.True(t, doc.Resolved())
	})

	t.Run("OverwriteAllowed", func(t *testing.T) {
		doc := Parse(sampleConflict, "notes.md")
		require.NoError(t, doc.ResolveSection(0, "first"))
		require.NoError(t, doc.ResolveSection(0, "second"))
		assert.True(t, doc.Resolved())
		assert.Equal(t, "Before\nsecond\nAfter", doc.Rebuild())
	})
}

func TestPartialResolution(t *testing.T) {
	text := "a\n<<<<<<< HEAD\nl1\n=======\nr1\n>>>>>>> origin/main\nb\n<<<<<<< HEAD\nl2\n=======\nr2\n>>>>>>> origin/main\nc"
	doc := Parse(text, "notes.md")
	require.NoError(t, doc.ResolveSection(0, "merged1"))

	assert.False(t, doc.Resolved())

	rebuilt := doc.Rebuild()
	assert.Equal(t, "a\nmerged1\nb\n<<<<<<< LOCAL\nl2\n=======\nr2\n>>>>>>> REMOTE\nc", rebuilt)

	// The unresolved block must survive a re-parse.
	reparsed := Parse(rebuilt, "notes.md")
	require.Len(t, reparsed.Sections, 1)
	assert.Equal(t, "l2", reparsed.Sections[0].LocalText)
	assert.Equal(t, "r2", reparsed.Sections[0].RemoteText)
}

func TestRebuildUnresolvedUsesFixedLabels(t *testing.T) {
	doc := Parse(sampleConflict, "notes.md")
	rebuilt := doc.Rebuild()
	assert.True(t, strings.Contains(rebuilt, "<<<<<<< LOCAL"))
	assert.True(t, strings.Contains(rebuilt, ">>>>>>> REMOTE"))
	assert.False(t, strings.Contains(rebuilt, "HEAD"))
	assert.False(t, strings.Contains(rebuilt, "origin/main"))
}
