package textbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	changes []Change
	cursors []Position
	reveals []int
}

func (r *recordingObserver) EditApplied(c Change) { r.changes = append(r.changes, c) }
func (r *recordingObserver) CursorMoved(p Position) { r.cursors = append(r.cursors, p) }
func (r *recordingObserver) LineRevealed(line int) { r.reveals = append(r.reveals, line) }

func TestDocument_EmptyHasOneLine(t *testing.T) {
	d := NewDocument("")
	assert.Equal(t, 1, d.LineCount())
	assert.Equal(t, 1, d.LineMaxColumn(1))
	assert.Equal(t, "", d.Value())
}

func TestDocument_InsertRangeAddressesColumns(t *testing.T) {
	d := NewDocument("def f():\nreturn 1")
	d.InsertRange(2, 1, "    ")
	assert.Equal(t, "def f():\n    return 1", d.Value())
	assert.Equal(t, 2, d.LineCount())
	assert.Equal(t, 13, d.LineMaxColumn(2))
}

func TestDocument_InsertRangeClampsPosition(t *testing.T) {
	d := NewDocument("ab")
	d.InsertRange(9, 9, "c")
	assert.Equal(t, "abc", d.Value())
	d.InsertRange(-1, -1, ">")
	assert.Equal(t, ">abc", d.Value())
}

func TestDocument_DeleteRangeAcrossLines(t *testing.T) {
	d := NewDocument("one\ntwo\nthree")
	d.DeleteRange(Range{StartLine: 1, StartColumn: 4, EndLine: 2, EndColumn: 1})
	assert.Equal(t, "onetwo\nthree", d.Value())

	// reversed ranges are normalised
	d.DeleteRange(Range{StartLine: 1, StartColumn: 7, EndLine: 1, EndColumn: 4})
	assert.Equal(t, "one\nthree", d.Value())
}

func TestDocument_ValueInRange(t *testing.T) {
	d := NewDocument("héllo\nwörld")
	assert.Equal(t, "héllo", d.ValueInRange(LineRange(1, d.LineMaxColumn(1))))
	assert.Equal(t, "llo\nwö", d.ValueInRange(Range{StartLine: 1, StartColumn: 3, EndLine: 2, EndColumn: 3}))
	assert.Equal(t, "", d.ValueInRange(Range{StartLine: 2, StartColumn: 2, EndLine: 2, EndColumn: 2}))
}

func TestDocument_ObserverSeesEditsInOrder(t *testing.T) {
	d := NewDocument("")
	obs := &recordingObserver{}
	d.SetObserver(obs)

	d.InsertRange(1, 1, "a")
	d.SetCursor(Position{Line: 1, Column: 2})
	d.InsertRange(1, 2, "b")
	d.DeleteRange(Range{StartLine: 1, StartColumn: 1, EndLine: 1, EndColumn: 2})
	d.RevealLine(1)

	require.Len(t, obs.changes, 3)
	assert.Equal(t, "a", obs.changes[0].Text)
	assert.Equal(t, Range{StartLine: 1, StartColumn: 2, EndLine: 1, EndColumn: 2}, obs.changes[1].Range)
	assert.Equal(t, "", obs.changes[2].Text)
	assert.Equal(t, []Position{{Line: 1, Column: 2}}, obs.cursors)
	assert.Equal(t, []int{1}, obs.reveals)
	assert.Equal(t, "b", d.Value())

	for i, c := range obs.changes {
		assert.EqualValues(t, i+1, c.Version)
	}
	text, version := d.VersionedValue()
	assert.Equal(t, "b", text)
	assert.EqualValues(t, 3, version)
}

func TestDocument_SetCursorClamps(t *testing.T) {
	d := NewDocument("abc")
	d.SetCursor(Position{Line: 5, Column: 10})
	assert.Equal(t, Position{Line: 1, Column: 4}, d.Cursor())
}
