package replay

import "replayServer/backend/internal/textbuf"

// animation is an explicit state machine: each step applies one unit of
// visible work. The engine sleeps between steps.
type animation interface {
	step() (done bool)
}

// insertAnimation types text starting at a fresh line.
type insertAnimation struct {
	buf     *textbuf.Buffer
	line    int
	text    []rune
	next    int
	started bool
	cursor  textbuf.Position
}

func newInsertAnimation(buf *textbuf.Buffer, line int, text string) *insertAnimation {
	return &insertAnimation{buf: buf, line: line, text: []rune(text)}
}

func (a *insertAnimation) step() bool {
	if !a.started {
		a.started = true
		a.prepare()
	}
	if a.next >= len(a.text) {
		return true
	}

	ed := a.buf.Editor()
	r := a.text[a.next]
	a.next++
	if r == '\n' {
		// a newline ends the current line rather than being typed
		ed.InsertRange(a.cursor.Line, ed.LineMaxColumn(a.cursor.Line), "\n")
		a.cursor = textbuf.Position{Line: a.cursor.Line + 1, Column: 1}
	} else {
		ed.InsertRange(a.cursor.Line, a.cursor.Column, string(r))
		a.cursor.Column++
	}
	ed.SetCursor(a.cursor)
	return a.next >= len(a.text)
}

// prepare makes room for the new line: the empty document is typed into
// directly, a line inside the document is split, and a line past the end is
// appended.
func (a *insertAnimation) prepare() {
	ed := a.buf.Editor()
	n := ed.LineCount()
	switch {
	case a.buf.IsEmpty():
		a.cursor = textbuf.Position{Line: 1, Column: 1}
	case a.line <= n:
		ed.RevealLine(a.line)
		ed.InsertRange(a.line, 1, "\n")
		a.cursor = textbuf.Position{Line: a.line, Column: 1}
	default:
		ed.InsertRange(n, ed.LineMaxColumn(n), "\n")
		a.cursor = textbuf.Position{Line: n + 1, Column: 1}
		ed.RevealLine(n + 1)
	}
	ed.SetCursor(a.cursor)
}

// deleteAnimation erases a line from its last character backwards, then
// removes the line break.
type deleteAnimation struct {
	buf       *textbuf.Buffer
	line      int
	remaining int
	started   bool
}

func newDeleteAnimation(buf *textbuf.Buffer, line int) *deleteAnimation {
	return &deleteAnimation{buf: buf, line: line}
}

func (a *deleteAnimation) step() bool {
	ed := a.buf.Editor()
	if !a.started {
		a.started = true
		a.remaining = len([]rune(a.buf.LineText(a.line)))
		ed.RevealLine(a.line)
	}
	if a.remaining > 0 {
		ed.DeleteRange(textbuf.Range{
			StartLine: a.line, StartColumn: a.remaining,
			EndLine: a.line, EndColumn: a.remaining + 1,
		})
		a.remaining--
		return false
	}
	a.buf.MergeBreak(a.line)
	return true
}
