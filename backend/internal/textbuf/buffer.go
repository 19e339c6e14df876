package textbuf

// Buffer is the line-addressed Text Buffer built on Editor primitives.
// Lines are 1-based. A buffer always has at least one line; a buffer whose
// only line is empty is the empty document.
type Buffer struct {
	ed Editor
}

func NewBuffer(ed Editor) *Buffer {
	return &Buffer{ed: ed}
}

// Editor exposes the underlying primitives for character level edits.
func (b *Buffer) Editor() Editor { return b.ed }

func (b *Buffer) LineCount() int { return b.ed.LineCount() }

func (b *Buffer) LineMaxColumn(line int) int { return b.ed.LineMaxColumn(line) }

func (b *Buffer) IsEmpty() bool {
	return b.ed.LineCount() == 1 && b.ed.LineMaxColumn(1) == 1
}

// ClampInsertLine maps line into [1, LineCount()+1]. The empty document has
// nothing to shift, so every insert lands on line 1. clamped reports whether
// the requested line was outside the valid window.
func (b *Buffer) ClampInsertLine(line int) (target int, clamped bool) {
	n := b.ed.LineCount()
	switch {
	case line < 1:
		target, clamped = 1, true
	case line > n+1:
		target, clamped = n+1, true
	default:
		target = line
	}
	if b.IsEmpty() {
		target = 1
	}
	return target, clamped
}

// InsertAt places text as new line(s) at line, shifting existing content down.
func (b *Buffer) InsertAt(line int, text string) {
	line, _ = b.ClampInsertLine(line)
	n := b.ed.LineCount()
	switch {
	case b.IsEmpty():
		b.ed.InsertRange(1, 1, text)
	case line <= n:
		b.ed.InsertRange(line, 1, text+"\n")
	default:
		b.ed.InsertRange(n, b.ed.LineMaxColumn(n), "\n"+text)
	}
}

// DeleteLine removes line together with one adjacent line break. It reports
// false, leaving the buffer untouched, when line is out of range.
func (b *Buffer) DeleteLine(line int) bool {
	n := b.ed.LineCount()
	if line < 1 || line > n {
		return false
	}
	b.ed.DeleteRange(LineRange(line, b.ed.LineMaxColumn(line)))
	b.MergeBreak(line)
	return true
}

// MergeBreak removes the line break that keeps the (now empty) line apart
// from its neighbour: the following one, or the previous one for the last
// line. A single line buffer has no break to remove.
func (b *Buffer) MergeBreak(line int) {
	n := b.ed.LineCount()
	switch {
	case n <= 1 || line < 1 || line > n:
	case line < n:
		b.ed.DeleteRange(Range{StartLine: line, StartColumn: b.ed.LineMaxColumn(line), EndLine: line + 1, EndColumn: 1})
	default:
		b.ed.DeleteRange(Range{StartLine: line - 1, StartColumn: b.ed.LineMaxColumn(line - 1), EndLine: line, EndColumn: b.ed.LineMaxColumn(line)})
	}
}

func (b *Buffer) ValueAt(r Range) string { return b.ed.ValueInRange(r) }

// LineText returns the content of line without its break.
func (b *Buffer) LineText(line int) string {
	if line < 1 || line > b.ed.LineCount() {
		return ""
	}
	return b.ed.ValueInRange(LineRange(line, b.ed.LineMaxColumn(line)))
}

// FullText is the whole document with lines joined by "\n".
func (b *Buffer) FullText() string { return b.ed.Value() }
