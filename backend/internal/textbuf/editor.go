package textbuf

// Position is a 1-based line/column pair. Columns count runes, so the last
// addressable column of a line is its rune length + 1.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type Range struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// LineRange covers the whole content of line, excluding its line break.
func LineRange(line, maxColumn int) Range {
	return Range{StartLine: line, StartColumn: 1, EndLine: line, EndColumn: maxColumn}
}

// Editor is the primitive surface of an editor widget. The replay engine only
// ever talks to a document through these calls, so a live rendering widget
// and the in-memory Document are interchangeable.
type Editor interface {
	InsertRange(line, column int, text string)
	DeleteRange(r Range)
	LineCount() int
	LineMaxColumn(line int) int
	ValueInRange(r Range) string
	Value() string
	SetCursor(p Position)
	Cursor() Position
	RevealLine(line int)
}

// Change describes one applied edit. Range is expressed in coordinates of the
// document before the edit. Version increases by one per edit.
type Change struct {
	Range   Range  `json:"range"`
	Text    string `json:"text"`
	Version uint64 `json:"version"`
}

// Observer receives every mutation of a Document, in order.
type Observer interface {
	EditApplied(c Change)
	CursorMoved(p Position)
	LineRevealed(line int)
}
