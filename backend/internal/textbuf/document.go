package textbuf

import (
	"strings"
	"sync"

	"replayServer/backend/internal/ot/delta"
)

// Document is an in-memory Editor. Content lives in a PieceTable; ranges are
// translated to rune offsets and applied as deltas.
type Document struct {
	mu       sync.RWMutex
	pt       *PieceTable
	lines    []string // split cache, nil when stale
	cursor   Position
	version  uint64 // bumped by every edit
	observer Observer
}

func NewDocument(initial string) *Document {
	return &Document{
		pt:     NewPieceTable(initial),
		cursor: Position{Line: 1, Column: 1},
	}
}

// SetObserver installs o; nil removes it. Observer callbacks run outside the
// document lock.
func (d *Document) SetObserver(o Observer) {
	d.mu.Lock()
	d.observer = o
	d.mu.Unlock()
}

func (d *Document) InsertRange(line, column int, text string) {
	d.mu.Lock()
	pos := d.validate(Position{Line: line, Column: column})
	_ = d.pt.Apply(delta.InsertAt(d.offsetOf(pos), text))
	d.lines = nil
	d.version++
	version := d.version
	obs := d.observer
	d.mu.Unlock()

	if obs != nil {
		obs.EditApplied(Change{
			Range:   Range{StartLine: pos.Line, StartColumn: pos.Column, EndLine: pos.Line, EndColumn: pos.Column},
			Text:    text,
			Version: version,
		})
	}
}

func (d *Document) DeleteRange(r Range) {
	d.mu.Lock()
	start, end := d.ordered(r)
	from, to := d.offsetOf(start), d.offsetOf(end)
	if to <= from {
		d.mu.Unlock()
		return
	}
	_ = d.pt.Apply(delta.DeleteAt(from, to-from))
	d.lines = nil
	d.version++
	version := d.version
	obs := d.observer
	d.mu.Unlock()

	if obs != nil {
		obs.EditApplied(Change{
			Range:   Range{StartLine: start.Line, StartColumn: start.Column, EndLine: end.Line, EndColumn: end.Column},
			Version: version,
		})
	}
}

func (d *Document) LineCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.splitLines())
}

func (d *Document) LineMaxColumn(line int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	lines := d.splitLines()
	if line < 1 || line > len(lines) {
		return 1
	}
	return len([]rune(lines[line-1])) + 1
}

func (d *Document) ValueInRange(r Range) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	start, end := d.ordered(r)
	from, to := d.offsetOf(start), d.offsetOf(end)
	if to <= from {
		return ""
	}
	return string([]rune(d.pt.String())[from:to])
}

func (d *Document) Value() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pt.String()
}

// VersionedValue returns the text together with the version of the last edit
// it contains.
func (d *Document) VersionedValue() (string, uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pt.String(), d.version
}

func (d *Document) SetCursor(p Position) {
	d.mu.Lock()
	d.cursor = d.validate(p)
	cur := d.cursor
	obs := d.observer
	d.mu.Unlock()

	if obs != nil {
		obs.CursorMoved(cur)
	}
}

func (d *Document) Cursor() Position {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cursor
}

func (d *Document) RevealLine(line int) {
	d.mu.RLock()
	obs := d.observer
	d.mu.RUnlock()
	if obs != nil {
		obs.LineRevealed(line)
	}
}

// splitLines must be called with d.mu held for writing.
func (d *Document) splitLines() []string {
	if d.lines == nil {
		d.lines = strings.Split(d.pt.String(), "\n")
	}
	return d.lines
}

// validate clamps p into the document, the way an editor widget does.
func (d *Document) validate(p Position) Position {
	lines := d.splitLines()
	if p.Line < 1 {
		p.Line = 1
	}
	if p.Line > len(lines) {
		p.Line = len(lines)
	}
	maxCol := len([]rune(lines[p.Line-1])) + 1
	if p.Column < 1 {
		p.Column = 1
	}
	if p.Column > maxCol {
		p.Column = maxCol
	}
	return p
}

func (d *Document) ordered(r Range) (Position, Position) {
	start := d.validate(Position{Line: r.StartLine, Column: r.StartColumn})
	end := d.validate(Position{Line: r.EndLine, Column: r.EndColumn})
	if end.Line < start.Line || (end.Line == start.Line && end.Column < start.Column) {
		start, end = end, start
	}
	return start, end
}

func (d *Document) offsetOf(p Position) int {
	lines := d.splitLines()
	off := 0
	for i := 0; i < p.Line-1; i++ {
		off += len([]rune(lines[i])) + 1
	}
	return off + p.Column - 1
}
