package textbuf

import (
	"strings"

	"replayServer/backend/internal/ot/delta"
)

/*
Layout example

Initial content "def f():":

- original = "def f():"
- add      = ""
- pieces   = [ (orig, offset=0, length=8) ]

Typing "\n    return 1" one rune at a time at offset 8 appends every rune to
add and grows the tail piece:

	[
	  (orig, offset=0, length=8),   // "def f():"
	  (add,  offset=0, length=13),  // "\n    return 1"
	]
*/

type bufferKind int

const (
	bufOriginal bufferKind = iota
	bufAdd
)

type piece struct {
	buf    bufferKind
	offset int
	length int
}

type PieceTable struct {
	original []rune
	add      []rune
	pieces   []piece
}

func NewPieceTable(initial string) *PieceTable {
	r := []rune(initial)
	pt := &PieceTable{original: r}
	if len(r) > 0 {
		pt.pieces = []piece{{buf: bufOriginal, offset: 0, length: len(r)}}
	}
	return pt
}

// Len is the document length in runes.
func (pt *PieceTable) Len() int {
	n := 0
	for _, p := range pt.pieces {
		n += p.length
	}
	return n
}

func (pt *PieceTable) String() string {
	var sb strings.Builder
	sb.Grow(pt.Len())
	for _, p := range pt.pieces {
		sb.WriteString(string(pt.source(p.buf)[p.offset : p.offset+p.length]))
	}
	return sb.String()
}

func (pt *PieceTable) source(kind bufferKind) []rune {
	if kind == bufAdd {
		return pt.add
	}
	return pt.original
}

// Apply walks the delta left to right. Retains past the end and deletes
// beyond the last rune are truncated rather than rejected.
func (pt *PieceTable) Apply(d delta.Delta) error {
	pos := 0
	for _, op := range d {
		switch op.Kind {
		case delta.KindRetain:
			pos += op.Count
			if n := pt.Len(); pos > n {
				pos = n
			}
		case delta.KindInsert:
			pos += pt.insert(pos, []rune(op.Text))
		case delta.KindDelete:
			pt.delete(pos, op.Count)
		}
	}
	return nil
}

func (pt *PieceTable) insert(pos int, text []rune) int {
	if len(text) == 0 {
		return 0
	}
	start := len(pt.add)
	pt.add = append(pt.add, text...)
	added := piece{buf: bufAdd, offset: start, length: len(text)}

	idx, offset := pt.locate(pos)

	// Typing at the end of the previous add piece only needs to grow it.
	if offset == 0 && idx > 0 {
		prev := &pt.pieces[idx-1]
		if prev.buf == bufAdd && prev.offset+prev.length == start {
			prev.length += len(text)
			return len(text)
		}
	}

	if idx >= len(pt.pieces) {
		pt.pieces = append(pt.pieces, added)
		return len(text)
	}

	cur := pt.pieces[idx]
	left := piece{buf: cur.buf, offset: cur.offset, length: offset}
	right := piece{buf: cur.buf, offset: cur.offset + offset, length: cur.length - offset}

	next := make([]piece, 0, len(pt.pieces)+2)
	next = append(next, pt.pieces[:idx]...)
	if left.length > 0 {
		next = append(next, left)
	}
	next = append(next, added)
	if right.length > 0 {
		next = append(next, right)
	}
	next = append(next, pt.pieces[idx+1:]...)
	pt.pieces = next
	return len(text)
}

func (pt *PieceTable) delete(pos, count int) {
	remain := count
	idx, offset := pt.locate(pos)

	for remain > 0 && idx < len(pt.pieces) {
		cur := pt.pieces[idx]
		can := cur.length - offset
		if can <= 0 {
			idx++
			offset = 0
			continue
		}
		take := remain
		if take > can {
			take = can
		}

		if offset == 0 && take == cur.length {
			// whole piece goes; idx now points at the following piece
			pt.pieces = append(pt.pieces[:idx], pt.pieces[idx+1:]...)
		} else {
			leftLen := offset
			rightLen := cur.length - offset - take

			next := make([]piece, 0, len(pt.pieces)+1)
			next = append(next, pt.pieces[:idx]...)
			if leftLen > 0 {
				next = append(next, piece{buf: cur.buf, offset: cur.offset, length: leftLen})
			}
			if rightLen > 0 {
				next = append(next, piece{buf: cur.buf, offset: cur.offset + offset + take, length: rightLen})
			}
			next = append(next, pt.pieces[idx+1:]...)
			pt.pieces = next
		}
		remain -= take
	}
}

// locate maps a logical position to a piece index and the offset inside it.
func (pt *PieceTable) locate(pos int) (idx int, offset int) {
	cur := 0
	for i, p := range pt.pieces {
		if pos < cur+p.length {
			return i, pos - cur
		}
		cur += p.length
	}
	return len(pt.pieces), 0
}
