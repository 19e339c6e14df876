package delta

type Kind string

const (
	KindRetain Kind = "retain"
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
)

// Op counts are in runes, not bytes.
type Op struct {
	Kind  Kind   `json:"kind"`            // "retain" / "insert" / "delete"
	Count int    `json:"count,omitempty"` // retain/delete length
	Text  string `json:"text,omitempty"`  // inserted text
}

type Delta []Op

// "ops":[{"kind":"retain","count":5},{"kind":"insert","text":"Hello"}]

// InsertAt builds the delta that inserts text at rune offset pos.
func InsertAt(pos int, text string) Delta {
	d := make(Delta, 0, 2)
	if pos > 0 {
		d = append(d, Op{Kind: KindRetain, Count: pos})
	}
	return append(d, Op{Kind: KindInsert, Text: text})
}

// DeleteAt builds the delta that removes count runes starting at pos.
func DeleteAt(pos, count int) Delta {
	d := make(Delta, 0, 2)
	if pos > 0 {
		d = append(d, Op{Kind: KindRetain, Count: pos})
	}
	return append(d, Op{Kind: KindDelete, Count: count})
}

// Len returns how many runes the delta adds (positive) or removes (negative).
func (d Delta) Len() int {
	n := 0
	for _, op := range d {
		switch op.Kind {
		case KindInsert:
			n += len([]rune(op.Text))
		case KindDelete:
			n -= op.Count
		}
	}
	return n
}
