// Package replay applies a stream of line edits to a text buffer as a paced,
// character by character animation and records a snapshot of the buffer at
// every step boundary.
//
// One Session owns one buffer. Operations go through an unbounded Queue, are
// dequeued by a Dispatcher only while nothing is in flight and the
// Controller is not paused, and are animated by the Engine. The Engine pushes
// the buffer text onto the History whenever a boundary operation completes.
package replay

import "fmt"

type Kind int

const (
	Insert Kind = iota
	Delete
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "insert":
		*k = Insert
	case "delete":
		*k = Delete
	default:
		return fmt.Errorf("unknown operation kind %q", b)
	}
	return nil
}

// Operation is one line level edit. Line is 1-based; for Insert it may be one
// past the last line to append. StepBoundary marks the last operation of a
// step, after which a snapshot is captured.
type Operation struct {
	Kind         Kind   `json:"kind"`
	Line         int    `json:"line"`
	Text         string `json:"text,omitempty"`
	StepBoundary bool   `json:"stepBoundary"`
	Step         int    `json:"step"`
}

func (op Operation) String() string {
	return fmt.Sprintf("%s line=%d step=%d end=%t", op.Kind, op.Line, op.Step, op.StepBoundary)
}
