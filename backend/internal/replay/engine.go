package replay

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"

	"replayServer/backend/internal/textbuf"
)

// Result describes how one operation was applied.
type Result struct {
	Op       Operation
	Line     int       // line actually targeted after clamping
	Clamped  bool      // insert line was outside [1, lineCount+1]
	Noop     bool      // delete targeted a line that does not exist
	Snapshot *Snapshot // set when the operation closed a step
}

// Engine animates operations onto a buffer. charDelay is the gap between two
// animation steps; zero applies every operation at once. It is not safe for concurrent
// Apply calls; the Dispatcher guarantees there is only ever one.
type Engine struct {
	buf       *textbuf.Buffer
	history   *History
	charDelay time.Duration
}

func NewEngine(buf *textbuf.Buffer, history *History, charDelay time.Duration) *Engine {
	if charDelay < 0 {
		charDelay = 0
	}
	return &Engine{buf: buf, history: history, charDelay: charDelay}
}

// Apply runs op to completion. Cancelling ctx does not abandon the operation:
// the remaining characters are applied without pacing so the buffer is never
// left half edited.
func (e *Engine) Apply(ctx context.Context, op Operation) Result {
	res := Result{Op: op, Line: op.Line}

	var anim animation
	switch op.Kind {
	case Insert:
		res.Line, res.Clamped = e.buf.ClampInsertLine(op.Line)
		if res.Clamped {
			log.Printf("replay: insert line %d out of range, clamped to %d (step=%d)", op.Line, res.Line, op.Step)
		}
		anim = newInsertAnimation(e.buf, res.Line, op.Text)
	case Delete:
		if op.Line < 1 || op.Line > e.buf.LineCount() {
			log.Printf("replay: delete line %d out of range (lines=%d step=%d), skipped", op.Line, e.buf.LineCount(), op.Step)
			res.Noop = true
		} else {
			anim = newDeleteAnimation(e.buf, op.Line)
		}
	default:
		log.Printf("replay: unknown operation kind %d (step=%d), skipped", int(op.Kind), op.Step)
		res.Noop = true
	}

	if anim != nil {
		e.run(ctx, anim)
	}

	// out-of-range deletes still close their step so indices stay aligned
	if op.StepBoundary && e.history != nil {
		snap := e.history.Append(op.Step, e.buf.FullText())
		res.Snapshot = &snap
	}
	return res
}

func (e *Engine) run(ctx context.Context, anim animation) {
	limiter := rate.NewLimiter(rate.Every(e.charDelay), 1)
	limiter.Allow() // spend the initial token so the first gap is paced too

	paced := e.charDelay > 0
	for !anim.step() {
		if !paced {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			paced = false
		}
	}
}
