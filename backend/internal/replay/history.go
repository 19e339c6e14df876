package replay

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/singleflight"
)

var ErrStepNotRecorded = errors.New("STEP_NOT_RECORDED")

// Snapshot is the full buffer text right after a boundary operation.
// Index is the position in the history; Step is the producer's step number.
type Snapshot struct {
	Index      int       `json:"index"`
	Step       int       `json:"step"`
	Text       string    `json:"text"`
	CapturedAt time.Time `json:"capturedAt"`
}

type Diff struct {
	Step   int    `json:"step"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// History is append-only. Entries are never reordered, rewritten or pruned,
// so anything derived from an index can be cached forever.
type History struct {
	mu      sync.RWMutex
	snaps   []Snapshot
	unified map[int]string
	group   singleflight.Group
}

func NewHistory() *History {
	return &History{unified: make(map[int]string)}
}

func (h *History) Append(step int, text string) Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	snap := Snapshot{Index: len(h.snaps), Step: step, Text: text, CapturedAt: time.Now()}
	h.snaps = append(h.snaps, snap)
	return snap
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.snaps)
}

func (h *History) At(i int) (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if i < 0 || i >= len(h.snaps) {
		return Snapshot{}, false
	}
	return h.snaps[i], true
}

func (h *History) All() []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Snapshot(nil), h.snaps...)
}

// DiffFor returns the text before and after step. Step 0 starts from the
// empty document.
func (h *History) DiffFor(step int) (Diff, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if step < 0 || step >= len(h.snaps) {
		return Diff{}, fmt.Errorf("step %d of %d: %w", step, len(h.snaps), ErrStepNotRecorded)
	}
	d := Diff{Step: step, After: h.snaps[step].Text}
	if step > 0 {
		d.Before = h.snaps[step-1].Text
	}
	return d, nil
}

// UnifiedDiff renders DiffFor(step) as a unified diff. Concurrent viewers
// asking for the same step share one rendering.
func (h *History) UnifiedDiff(step int) (string, error) {
	h.mu.RLock()
	cached, ok := h.unified[step]
	h.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := h.group.Do(strconv.Itoa(step), func() (interface{}, error) {
		d, err := h.DiffFor(step)
		if err != nil {
			return "", err
		}
		out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(d.Before),
			B:        difflib.SplitLines(d.After),
			FromFile: fmt.Sprintf("step-%d", step-1),
			ToFile:   fmt.Sprintf("step-%d", step),
			Context:  3,
		})
		if err != nil {
			return "", err
		}
		h.mu.Lock()
		h.unified[step] = out
		h.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
