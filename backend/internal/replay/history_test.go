package replay

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_DiffFor(t *testing.T) {
	h := NewHistory()
	h.Append(0, "a")
	h.Append(0, "a\nb")
	h.Append(4, "b")

	d, err := h.DiffFor(0)
	require.NoError(t, err)
	assert.Equal(t, Diff{Step: 0, Before: "", After: "a"}, d)

	d, err = h.DiffFor(2)
	require.NoError(t, err)
	assert.Equal(t, "a\nb", d.Before)
	assert.Equal(t, "b", d.After)

	for _, step := range []int{-1, 3, 100} {
		_, err = h.DiffFor(step)
		assert.True(t, errors.Is(err, ErrStepNotRecorded), "step %d", step)
	}
}

func TestHistory_AppendIndexesInOrder(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 5; i++ {
		snap := h.Append(7, strings.Repeat("x", i))
		assert.Equal(t, i, snap.Index)
		assert.Equal(t, 7, snap.Step)
		assert.False(t, snap.CapturedAt.IsZero())
	}
	all := h.All()
	require.Len(t, all, 5)
	all[0].Text = "mutated"
	first, _ := h.At(0)
	assert.Equal(t, "", first.Text)

	_, ok := h.At(5)
	assert.False(t, ok)
}

func TestHistory_UnifiedDiff(t *testing.T) {
	h := NewHistory()
	h.Append(0, "def f():\n    return 1\n")
	h.Append(1, "def f():\n    return 2\n")

	out, err := h.UnifiedDiff(1)
	require.NoError(t, err)
	assert.Contains(t, out, "--- step-0")
	assert.Contains(t, out, "+++ step-1")
	assert.Contains(t, out, "-    return 1")
	assert.Contains(t, out, "+    return 2")
	assert.Contains(t, out, " def f():")

	first, err := h.UnifiedDiff(0)
	require.NoError(t, err)
	assert.Contains(t, first, "+def f():")

	_, err = h.UnifiedDiff(9)
	assert.ErrorIs(t, err, ErrStepNotRecorded)
}

func TestHistory_UnifiedDiffConcurrentReaders(t *testing.T) {
	h := NewHistory()
	h.Append(0, "one\n")
	h.Append(1, "one\ntwo\n")

	want, err := h.UnifiedDiff(1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := h.UnifiedDiff(1)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
			h.Append(2, "noise")
		}()
	}
	wg.Wait()
	assert.Equal(t, 18, h.Len())
}
