package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	_, ok := q.Pop()
	assert.False(t, ok)

	q.Push(Operation{Step: 1}, Operation{Step: 2})
	q.Push(Operation{Step: 3})
	assert.Equal(t, 3, q.Len())

	for want := 1; want <= 3; want++ {
		op, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, op.Step)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_OrderSurvivesCompaction(t *testing.T) {
	q := NewQueue()
	next := 0
	popped := 0
	for round := 0; round < 10; round++ {
		for i := 0; i < 50; i++ {
			q.Push(Operation{Step: next})
			next++
		}
		for i := 0; i < 40; i++ {
			op, ok := q.Pop()
			require.True(t, ok)
			require.Equal(t, popped, op.Step)
			popped++
		}
	}
	pending := q.Pending()
	require.Len(t, pending, next-popped)
	for i, op := range pending {
		assert.Equal(t, popped+i, op.Step)
	}
}
