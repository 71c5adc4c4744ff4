package scheduler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(q *Queue) []Activation {
	var out []Activation
	for {
		a, ok := q.Pop()
		if !ok {
			return out
		}
		out = append(out, a)
	}
}

func TestQueue_FIFOWithAdjacentDedup(t *testing.T) {
	t.Parallel()
	var q Queue

	q.Enqueue(Activation{Task: 1, Port: 0})
	q.Enqueue(Activation{Task: 1, Port: 0})
	q.Enqueue(Activation{Task: 2, Port: 0})
	q.Enqueue(Activation{Task: 1, Port: 0})
	q.Enqueue(Activation{Task: 1, Port: 1})

	want := []Activation{{1, 0}, {2, 0}, {1, 0}, {1, 1}}
	if diff := cmp.Diff(want, drain(&q)); diff != "" {
		t.Errorf("queue order mismatch (-want +got):\n%s", diff)
	}
}

func TestQueue_DedupOnlyAgainstUndrained(t *testing.T) {
	t.Parallel()
	var q Queue
	q.Enqueue(Activation{Task: 4})
	_, ok := q.Pop()
	require.True(t, ok)

	q.Enqueue(Activation{Task: 4})

	assert.Equal(t, 1, q.Len())
}

func TestQueue_DropsWhenFull(t *testing.T) {
	t.Parallel()
	var q Queue
	for i := 0; i < Capacity; i++ {
		require.True(t, q.Enqueue(Activation{Task: uint8(i % 8), Port: uint8(i / 8)}))
	}

	assert.False(t, q.Enqueue(Activation{Task: 7, Port: 7}))
	assert.True(t, q.Enqueue(Activation{Task: 7, Port: 1}), "repeat of the newest entry is already pending")
	assert.Equal(t, Capacity, q.Len())
	assert.Equal(t, uint64(1), q.Dropped())

	first, _ := q.Pop()
	assert.Equal(t, Activation{Task: 0, Port: 0}, first)
}

func TestQueue_RetainAndReset(t *testing.T) {
	t.Parallel()
	var q Queue
	// Wrap the ring before filtering.
	for i := 0; i < Capacity-2; i++ {
		q.Enqueue(Activation{Task: uint8(i)})
	}
	for i := 0; i < Capacity-4; i++ {
		q.Pop()
	}
	for i := 0; i < 6; i++ {
		q.Enqueue(Activation{Task: uint8(100 + i)})
	}

	q.Retain(func(a Activation) bool { return a.Task%2 == 0 })

	want := []Activation{{Task: 12}, {Task: 100}, {Task: 102}, {Task: 104}}
	if diff := cmp.Diff(want, drain(&q)); diff != "" {
		t.Errorf("Retain() mismatch (-want +got):\n%s", diff)
	}

	q.Enqueue(Activation{Task: 1})
	q.Reset()
	assert.Equal(t, 0, q.Len())
}
