package logpipe

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestMPSCQueueFIFO(t *testing.T) {
	q := NewMPSCQueue()
	assert.Equal(t, 0, q.Len())

	_, ok := q.TryDequeue()
	assert.False(t, ok, "empty queue yields nothing")

	for i := 0; i < 5; i++ {
		require.True(t, q.Enqueue(NewRecord(LevelInfo, "q", fmt.Sprint(i), nil)))
	}
	assert.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprint(i), r.Message)
	}
	assert.Equal(t, 0, q.Len())
}

func TestMPSCQueueClose(t *testing.T) {
	q := NewMPSCQueue()
	q.Enqueue(NewRecord(LevelInfo, "q", "pending", nil))

	q.Close()
	assert.True(t, q.Closed())
	assert.Equal(t, 0, q.Len(), "close releases pending records")
	assert.False(t, q.Enqueue(NewRecord(LevelInfo, "q", "late", nil)))

	// Second close is a no-op
	q.Close()
}

// TestMPSCQueueConcurrentProducers checks per-producer ordering while the consumer runs
func TestMPSCQueueConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 1000

	q := NewMPSCQueue()
	var g errgroup.Group
	for p := 0; p < producers; p++ {
		g.Go(func() error {
			for i := 0; i < perProducer; i++ {
				q.Enqueue(NewRecord(LevelInfo, fmt.Sprintf("p%d", p), fmt.Sprint(i), Properties{"seq": i}))
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	lastSeq := make(map[string]int, producers)
	received := 0
	producing := true
	for producing || q.Len() > 0 {
		select {
		case err := <-done:
			require.NoError(t, err)
			producing = false
		default:
		}
		r, ok := q.TryDequeue()
		if !ok {
			continue
		}
		seq := r.Properties["seq"].(int)
		if last, seen := lastSeq[r.Tag]; seen {
			require.Greater(t, seq, last, "producer %s out of order", r.Tag)
		}
		lastSeq[r.Tag] = seq
		received++
	}

	assert.Equal(t, producers*perProducer, received)
	for p := 0; p < producers; p++ {
		assert.Equal(t, perProducer-1, lastSeq[fmt.Sprintf("p%d", p)])
	}
}
