package storage_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-discord-recorder/internal/storage"
)

func TestQueue_PushDrainPreservesOrder(t *testing.T) {
	q := storage.NewQueue[int]()
	for i := range 5 {
		require.True(t, q.Push(i))
	}
	assert.Equal(t, 5, q.Len())

	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("queue not ready after push")
	}

	items, closed := q.Drain()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, items)
	assert.False(t, closed)
	assert.Zero(t, q.Len())
}

func TestQueue_CloseRejectsPushAndKeepsItems(t *testing.T) {
	q := storage.NewQueue[string]()
	require.True(t, q.Push("a"))
	q.Close()
	q.Close()

	assert.False(t, q.Push("b"))

	items, closed := q.Drain()
	assert.Equal(t, []string{"a"}, items)
	assert.True(t, closed)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := storage.NewQueue[int]()

	const producers, perProducer = 8, 500
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				q.Push(p*perProducer + i)
			}
		}()
	}

	got := make(map[int]bool)
	lastByProducer := make(map[int]int)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		q.Close()
		close(done)
	}()

	for {
		<-q.Ready()
		items, closed := q.Drain()
		for _, v := range items {
			p := v / perProducer
			if last, ok := lastByProducer[p]; ok {
				require.Greater(t, v, last, "producer order must be preserved")
			}
			lastByProducer[p] = v
			got[v] = true
		}
		if closed {
			break
		}
	}
	<-done

	assert.Len(t, got, producers*perProducer)
}
