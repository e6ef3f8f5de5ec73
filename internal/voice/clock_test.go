package voice_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-discord-recorder/internal/recording"
	"github.com/Raikerian/go-discord-recorder/internal/voice"
)

func frame(v int16) []int16 {
	return []int16{v, v}
}

func TestTickClock_OneFramePerStreamPerTick(t *testing.T) {
	c := voice.NewTickClock(4)
	c.Push(1, frame(10))
	c.Push(1, frame(11))
	c.Push(2, frame(20))

	first := c.Tick()
	assert.Equal(t, map[recording.StreamID][]int16{1: frame(10), 2: frame(20)}, first)

	second := c.Tick()
	assert.Equal(t, map[recording.StreamID][]int16{1: frame(11)}, second)

	assert.Empty(t, c.Tick())
}

func TestTickClock_DropsOldestWhenFull(t *testing.T) {
	c := voice.NewTickClock(2)
	assert.True(t, c.Push(7, frame(1)))
	assert.True(t, c.Push(7, frame(2)))
	assert.False(t, c.Push(7, frame(3)))
	assert.Equal(t, 1, c.Dropped())

	assert.Equal(t, frame(2), c.Tick()[7])
	assert.Equal(t, frame(3), c.Tick()[7])
}

func TestTickClock_Forget(t *testing.T) {
	c := voice.NewTickClock(0)
	c.Push(3, frame(1))
	c.Push(4, frame(2))
	c.Forget(3)

	assert.Equal(t, map[recording.StreamID][]int16{4: frame(2)}, c.Tick())
}

func TestTickClock_RunDeliversEmptyBatches(t *testing.T) {
	c := voice.NewTickClock(0)
	c.Push(9, frame(5))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		batches []map[recording.StreamID][]int16
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, func(b map[recording.StreamID][]int16) {
			mu.Lock()
			batches = append(batches, b)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) >= 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, frame(5), batches[0][9])
	assert.Empty(t, batches[1])
	assert.Empty(t, batches[2])
}
