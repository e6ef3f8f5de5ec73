package voice

import (
	"context"
	"sync"
	"time"

	"github.com/Raikerian/go-discord-recorder/internal/recording"
	"github.com/Raikerian/go-discord-recorder/pkg/audio"
)

// DefaultJitterFrames is how many decoded frames a single SSRC may queue
// before the oldest is dropped.
const DefaultJitterFrames = 8

// TickClock turns bursty per-SSRC packet arrival into one batch per 20 ms
// instant. Packets are queued per SSRC and each tick takes at most one frame
// from every queue, so a stream that delivers late catches up without ever
// contributing two frames to the same tick.
type TickClock struct {
	mu      sync.Mutex
	depth   int
	queues  map[recording.StreamID][][]int16
	dropped int
}

// NewTickClock creates a clock whose per-SSRC queues hold at most depth
// frames. A non-positive depth falls back to DefaultJitterFrames.
func NewTickClock(depth int) *TickClock {
	if depth <= 0 {
		depth = DefaultJitterFrames
	}
	return &TickClock{
		depth:  depth,
		queues: make(map[recording.StreamID][][]int16),
	}
}

// Push queues one decoded frame for ssrc. When the queue is full the oldest
// frame is discarded and Push reports false.
func (c *TickClock) Push(ssrc recording.StreamID, pcm []int16) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := append(c.queues[ssrc], pcm)
	ok := true
	if len(q) > c.depth {
		q = q[1:]
		c.dropped++
		ok = false
	}
	c.queues[ssrc] = q
	return ok
}

// Tick pops one frame per queued SSRC. The batch is empty when nobody spoke.
func (c *TickClock) Tick() map[recording.StreamID][]int16 {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch := make(map[recording.StreamID][]int16, len(c.queues))
	for ssrc, q := range c.queues {
		batch[ssrc] = q[0]
		if len(q) == 1 {
			delete(c.queues, ssrc)
			continue
		}
		c.queues[ssrc] = q[1:]
	}
	return batch
}

// Forget drops anything queued for ssrc.
func (c *TickClock) Forget(ssrc recording.StreamID) {
	c.mu.Lock()
	delete(c.queues, ssrc)
	c.mu.Unlock()
}

// Dropped returns how many frames overflowed a queue so far.
func (c *TickClock) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Run calls fn with a batch every audio.TickDuration until ctx is done.
// Empty batches are delivered too, so silence still advances the timeline.
func (c *TickClock) Run(ctx context.Context, fn func(map[recording.StreamID][]int16)) {
	ticker := time.NewTicker(audio.TickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(c.Tick())
		}
	}
}
