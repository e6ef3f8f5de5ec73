// Package recording holds the live capture state of one scope and the
// receiver the voice transport pushes audio into.
package recording

import (
	"errors"
	"sync"

	"github.com/Raikerian/go-discord-recorder/pkg/sparse"
)

// ErrNotIdle is returned by Begin when the state already has a session.
var ErrNotIdle = errors.New("recording state is not idle")

// ErrNotActive is returned by BeginStop when nothing is being captured.
var ErrNotActive = errors.New("recording state is not active")

// FrameSink accepts captured work without blocking. Both methods return
// false when the sink no longer accepts messages.
type FrameSink interface {
	EnqueueFrame(stream StreamID, frame sparse.Frame) bool
	UpdateIdentities(identities IdentityMap) bool
}

// Lifecycle is the capture phase of a State.
type Lifecycle int

const (
	Idle Lifecycle = iota
	Active
	Stopping
)

func (l Lifecycle) String() string {
	switch l {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// State is the lock-guarded capture state of one scope: lifecycle, tick
// counter, identity map and the sink frames are handed to. The lock is only
// held for short non-blocking sections.
type State struct {
	mu         sync.Mutex
	lifecycle  Lifecycle
	tick       uint64
	identities IdentityMap
	sink       FrameSink
}

// NewState returns an Idle state.
func NewState() *State {
	return &State{identities: IdentityMap{}}
}

// Begin moves Idle → Active with a fresh tick counter and identity map.
func (s *State) Begin(sink FrameSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lifecycle != Idle {
		return ErrNotIdle
	}
	s.lifecycle = Active
	s.tick = 0
	s.identities = IdentityMap{}
	s.sink = sink
	return nil
}

// StopSnapshot is what capture looked like at the moment it stopped.
type StopSnapshot struct {
	Ticks      uint64
	Identities IdentityMap
	Sink       FrameSink
}

// BeginStop moves Active → Stopping and detaches the sink, so no tick
// processed afterwards can reach it.
func (s *State) BeginStop() (StopSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lifecycle != Active {
		return StopSnapshot{}, ErrNotActive
	}
	snap := StopSnapshot{
		Ticks:      s.tick,
		Identities: s.identities.Clone(),
		Sink:       s.sink,
	}
	s.lifecycle = Stopping
	s.sink = nil
	return snap, nil
}

// Finish moves Stopping → Idle, discarding the session's state.
func (s *State) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lifecycle = Idle
	s.tick = 0
	s.identities = IdentityMap{}
	s.sink = nil
}

// Lifecycle returns the current phase.
func (s *State) Lifecycle() Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lifecycle
}

// Ticks returns the number of ticks claimed so far.
func (s *State) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Identities returns a copy of the identity map.
func (s *State) Identities() IdentityMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identities.Clone()
}

// setIdentity updates the map and, if it changed while Active, forwards a
// snapshot to the sink.
func (s *State) setIdentity(stream StreamID, speaker SpeakerID) (changed, forwarded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.identities.Set(stream, speaker) {
		return false, false
	}
	if s.lifecycle != Active || s.sink == nil {
		return true, false
	}
	return true, s.sink.UpdateIdentities(s.identities.Clone())
}

// withTick claims the next tick and runs fn with it while the lock is held.
// It returns false without claiming when the state is not Active.
func (s *State) withTick(fn func(tick uint64, sink FrameSink)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lifecycle != Active || s.sink == nil {
		return false
	}
	tick := s.tick
	s.tick++
	fn(tick, s.sink)
	return true
}
