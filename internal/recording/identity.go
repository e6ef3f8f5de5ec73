package recording

import (
	"maps"
	"slices"
)

// StreamID is the transport-level audio stream tag (RTP SSRC). It is
// reassigned whenever a client reconnects.
type StreamID uint32

// SpeakerID is the stable platform identity of a participant.
type SpeakerID uint64

// IdentityMap resolves streams to speakers. Several streams may resolve to
// the same speaker over a session.
type IdentityMap map[StreamID]SpeakerID

// Set records stream → speaker and reports whether the map changed.
func (m IdentityMap) Set(stream StreamID, speaker SpeakerID) bool {
	if cur, ok := m[stream]; ok && cur == speaker {
		return false
	}
	m[stream] = speaker
	return true
}

// Clone returns an independent copy.
func (m IdentityMap) Clone() IdentityMap {
	if m == nil {
		return IdentityMap{}
	}
	return maps.Clone(m)
}

// GroupBySpeaker inverts the map. Each speaker's stream list is sorted
// ascending.
func (m IdentityMap) GroupBySpeaker() map[SpeakerID][]StreamID {
	groups := make(map[SpeakerID][]StreamID)
	for stream, speaker := range m {
		groups[speaker] = append(groups[speaker], stream)
	}
	for _, streams := range groups {
		slices.Sort(streams)
	}
	return groups
}

// Speakers returns the distinct speakers in ascending order.
func (m IdentityMap) Speakers() []SpeakerID {
	seen := make(map[SpeakerID]struct{}, len(m))
	for _, speaker := range m {
		seen[speaker] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}
