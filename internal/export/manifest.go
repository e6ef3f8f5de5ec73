package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Directory and file names under a session's export directory.
const (
	Dir          = "export"
	SpeakersDir  = "speakers"
	ChunksDir    = "chunks"
	MixedFile    = "mixed.wav"
	ManifestFile = "manifest.json"
)

// ManifestVersion is the manifest format written by this package.
const ManifestVersion = 1

// ErrManifestVersion is returned for a manifest written by a newer format.
var ErrManifestVersion = errors.New("export: unsupported manifest version")

// Manifest describes everything an export produced. It is the contract the
// transcription step reads.
type Manifest struct {
	Version        int            `json:"version"`
	SessionDir     string         `json:"session_dir"`
	CreatedAt      time.Time      `json:"created_at"`
	SampleRate     int            `json:"sample_rate"`
	ChunkRate      int            `json:"chunk_sample_rate"`
	FirstTick      uint64         `json:"first_tick"`
	LastTick       uint64         `json:"last_tick"`
	Mixed          string         `json:"mixed,omitempty"`
	Speakers       []SpeakerEntry `json:"speakers"`
	Chunks         []ChunkEntry   `json:"chunks"`
	SilentSpeakers []string       `json:"silent_speakers,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// SpeakerEntry is one exported track.
type SpeakerEntry struct {
	Name        string   `json:"name"`
	SpeakerID   uint64   `json:"speaker_id,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Streams     []uint32 `json:"streams"`
	FirstTick   uint64   `json:"first_tick"`
	LastTick    uint64   `json:"last_tick"`
	Frames      int      `json:"frames"`
	File        string   `json:"file"`
	Silent      bool     `json:"silent,omitempty"`
}

// ChunkEntry is one transcription chunk. StartSecs and EndSecs are relative
// to the speaker's first tick; add OffsetSecs for session time.
type ChunkEntry struct {
	Speaker    string  `json:"speaker"`
	Index      int     `json:"index"`
	File       string  `json:"file"`
	StartTick  uint64  `json:"start_tick"`
	EndTick    uint64  `json:"end_tick"`
	StartSecs  float64 `json:"start_secs"`
	EndSecs    float64 `json:"end_secs"`
	OffsetSecs float64 `json:"offset_secs"`
}

// AbsoluteStart is the chunk start in session seconds.
func (c ChunkEntry) AbsoluteStart() float64 {
	return c.OffsetSecs + c.StartSecs
}

// LoadManifest reads the manifest of a previous export of sessionDir. A
// session that was never exported yields an error wrapping os.ErrNotExist.
// SessionDir is rebased onto sessionDir so a moved session still resolves.
func LoadManifest(sessionDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir, Dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: %d", ErrManifestVersion, m.Version)
	}
	m.SessionDir = sessionDir
	return &m, nil
}

// ChunkPath resolves a chunk's file against the export directory.
func (m *Manifest) ChunkPath(c ChunkEntry) string {
	return filepath.Join(m.SessionDir, Dir, c.File)
}

// Speaker returns the entry for the track called name.
func (m *Manifest) Speaker(name string) (SpeakerEntry, bool) {
	for _, s := range m.Speakers {
		if s.Name == name {
			return s, true
		}
	}
	return SpeakerEntry{}, false
}

// Label is the name shown for the speaker in reports and transcripts.
func (s SpeakerEntry) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}
