package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Raikerian/go-discord-recorder/internal/recording"
)

// SnapshotVersion is the identity snapshot format written by this package.
const SnapshotVersion = 1

// ErrSnapshotVersion is returned when a snapshot has an unknown version.
var ErrSnapshotVersion = errors.New("unsupported identity snapshot version")

// IdentitySnapshot is the persisted form of the identity map.
type IdentitySnapshot struct {
	Version   int                   `json:"version"`
	UpdatedAt time.Time             `json:"updated_at"`
	Streams   recording.IdentityMap `json:"streams"`
}

// WriteIdentitySnapshot replaces the session's snapshot with identities.
// Readers see either the old or the new file, never a partial one.
func WriteIdentitySnapshot(sessionDir string, identities recording.IdentityMap) error {
	data, err := json.MarshalIndent(IdentitySnapshot{
		Version:   SnapshotVersion,
		UpdatedAt: time.Now().UTC(),
		Streams:   identities.Clone(),
	}, "", "  ")
	if err != nil {
		return err
	}

	return WriteFileAtomic(filepath.Join(sessionDir, IdentitySnapshotFile), data)
}

// LoadIdentitySnapshot reads the session's snapshot. A missing file is
// returned as an error satisfying errors.Is(err, os.ErrNotExist).
func LoadIdentitySnapshot(sessionDir string) (recording.IdentityMap, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir, IdentitySnapshotFile))
	if err != nil {
		return nil, err
	}

	var snap IdentitySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode identity snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrSnapshotVersion, snap.Version)
	}
	if snap.Streams == nil {
		snap.Streams = recording.IdentityMap{}
	}
	return snap.Streams, nil
}

// WriteFileAtomic writes data to a temp file next to path, syncs it and
// renames it over path.
func WriteFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteJSONAtomic marshals v and writes it to path atomically.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}
