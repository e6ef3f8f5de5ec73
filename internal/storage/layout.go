package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/Raikerian/go-discord-recorder/internal/recording"
)

// Session directory layout.
const (
	IdentitySnapshotFile = "identities.json"
	StreamsDir           = "streams"
	ChunkPrefix          = "chunk-"
	ChunkExt             = ".vtck"
)

// StreamDir is the directory holding one stream's chunk files.
func StreamDir(sessionDir string, stream recording.StreamID) string {
	return filepath.Join(sessionDir, StreamsDir, strconv.FormatUint(uint64(stream), 10))
}

// ChunkPath is the path of one chunk of a stream.
func ChunkPath(sessionDir string, stream recording.StreamID, index int) string {
	return filepath.Join(StreamDir(sessionDir, stream), fmt.Sprintf("%s%06d%s", ChunkPrefix, index, ChunkExt))
}

// ListStreams returns every stream in a session with its chunk files in
// write order. A session without a streams directory has no streams.
func ListStreams(sessionDir string) (map[recording.StreamID][]string, error) {
	root := filepath.Join(sessionDir, StreamsDir)
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return map[recording.StreamID][]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	streams := make(map[recording.StreamID][]string)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.ParseUint(e.Name(), 10, 32)
		if err != nil {
			continue
		}

		chunks, err := listChunks(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		if len(chunks) > 0 {
			streams[recording.StreamID(id)] = chunks
		}
	}
	return streams, nil
}

func listChunks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var chunks []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, ChunkPrefix) || !strings.HasSuffix(name, ChunkExt) {
			continue
		}
		chunks = append(chunks, filepath.Join(dir, name))
	}
	slices.Sort(chunks)
	return chunks, nil
}
