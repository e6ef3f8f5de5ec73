// Package names stores the display name each user wants to appear under in
// exports and transcripts, per guild.
package names

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/diamondburned/arikawa/v3/discord"
	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"github.com/Raikerian/go-discord-recorder/internal/recording"
)

// MaxNameLength bounds a display name in characters.
const MaxNameLength = 64

// ErrInvalidName is returned for empty or overlong names.
var ErrInvalidName = errors.New("display name must be 1 to 64 characters")

// Store reads and writes display names.
type Store interface {
	Get(guild discord.GuildID, user discord.UserID) (string, bool, error)
	Set(guild discord.GuildID, user discord.UserID, name string) error
}

type key struct {
	guild discord.GuildID
	user  discord.UserID
}

type entry struct {
	name string
	ok   bool
}

// fileData is the on-disk layout.
type fileData struct {
	Guilds map[uint64]map[uint64]string `yaml:"guilds"`
}

// FileStore keeps names in a YAML file. Lookups are served from an LRU
// cache; misses re-read the file so external edits are picked up.
type FileStore struct {
	path  string
	mu    sync.Mutex
	cache *lru.Cache[key, entry]
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store backed by path. The file need not exist.
func NewFileStore(path string, cacheSize int) (*FileStore, error) {
	cache, err := lru.New[key, entry](cacheSize)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, cache: cache}, nil
}

// Get returns the user's name in guild, if one was set.
func (s *FileStore) Get(guild discord.GuildID, user discord.UserID) (string, bool, error) {
	k := key{guild: guild, user: user}
	if e, ok := s.cache.Get(k); ok {
		return e.name, e.ok, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return "", false, err
	}
	name, ok := data.Guilds[uint64(guild)][uint64(user)]
	s.cache.Add(k, entry{name: name, ok: ok})
	return name, ok, nil
}

// Set stores name for the user in guild.
func (s *FileStore) Set(guild discord.GuildID, user discord.UserID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	if data.Guilds[uint64(guild)] == nil {
		data.Guilds[uint64(guild)] = make(map[uint64]string)
	}
	data.Guilds[uint64(guild)][uint64(user)] = name

	if err := s.save(data); err != nil {
		return err
	}
	s.cache.Add(key{guild: guild, user: user}, entry{name: name, ok: true})
	return nil
}

// ForGuild binds the store to one guild for name resolution during export.
// Lookup failures resolve to no name.
func (s *FileStore) ForGuild(guild discord.GuildID) GuildNames {
	return ForGuild(s, guild)
}

func (s *FileStore) load() (*fileData, error) {
	data := &fileData{}
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		data.Guilds = make(map[uint64]map[uint64]string)
		return data, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("parse names file %s: %w", s.path, err)
	}
	if data.Guilds == nil {
		data.Guilds = make(map[uint64]map[uint64]string)
	}
	return data, nil
}

func (s *FileStore) save(data *fileData) error {
	raw, err := yaml.Marshal(data)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// ForGuild binds any store to one guild.
func ForGuild(store Store, guild discord.GuildID) GuildNames {
	return GuildNames{store: store, guild: guild}
}

// GuildNames resolves speakers of one guild.
type GuildNames struct {
	store Store
	guild discord.GuildID
}

// DisplayName returns the speaker's configured name.
func (g GuildNames) DisplayName(speaker recording.SpeakerID) (string, bool) {
	name, ok, err := g.store.Get(g.guild, discord.UserID(speaker))
	if err != nil {
		return "", false
	}
	return name, ok
}
