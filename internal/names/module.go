package names

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/config"
)

// Module provides the display name store.
var Module = fx.Module("names",
	fx.Provide(
		NewFileStoreFromConfig,
		func(s *FileStore) Store { return s },
	),
)

// NewFileStoreFromConfig creates the FileStore described by the names
// config section.
func NewFileStoreFromConfig(cfg *config.Config, logger *zap.Logger) (*FileStore, error) {
	logger.Info("Creating display name store",
		zap.String("file", cfg.Names.File),
		zap.Int("cache_size", cfg.Names.CacheSize))

	return NewFileStore(cfg.Names.File, cfg.Names.CacheSize)
}
