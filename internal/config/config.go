package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DiscordConfig stores Discord specific configurations.
type DiscordConfig struct {
	BotToken      string             `yaml:"bot_token"`
	ApplicationID *discord.Snowflake `yaml:"application_id"`
	GuildIDs      []string           `yaml:"guild_ids"`
}

// RecordingConfig controls capture and on-disk storage.
type RecordingConfig struct {
	RecordingsDir      string   `yaml:"recordings_dir"`
	FlushInterval      Duration `yaml:"flush_interval"`
	ChunkDuration      Duration `yaml:"chunk_duration"`
	MaxSessionDuration Duration `yaml:"max_session_duration"`
	StopTimeout        Duration `yaml:"stop_timeout"`
}

// SegmentationConfig controls how speech is cut into transcription chunks.
// Values are in 20 ms ticks.
type SegmentationConfig struct {
	MaxGapTicks     uint64 `yaml:"max_gap_ticks"`
	MinSegmentTicks uint64 `yaml:"min_segment_ticks"`
	MaxSegmentTicks uint64 `yaml:"max_segment_ticks"`
	OverlapTicks    uint64 `yaml:"overlap_ticks"`
}

// ExportConfig controls the post-stop export.
type ExportConfig struct {
	Concurrency      int     `yaml:"concurrency"`
	SilenceThreshold float64 `yaml:"silence_threshold"`
	WriteMixed       *bool   `yaml:"write_mixed"`
	WriteChunks      *bool   `yaml:"write_chunks"`
}

// TranscriptionConfig stores offline transcription settings.
type TranscriptionConfig struct {
	Enabled       bool   `yaml:"enabled"`
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	Language      string `yaml:"language"`
	AutoAfterStop bool   `yaml:"auto_after_stop"`
	Concurrency   int    `yaml:"concurrency"`
	PricingFile   string `yaml:"pricing_file"`
}

// NamesConfig stores where per-user display names live.
type NamesConfig struct {
	File      string `yaml:"file"`
	CacheSize int    `yaml:"cache_size"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ListenAddr  string `yaml:"listen_addr"`
	ServiceName string `yaml:"service_name"`
}

// Config stores the application configuration.
type Config struct {
	Discord       DiscordConfig       `yaml:"discord"`
	Recording     RecordingConfig     `yaml:"recording"`
	Segmentation  SegmentationConfig  `yaml:"segmentation"`
	Export        ExportConfig        `yaml:"export"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Names         NamesConfig         `yaml:"names"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	LogLevel      string              `yaml:"log_level"`
}

// LoadConfig loads the configuration from the given file path, fills in
// defaults and validates the result.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filePath, err)
	}

	return &cfg, nil
}

// Environment variables that override secrets from the file.
const (
	EnvBotToken     = "DISCORD_BOT_TOKEN"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// ApplyEnv overrides secrets with non-empty environment values so they can
// stay out of config.yaml.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBotToken); ok && v != "" {
		c.Discord.BotToken = v
	}
	if v, ok := lookup(EnvOpenAIAPIKey); ok && v != "" {
		c.Transcription.APIKey = v
	}
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	r := &c.Recording
	if r.RecordingsDir == "" {
		r.RecordingsDir = "recordings"
	}
	if r.FlushInterval == 0 {
		r.FlushInterval = Duration(30 * time.Second)
	}
	if r.ChunkDuration == 0 {
		r.ChunkDuration = Duration(10 * time.Minute)
	}
	if r.StopTimeout == 0 {
		r.StopTimeout = Duration(30 * time.Second)
	}

	s := &c.Segmentation
	if s.MaxGapTicks == 0 {
		s.MaxGapTicks = 2
	}
	if s.MinSegmentTicks == 0 {
		s.MinSegmentTicks = 25
	}
	if s.MaxSegmentTicks == 0 {
		s.MaxSegmentTicks = 2250
	}
	if s.OverlapTicks == 0 {
		s.OverlapTicks = 25
	}

	e := &c.Export
	if e.Concurrency <= 0 {
		e.Concurrency = 4
	}
	if e.SilenceThreshold <= 0 {
		e.SilenceThreshold = 0.01
	}
	if e.WriteMixed == nil {
		e.WriteMixed = boolPtr(true)
	}
	if e.WriteChunks == nil {
		e.WriteChunks = boolPtr(true)
	}

	t := &c.Transcription
	if t.Model == "" {
		t.Model = "whisper-1"
	}
	if t.Concurrency <= 0 {
		t.Concurrency = 2
	}
	if t.PricingFile == "" {
		t.PricingFile = "models.json"
	}

	n := &c.Names
	if n.File == "" {
		n.File = "names.yaml"
	}
	if n.CacheSize <= 0 {
		n.CacheSize = 256
	}

	m := &c.Metrics
	if m.ListenAddr == "" {
		m.ListenAddr = ":9090"
	}
	if m.ServiceName == "" {
		m.ServiceName = "go-discord-recorder"
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate rejects settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error

	if c.Recording.FlushInterval < 0 {
		errs = append(errs, errors.New("recording.flush_interval must be positive"))
	}
	if c.Recording.ChunkDuration.Std() < 20*time.Millisecond {
		errs = append(errs, errors.New("recording.chunk_duration must be at least one tick (20ms)"))
	}
	if c.Recording.MaxSessionDuration < 0 {
		errs = append(errs, errors.New("recording.max_session_duration must not be negative"))
	}
	if c.Segmentation.MinSegmentTicks > c.Segmentation.MaxSegmentTicks {
		errs = append(errs, fmt.Errorf("segmentation.min_segment_ticks (%d) exceeds max_segment_ticks (%d)",
			c.Segmentation.MinSegmentTicks, c.Segmentation.MaxSegmentTicks))
	}
	if c.Transcription.Enabled && c.Transcription.APIKey == "" {
		errs = append(errs, errors.New("transcription.api_key is required when transcription is enabled"))
	}

	return errors.Join(errs...)
}

// ChunkTicks returns the chunk rotation threshold in ticks.
func (r RecordingConfig) ChunkTicks() uint64 {
	return uint64(r.ChunkDuration.Std() / (20 * time.Millisecond))
}

func boolPtr(v bool) *bool { return &v }
