package export

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/config"
	"github.com/Raikerian/go-discord-recorder/internal/observe"
	"github.com/Raikerian/go-discord-recorder/internal/segment"
)

// Module provides the session exporter.
var Module = fx.Module("export",
	fx.Provide(NewExporterFromConfig),
)

// OptionsFromConfig maps the export and segmentation config sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Segmentation: segment.Config{
			MaxGapTicks:     cfg.Segmentation.MaxGapTicks,
			MinSegmentTicks: cfg.Segmentation.MinSegmentTicks,
			MaxSegmentTicks: cfg.Segmentation.MaxSegmentTicks,
			OverlapTicks:    cfg.Segmentation.OverlapTicks,
		},
		Concurrency:      cfg.Export.Concurrency,
		SilenceThreshold: cfg.Export.SilenceThreshold,
		WriteMixed:       cfg.Export.WriteMixed == nil || *cfg.Export.WriteMixed,
		WriteChunks:      cfg.Export.WriteChunks == nil || *cfg.Export.WriteChunks,
	}
}

// NewExporterFromConfig creates the Exporter used by the session manager.
func NewExporterFromConfig(cfg *config.Config, logger *zap.Logger, metrics *observe.Metrics) *Exporter {
	opts := OptionsFromConfig(cfg)
	logger.Info("Creating exporter",
		zap.Int("concurrency", opts.Concurrency),
		zap.Bool("mixed", opts.WriteMixed),
		zap.Bool("chunks", opts.WriteChunks))

	return NewExporter(logger.Named("export"), opts, metrics)
}
