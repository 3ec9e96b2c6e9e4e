// internal/batch/coordinator.go - Run coordination from configuration
package batch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/valpere/tilemani/internal"
	"github.com/valpere/tilemani/internal/config"
	"github.com/valpere/tilemani/internal/geocode"
	"github.com/valpere/tilemani/internal/metrics"
	"github.com/valpere/tilemani/internal/output"
	"github.com/valpere/tilemani/internal/render"
	"github.com/valpere/tilemani/internal/retrieve"
	"github.com/valpere/tilemani/internal/stats"
	"github.com/valpere/tilemani/internal/tile"
)

// Coordinator wires a Processor from configuration and runs it over the
// input directory
type Coordinator struct {
	cfg      *config.Config
	fs       afero.Fs
	logger   zerolog.Logger
	querier  retrieve.Querier
	reporter ProgressReporter
	metrics  *metrics.Recorder
}

// NewCoordinator creates a coordinator. Input and output paths resolve on fs.
func NewCoordinator(cfg *config.Config, fs afero.Fs, logger zerolog.Logger) *Coordinator {
	c := &Coordinator{
		cfg:    cfg,
		fs:     fs,
		logger: logger,
	}
	if cfg.Metrics.Enabled {
		c.metrics = metrics.New()
	}
	return c
}

// WithQuerier replaces the Overpass HTTP client
func (c *Coordinator) WithQuerier(q retrieve.Querier) *Coordinator {
	c.querier = q
	return c
}

// WithReporter sets the progress reporter
func (c *Coordinator) WithReporter(r ProgressReporter) *Coordinator {
	c.reporter = r
	return c
}

// Metrics returns the run metrics, or nil when disabled
func (c *Coordinator) Metrics() *metrics.Recorder {
	return c.metrics
}

// Build creates the processor and its collaborators. Every failure here is a
// configuration error.
func (c *Coordinator) Build() (*Processor, error) {
	opts, err := OptionsFromConfig(c.cfg)
	if err != nil {
		return nil, err
	}

	factory := retrieve.NewFactory(c.cfg, c.fs, c.logger)
	querier := c.querier
	if querier == nil {
		client, err := factory.CreateClient()
		if err != nil {
			return nil, internal.NewError(internal.ErrorCodeConfig, "failed to create overpass client", err)
		}
		if c.metrics != nil {
			client.SetObserver(c.metrics.OverpassRequest)
		}
		querier = client
	}
	retriever, err := factory.CreateRetriever(querier)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeConfig, "failed to create retriever", err)
	}

	widths := render.DefaultRoadWidths().Merge(c.cfg.Render.RoadWidths, c.cfg.Render.DefaultWidth)
	renderer := render.NewRenderer(c.cfg.Render.DPI, c.cfg.Render.Figsize, widths)
	cityDir := c.cfg.CityOutputDir()

	batches, err := output.NewBatchWriter(c.fs, c.cfg.Output.RecordsRoot, c.cfg.BatchStem(),
		output.Format(c.cfg.Output.BatchFormat), c.logger)
	if err != nil {
		return nil, err
	}

	deps := Dependencies{
		Retriever:  retriever,
		Tags:       factory.TagFilter(),
		Rasterizer: render.NewRasterizer(renderer, c.fs, cityDir, c.cfg.Output.ImageFormat, c.logger),
		Stats:      stats.Basic{},
		Writer:     output.NewTileWriter(c.fs, cityDir, c.logger),
		Batches:    batches,
		Metrics:    c.metrics,
		Reporter:   c.reporter,
	}
	if c.cfg.Records.Geocode {
		deps.Geocoder = geocode.NewClient(geocode.Options{
			URL:       c.cfg.Records.NominatimURL,
			UserAgent: c.cfg.Network.UserAgent,
			Language:  c.cfg.Records.Language,
		}, c.logger)
	}

	return NewProcessor(deps, opts, c.logger), nil
}

// Run lists the input tiles, processes them and exports metrics
func (c *Coordinator) Run(ctx context.Context) (*Job, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	entries, err := tile.NewLister(c.fs, c.logger).List(c.cfg.InputDir())
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		c.logger.Warn().Str("dir", c.cfg.InputDir()).Msg("No tiles found in input directory")
	}

	processor, err := c.Build()
	if err != nil {
		return nil, err
	}

	job, runErr := processor.Process(ctx, entries)

	if c.metrics != nil {
		if err := c.metrics.WriteTextfile(c.cfg.Metrics.Textfile); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to export metrics")
		}
	}
	return job, runErr
}

// validate checks the run parameters that the config layer leaves open
func (c *Coordinator) validate() error {
	if c.cfg.Data.City == "" {
		return internal.NewError(internal.ErrorCodeConfig, "city is required", nil)
	}
	if c.cfg.Data.Zoom == "" {
		return internal.NewError(internal.ErrorCodeConfig, "zoom is required", nil)
	}
	if !output.Format(c.cfg.Output.BatchFormat).IsValid() {
		return internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("unsupported batch format: %s", c.cfg.Output.BatchFormat), nil)
	}
	return nil
}
