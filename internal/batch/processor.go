// internal/batch/processor.go - Per-tile orchestration and batch persistence
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
	"github.com/uber/h3-go/v4"
	"github.com/valpere/tilemani/internal"
	"github.com/valpere/tilemani/internal/config"
	"github.com/valpere/tilemani/internal/geocode"
	"github.com/valpere/tilemani/internal/graph"
	"github.com/valpere/tilemani/internal/metrics"
	"github.com/valpere/tilemani/internal/output"
	"github.com/valpere/tilemani/internal/render"
	"github.com/valpere/tilemani/internal/retrieve"
	"github.com/valpere/tilemani/internal/stats"
	"github.com/valpere/tilemani/internal/tile"
	"github.com/valpere/tilemani/pkg/mvt"
	"go.uber.org/multierr"
)

// Dependencies are the collaborators of a Processor. Geocoder, Metrics and
// Reporter are optional.
type Dependencies struct {
	Retriever  retrieve.Retriever
	Tags       retrieve.TagFilter
	Rasterizer *render.Rasterizer
	Stats      stats.Computer
	Writer     *output.TileWriter
	Batches    *output.BatchWriter
	Geocoder   geocode.Reverser
	Metrics    *metrics.Recorder
	Reporter   ProgressReporter
}

// Options controls what the pipeline produces for each tile
type Options struct {
	City         string
	Style        string
	Zoom         string
	NetworkType  string
	Anchor       internal.Anchor
	Styles       render.StyleSet
	Grayscale    bool
	H3Resolution int
	VectorTiles  bool
	WriteGraphML bool
	WriteGeoJSON bool
	WriteCSV     bool
}

// OptionsFromConfig derives processor options from configuration
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	styles := render.CrossProduct(cfg.Render.BgColors, cfg.Render.EdgeColors, cfg.Render.BldgColors, cfg.Render.LwFactors)
	if len(styles) == 0 {
		return Options{}, internal.NewError(internal.ErrorCodeConfig, "render color lists produce no styles", nil)
	}
	if err := render.ValidateStyleSet(styles); err != nil {
		return Options{}, internal.NewError(internal.ErrorCodeConfig, "invalid render styles", err)
	}

	return Options{
		City:         cfg.Data.City,
		Style:        cfg.Data.Style,
		Zoom:         cfg.Data.Zoom,
		NetworkType:  cfg.Retrieval.NetworkType,
		Anchor:       cfg.QueryAnchor(),
		Styles:       styles,
		Grayscale:    cfg.Render.Grayscale,
		H3Resolution: cfg.Records.H3Resolution,
		VectorTiles:  cfg.Output.VectorTiles,
		WriteGraphML: cfg.Output.WriteGraphML,
		WriteGeoJSON: cfg.Output.WriteGeoJSON,
		WriteCSV:     cfg.Output.WriteCSV,
	}, nil
}

// Processor runs retrieve, rasterize, compute-stats and persist for each
// tile in turn and writes the collected records as one batch
type Processor struct {
	deps   Dependencies
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// NewProcessor creates a processor
func NewProcessor(deps Dependencies, opts Options, logger zerolog.Logger) *Processor {
	if deps.Stats == nil {
		deps.Stats = stats.Basic{}
	}
	return &Processor{
		deps:   deps,
		opts:   opts,
		logger: logger.With().Str("component", "processor").Str("city", opts.City).Logger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Process runs every entry in order. Tile failures are recovered and
// recorded; only a failure to persist the batch is returned as an error.
// When ctx is cancelled the remaining tiles are skipped, the partial batch is
// still written and the context error is returned.
func (p *Processor) Process(ctx context.Context, entries []tile.Entry) (*Job, error) {
	job := NewJob(p.newID(), p.opts.City, p.opts.Style, p.opts.Zoom)
	started := p.now()
	job.Status = JobStatusRunning
	job.StartedAt = &started
	job.Progress.StartTime = started
	job.Progress.TotalTiles = int64(len(entries))

	logger := p.logger.With().Str("run_id", job.ID).Logger()
	logger.Info().Int("tiles", len(entries)).Str("zoom", p.opts.Zoom).Msg("Starting run")
	p.report(func(r ProgressReporter) error { return r.ReportProgress(job) })

	records := make([]TileRecord, 0, len(entries))
	for i, entry := range entries {
		if ctx.Err() != nil {
			logger.Warn().Int("skipped", len(entries)-i).Msg("Run cancelled, skipping remaining tiles")
			break
		}

		result := p.ProcessTile(ctx, job.ID, entry)
		records = append(records, *result.Record)

		job.Progress.Record(result)
		p.report(func(r ProgressReporter) error { return r.ReportTileComplete(job, result) })
	}

	doc := &output.BatchDocument{
		City:      p.opts.City,
		Style:     p.opts.Style,
		Zoom:      p.opts.Zoom,
		RunID:     job.ID,
		CreatedAt: p.now().UTC(),
		Records:   records,
	}
	path, err := p.deps.Batches.Write(doc)
	completed := p.now()
	job.CompletedAt = &completed

	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err
		logger.Error().Err(err).Msg("Failed to persist batch")
		p.report(func(r ProgressReporter) error { return r.ReportJobFailed(job, err) })
		return job, err
	}
	job.BatchPath = path

	if ctxErr := ctx.Err(); ctxErr != nil {
		job.Status = JobStatusCanceled
		job.Error = ctxErr
		p.report(func(r ProgressReporter) error { return r.ReportJobFailed(job, ctxErr) })
		return job, fmt.Errorf("run cancelled after %d of %d tiles: %w", len(records), len(entries), ctxErr)
	}

	job.Status = JobStatusCompleted
	logger.Info().
		Str("batch", path).
		Int64("degraded", job.Progress.DegradedTiles).
		Int64("images", job.Progress.ImagesWritten).
		Msg("Run completed")
	p.report(func(r ProgressReporter) error { return r.ReportJobComplete(job) })
	return job, nil
}

// ProcessTile takes one tile from pending to persisted. It never fails:
// every stage error is logged and kept on the result.
func (p *Processor) ProcessTile(ctx context.Context, runID string, entry tile.Entry) *TileResult {
	start := p.now()
	loc := tile.Locate(entry.Index)
	result := &TileResult{
		Entry:    entry,
		Location: loc,
		State:    StatePending,
		Record:   p.newRecord(runID, loc),
	}
	logger := p.logger.With().Str("tile", entry.Index.String()).Logger()

	center := loc.Anchor(p.opts.Anchor)
	bbox := loc.BBox(p.opts.Anchor)

	// retrieve
	var (
		road      *graph.Graph
		buildings *geojson.FeatureCollection
	)
	if err := p.stage(ctx, logger, result, "retrieve_road", func() error {
		var err error
		road, err = p.deps.Retriever.FetchRoadNetwork(ctx, center, loc.Radius, p.opts.NetworkType)
		return err
	}); err != nil {
		road = nil
		p.deps.Metrics.RetrievalFailed(LayerRoad)
	}
	if err := p.stage(ctx, logger, result, "retrieve_building", func() error {
		var err error
		buildings, err = p.deps.Retriever.FetchTaggedGeometries(ctx, center, loc.Radius, p.deps.Tags)
		return err
	}); err != nil {
		buildings = nil
		p.deps.Metrics.RetrievalFailed(LayerBuilding)
	}
	result.Record.RetrievedRoad = road != nil
	result.Record.RetrievedBldg = buildings != nil
	result.State = StateRetrieved

	// rasterize and per-layer artifacts
	p.stage(ctx, logger, result, "rasterize", func() error {
		images, err := p.deps.Rasterizer.RasterizeTile(ctx, entry.Index, road, buildings, bbox, p.opts.Styles)
		p.addImages(result, images)
		if p.opts.Grayscale {
			gray, grayErr := p.deps.Rasterizer.RasterizeTile(ctx, entry.Index, road, buildings, bbox, render.Grayscale())
			p.addImages(result, gray)
			err = multierr.Append(err, grayErr)
		}
		return err
	})
	if road != nil && p.opts.WriteGraphML {
		p.stage(ctx, logger, result, "write_graphml", func() error {
			return p.keep(result)(p.deps.Writer.WriteGraphML(entry.Index, road))
		})
	}
	if buildings != nil && p.opts.WriteGeoJSON {
		p.stage(ctx, logger, result, "write_geojson", func() error {
			return p.keep(result)(p.deps.Writer.WriteGeoJSON(entry.Index, buildings))
		})
	}
	if p.opts.VectorTiles && (road != nil || buildings != nil) {
		p.stage(ctx, logger, result, "write_mvt", func() error {
			data, err := mvt.EncodeTile(entry.Index, road, buildings)
			if err != nil {
				return internal.NewError(internal.ErrorCodePersistence, "failed to encode vector tile", err)
			}
			return p.keep(result)(p.deps.Writer.WriteMVT(entry.Index, data))
		})
	}
	result.State = StateRasterized

	// stats
	if road != nil {
		p.stage(ctx, logger, result, "stats", func() error {
			values, err := p.deps.Stats.Compute(road, loc.Area())
			if err != nil {
				return err
			}
			result.Record.Stats = values
			return nil
		})
	}
	result.State = StateStatsComputed

	// persist
	p.stage(ctx, logger, result, "enrich", func() error {
		return p.enrich(ctx, result.Record, center)
	})
	if p.opts.WriteCSV {
		p.stage(ctx, logger, result, "write_csv", func() error {
			return p.keep(result)(p.deps.Writer.WriteCSV(entry.Index, result.Record))
		})
	}
	result.State = StatePersisted

	result.Duration = p.now().Sub(start)
	p.deps.Metrics.ObserveTile(result.Duration)
	p.deps.Metrics.TileProcessed(p.opts.City)

	logger.Debug().
		Bool("retrieved_road", result.Record.RetrievedRoad).
		Bool("retrieved_bldg", result.Record.RetrievedBldg).
		Int("images", len(result.Images)).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("Tile persisted")
	return result
}

// stage runs fn with panic isolation. A failure is logged with its cause,
// appended to the result and returned.
func (p *Processor) stage(ctx context.Context, logger zerolog.Logger, result *TileResult, name string, fn func() error) error {
	var err error
	if recovered := panics.Try(func() { err = fn() }); recovered != nil {
		err = fmt.Errorf("%s panicked: %w", name, recovered.AsError())
	}
	if err == nil {
		return nil
	}

	result.Errors = append(result.Errors, fmt.Errorf("%s: %w", name, err))

	event := logger.Warn()
	if ctx.Err() != nil {
		event = logger.Info()
	}
	event.Str("stage", name).
		Str("state", result.State.String()).
		Str("code", internal.CodeOf(err)).
		AnErr("cause", err).
		Msg("Tile stage failed")
	return err
}

// keep records a written artifact path
func (p *Processor) keep(result *TileResult) func(string, error) error {
	return func(path string, err error) error {
		if err == nil {
			result.Files = append(result.Files, path)
		}
		return err
	}
}

func (p *Processor) addImages(result *TileResult, images []render.Artifact) {
	for _, a := range images {
		result.Images = append(result.Images, a)
		p.deps.Metrics.ImageWritten(a.Layer.String())
	}
}

func (p *Processor) newRecord(runID string, loc tile.Location) *TileRecord {
	return &TileRecord{
		X:              loc.Index.X,
		Y:              loc.Index.Y,
		Z:              loc.Index.Z,
		LatDeg:         loc.Center.Corner.Lat,
		LngDeg:         loc.Center.Corner.Lng,
		CentroidLatDeg: loc.Center.Centroid.Lat,
		CentroidLngDeg: loc.Center.Centroid.Lng,
		Radius:         loc.Radius,
		City:           p.opts.City,
		Style:          p.opts.Style,
		RunID:          runID,
	}
}

// enrich fills the optional h3 cell and address
func (p *Processor) enrich(ctx context.Context, rec *TileRecord, at tile.LatLng) error {
	var errs error
	if p.opts.H3Resolution >= 0 {
		cell, err := h3.LatLngToCell(h3.LatLng{Lat: at.Lat, Lng: at.Lng}, p.opts.H3Resolution)
		if err != nil {
			errs = multierr.Append(errs, internal.NewError(internal.ErrorCodeValidation, "failed to compute h3 cell", err))
		} else {
			rec.H3Cell = cell.String()
		}
	}
	if p.deps.Geocoder != nil {
		addr, err := p.deps.Geocoder.Reverse(ctx, at)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			rec.Address = addr
		}
	}
	return errs
}

func (p *Processor) report(fn func(ProgressReporter) error) {
	if p.deps.Reporter == nil {
		return
	}
	if err := fn(p.deps.Reporter); err != nil {
		p.logger.Debug().Err(err).Msg("Progress reporter failed")
	}
}
