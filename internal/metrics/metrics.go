// internal/metrics/metrics.go - Pipeline counters exported as a Prometheus textfile
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the pipeline metrics on a private registry. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	reg *prometheus.Registry

	tiles             *prometheus.CounterVec
	retrievalFailures *prometheus.CounterVec
	images            *prometheus.CounterVec
	tileDuration      prometheus.Histogram
	overpassRequests  *prometheus.CounterVec
}

// New creates a recorder and registers its collectors
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		tiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tilemani_tiles_processed_total",
				Help: "Tiles that reached the persisted state.",
			},
			[]string{"city"},
		),
		retrievalFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tilemani_retrieval_failures_total",
				Help: "Layers that could not be retrieved, by layer.",
			},
			[]string{"layer"},
		),
		images: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tilemani_images_written_total",
				Help: "Raster images written, by layer.",
			},
			[]string{"layer"},
		),
		tileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tilemani_tile_duration_seconds",
			Help:    "Wall time spent on one tile.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		overpassRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tilemani_overpass_requests_total",
				Help: "Overpass requests by outcome.",
			},
			[]string{"outcome"},
		),
	}

	r.reg.MustRegister(r.tiles, r.retrievalFailures, r.images, r.tileDuration, r.overpassRequests)
	return r
}

// Registry exposes the private registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// TileProcessed counts a persisted tile
func (r *Recorder) TileProcessed(city string) {
	if r == nil {
		return
	}
	r.tiles.WithLabelValues(city).Inc()
}

// RetrievalFailed counts an absent layer
func (r *Recorder) RetrievalFailed(layer string) {
	if r == nil {
		return
	}
	r.retrievalFailures.WithLabelValues(layer).Inc()
}

// ImageWritten counts a raster image
func (r *Recorder) ImageWritten(layer string) {
	if r == nil {
		return
	}
	r.images.WithLabelValues(layer).Inc()
}

// ObserveTile records the duration of one tile
func (r *Recorder) ObserveTile(d time.Duration) {
	if r == nil {
		return
	}
	r.tileDuration.Observe(d.Seconds())
}

// OverpassRequest counts an Overpass request outcome. Its signature matches
// retrieve.Observer.
func (r *Recorder) OverpassRequest(outcome string) {
	if r == nil {
		return
	}
	r.overpassRequests.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes the registry in the node-exporter textfile format
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
