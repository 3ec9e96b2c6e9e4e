// internal/config/config.go - Configuration management
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"github.com/valpere/tilemani/internal"
)

// Config represents the complete application configuration
type Config struct {
	Data      DataConfig      `mapstructure:"data"`
	Output    OutputConfig    `mapstructure:"output"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Render    RenderConfig    `mapstructure:"render"`
	Records   RecordsConfig   `mapstructure:"records"`
	Network   NetworkConfig   `mapstructure:"network"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// DataConfig locates the reference rasters that define the tile set
type DataConfig struct {
	Root  string `mapstructure:"root"`
	City  string `mapstructure:"city"`
	Style string `mapstructure:"style"`
	Zoom  string `mapstructure:"zoom"`
}

// OutputConfig contains output layout and format configuration
type OutputConfig struct {
	ImagesRoot   string `mapstructure:"images_root"`
	RecordsRoot  string `mapstructure:"records_root"`
	ImageFormat  string `mapstructure:"image_format"`
	BatchFormat  string `mapstructure:"batch_format"`
	VectorTiles  bool   `mapstructure:"vector_tiles"`
	WriteGraphML bool   `mapstructure:"write_graphml"`
	WriteGeoJSON bool   `mapstructure:"write_geojson"`
	WriteCSV     bool   `mapstructure:"write_csv"`
}

// RetrievalConfig contains Overpass query and client configuration
type RetrievalConfig struct {
	OverpassURL     string            `mapstructure:"overpass_url"`
	NetworkType     string            `mapstructure:"network_type"`
	BuildingTags    map[string]string `mapstructure:"building_tags"`
	BufferM         float64           `mapstructure:"buffer_m"`
	RetainAll       bool              `mapstructure:"retain_all"`
	Anchor          string            `mapstructure:"anchor"`
	Timeout         time.Duration     `mapstructure:"timeout"`
	MaxRetries      int               `mapstructure:"max_retries"`
	RetryDelay      time.Duration     `mapstructure:"retry_delay"`
	RateLimit       float64           `mapstructure:"rate_limit"`
	BreakerFailures uint32            `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration     `mapstructure:"breaker_timeout"`
	Cache           CacheConfig       `mapstructure:"cache"`
}

// CacheConfig controls the Overpass response cache
type CacheConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Dir           string `mapstructure:"dir"`
	MemoryEntries int    `mapstructure:"memory_entries"`
}

// RenderConfig contains rasterization parameters and the style fan-out lists
type RenderConfig struct {
	DPI          float64            `mapstructure:"dpi"`
	Figsize      float64            `mapstructure:"figsize"`
	BgColors     []string           `mapstructure:"bgcolors"`
	EdgeColors   []string           `mapstructure:"edge_colors"`
	BldgColors   []string           `mapstructure:"bldg_colors"`
	LwFactors    []float64          `mapstructure:"lw_factors"`
	Grayscale    bool               `mapstructure:"grayscale"`
	RoadWidths   map[string]float64 `mapstructure:"road_widths"`
	DefaultWidth float64            `mapstructure:"default_width"`
}

// RecordsConfig controls optional record enrichment
type RecordsConfig struct {
	H3Resolution int    `mapstructure:"h3_resolution"`
	Geocode      bool   `mapstructure:"geocode"`
	NominatimURL string `mapstructure:"nominatim_url"`
	Language     string `mapstructure:"language"`
}

// NetworkConfig contains HTTP transport configuration
type NetworkConfig struct {
	ProxyURL        string        `mapstructure:"proxy_url"`
	UserAgent       string        `mapstructure:"user_agent"`
	KeepAlive       time.Duration `mapstructure:"keep_alive"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Verbose  bool   `mapstructure:"verbose"`
	Progress bool   `mapstructure:"progress"`
}

// MetricsConfig controls the prometheus textfile export
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

// Load loads configuration from various sources
func Load() (*Config, error) {
	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, internal.NewError(internal.ErrorCodeConfig, "failed to unmarshal configuration", err)
	}

	if err := Validate(&config); err != nil {
		return nil, internal.NewError(internal.ErrorCodeConfig, "configuration validation failed", err)
	}

	return &config, nil
}

// setDefaults configures default values for all configuration options
func setDefaults() {
	// Data defaults
	viper.SetDefault("data.root", "./data")
	viper.SetDefault("data.style", "StamenTonerLines")
	viper.SetDefault("data.zoom", "14")

	// Output defaults
	viper.SetDefault("output.images_root", "./temp/images")
	viper.SetDefault("output.records_root", "./temp/records")
	viper.SetDefault("output.image_format", "png")
	viper.SetDefault("output.batch_format", "bson")
	viper.SetDefault("output.vector_tiles", false)
	viper.SetDefault("output.write_graphml", true)
	viper.SetDefault("output.write_geojson", true)
	viper.SetDefault("output.write_csv", true)

	// Retrieval defaults
	viper.SetDefault("retrieval.overpass_url", "https://overpass-api.de/api/interpreter")
	viper.SetDefault("retrieval.network_type", "drive_service")
	viper.SetDefault("retrieval.building_tags", map[string]string{"building": "true"})
	viper.SetDefault("retrieval.buffer_m", 500.0)
	viper.SetDefault("retrieval.retain_all", false)
	viper.SetDefault("retrieval.anchor", string(internal.AnchorCorner))
	viper.SetDefault("retrieval.timeout", 180*time.Second)
	viper.SetDefault("retrieval.max_retries", 3)
	viper.SetDefault("retrieval.retry_delay", 2*time.Second)
	viper.SetDefault("retrieval.rate_limit", 1.0)
	viper.SetDefault("retrieval.breaker_failures", 5)
	viper.SetDefault("retrieval.breaker_timeout", time.Minute)
	viper.SetDefault("retrieval.cache.enabled", true)
	viper.SetDefault("retrieval.cache.dir", "./cache")
	viper.SetDefault("retrieval.cache.memory_entries", 256)

	// Render defaults
	viper.SetDefault("render.dpi", 50.0)
	viper.SetDefault("render.figsize", 7.0)
	viper.SetDefault("render.bgcolors", []string{"k", "r", "g", "b", "y"})
	viper.SetDefault("render.edge_colors", []string{"cyan"})
	viper.SetDefault("render.bldg_colors", []string{"silver"})
	viper.SetDefault("render.lw_factors", []float64{0.5})
	viper.SetDefault("render.grayscale", true)
	viper.SetDefault("render.default_width", 4.0)

	// Records defaults
	viper.SetDefault("records.h3_resolution", -1)
	viper.SetDefault("records.geocode", false)
	viper.SetDefault("records.nominatim_url", "https://nominatim.openstreetmap.org/reverse")
	viper.SetDefault("records.language", "en")

	// Network defaults
	viper.SetDefault("network.user_agent", "tilemani/1.0")
	viper.SetDefault("network.keep_alive", 30*time.Second)
	viper.SetDefault("network.max_idle_conns", 10)
	viper.SetDefault("network.idle_conn_timeout", 90*time.Second)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stderr")
	viper.SetDefault("logging.verbose", false)
	viper.SetDefault("logging.progress", true)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.textfile", "./temp/tilemani.prom")
}

// InputDir returns {data_root}/{city}/{style}/{zoom}
func (c *Config) InputDir() string {
	return filepath.Join(c.Data.Root, c.Data.City, c.Data.Style, c.Data.Zoom)
}

// CityOutputDir returns {images_root}/{city}
func (c *Config) CityOutputDir() string {
	return filepath.Join(c.Output.ImagesRoot, c.Data.City)
}

// BatchStem returns the batch file name without version suffix and extension
func (c *Config) BatchStem() string {
	return fmt.Sprintf("%s-%s-%s", c.Data.City, c.Data.Style, c.Data.Zoom)
}

// QueryAnchor returns the configured tile anchor
func (c *Config) QueryAnchor() internal.Anchor {
	if strings.EqualFold(c.Retrieval.Anchor, string(internal.AnchorCentroid)) {
		return internal.AnchorCentroid
	}
	return internal.AnchorCorner
}

// BuildingTagFilter converts building_tags into key → accepted values.
// A value of "true" (or empty) accepts any value; otherwise the value is a
// comma-separated list.
func (c *Config) BuildingTagFilter() map[string][]string {
	filter := make(map[string][]string, len(c.Retrieval.BuildingTags))
	for key, raw := range c.Retrieval.BuildingTags {
		if raw == "" {
			filter[key] = nil
			continue
		}
		if anyValue, err := cast.ToBoolE(raw); err == nil && anyValue {
			filter[key] = nil
			continue
		}
		var values []string
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		filter[key] = values
	}
	return filter
}
