// internal/config/validation.go - Configuration validation
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Validate validates the configuration structure and values
func Validate(config *Config) error {
	if err := validateData(&config.Data); err != nil {
		return fmt.Errorf("data configuration invalid: %w", err)
	}

	if err := validateOutput(&config.Output); err != nil {
		return fmt.Errorf("output configuration invalid: %w", err)
	}

	if err := validateRetrieval(&config.Retrieval); err != nil {
		return fmt.Errorf("retrieval configuration invalid: %w", err)
	}

	if err := validateRender(&config.Render); err != nil {
		return fmt.Errorf("render configuration invalid: %w", err)
	}

	if err := validateRecords(&config.Records); err != nil {
		return fmt.Errorf("records configuration invalid: %w", err)
	}

	if err := validateNetwork(&config.Network); err != nil {
		return fmt.Errorf("network configuration invalid: %w", err)
	}

	if err := validateLogging(&config.Logging); err != nil {
		return fmt.Errorf("logging configuration invalid: %w", err)
	}

	if config.Metrics.Enabled && config.Metrics.Textfile == "" {
		return fmt.Errorf("metrics configuration invalid: textfile is required when metrics are enabled")
	}

	return nil
}

// validateData validates the input tile set location. City is checked by the
// commands that need one.
func validateData(config *DataConfig) error {
	if config.Style == "" {
		return fmt.Errorf("style is required")
	}

	zoom, err := strconv.Atoi(config.Zoom)
	if err != nil {
		return fmt.Errorf("invalid zoom %q: %w", config.Zoom, err)
	}
	if zoom < 0 || zoom > 22 {
		return fmt.Errorf("zoom must be between 0 and 22, got %d", zoom)
	}

	if config.Root == "" {
		return fmt.Errorf("root is required")
	}

	return nil
}

// validateOutput validates output configuration parameters
func validateOutput(config *OutputConfig) error {
	if config.ImagesRoot == "" {
		return fmt.Errorf("images_root is required")
	}

	if config.RecordsRoot == "" {
		return fmt.Errorf("records_root is required")
	}

	validImageFormats := []string{"png", "jpg"}
	if !contains(validImageFormats, config.ImageFormat) {
		return fmt.Errorf("invalid image_format: %s, must be one of %v", config.ImageFormat, validImageFormats)
	}

	validBatchFormats := []string{"bson", "json"}
	if !contains(validBatchFormats, config.BatchFormat) {
		return fmt.Errorf("invalid batch_format: %s, must be one of %v", config.BatchFormat, validBatchFormats)
	}

	return nil
}

// validateRetrieval validates Overpass client parameters
func validateRetrieval(config *RetrievalConfig) error {
	if config.OverpassURL == "" {
		return fmt.Errorf("overpass_url is required")
	}

	if _, err := url.Parse(config.OverpassURL); err != nil {
		return fmt.Errorf("invalid overpass_url: %w", err)
	}

	validNetworkTypes := []string{"drive", "drive_service", "walk", "bike", "all", "all_private"}
	if !contains(validNetworkTypes, config.NetworkType) {
		return fmt.Errorf("invalid network_type: %s, must be one of %v", config.NetworkType, validNetworkTypes)
	}

	if len(config.BuildingTags) == 0 {
		return fmt.Errorf("building_tags must contain at least one tag")
	}

	if config.BufferM < 0 {
		return fmt.Errorf("buffer_m must be non-negative")
	}

	validAnchors := []string{"corner", "centroid"}
	if !contains(validAnchors, config.Anchor) {
		return fmt.Errorf("invalid anchor: %s, must be one of %v", config.Anchor, validAnchors)
	}

	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if config.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}

	if config.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be non-negative")
	}

	if config.Cache.Enabled && config.Cache.Dir == "" && config.Cache.MemoryEntries <= 0 {
		return fmt.Errorf("cache needs a dir or memory_entries when enabled")
	}

	return nil
}

// validateRender validates rasterization parameters
func validateRender(config *RenderConfig) error {
	if config.DPI <= 0 {
		return fmt.Errorf("dpi must be positive")
	}

	if config.Figsize <= 0 {
		return fmt.Errorf("figsize must be positive")
	}

	if len(config.BgColors) == 0 || len(config.EdgeColors) == 0 || len(config.BldgColors) == 0 {
		return fmt.Errorf("bgcolors, edge_colors and bldg_colors must not be empty")
	}

	if len(config.LwFactors) == 0 {
		return fmt.Errorf("lw_factors must not be empty")
	}

	for _, f := range config.LwFactors {
		if f <= 0 {
			return fmt.Errorf("lw_factors must be positive, got %v", f)
		}
	}

	for highway, w := range config.RoadWidths {
		if w <= 0 {
			return fmt.Errorf("road width for %s must be positive", highway)
		}
	}

	if config.DefaultWidth <= 0 {
		return fmt.Errorf("default_width must be positive")
	}

	return nil
}

// validateRecords validates record enrichment options
func validateRecords(config *RecordsConfig) error {
	if config.H3Resolution > 15 {
		return fmt.Errorf("h3_resolution must not exceed 15")
	}

	if config.Geocode {
		if _, err := url.Parse(config.NominatimURL); err != nil || config.NominatimURL == "" {
			return fmt.Errorf("invalid nominatim_url: %q", config.NominatimURL)
		}
	}

	return nil
}

// validateNetwork validates network configuration parameters
func validateNetwork(config *NetworkConfig) error {
	if config.ProxyURL != "" {
		if _, err := url.Parse(config.ProxyURL); err != nil {
			return fmt.Errorf("invalid proxy_url: %w", err)
		}
	}

	if config.MaxIdleConns < 0 {
		return fmt.Errorf("max_idle_conns must be non-negative")
	}

	if config.UserAgent == "" {
		return fmt.Errorf("user_agent cannot be empty")
	}

	if config.KeepAlive < 0 {
		return fmt.Errorf("keep_alive must be non-negative")
	}

	if config.IdleConnTimeout < 0 {
		return fmt.Errorf("idle_conn_timeout must be non-negative")
	}

	return nil
}

// validateLogging validates logging configuration parameters
func validateLogging(config *LoggingConfig) error {
	validLevels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}
	if !contains(validLevels, config.Level) {
		return fmt.Errorf("invalid log level: %s, must be one of %v", config.Level, validLevels)
	}

	validFormats := []string{"text", "json"}
	if !contains(validFormats, config.Format) {
		return fmt.Errorf("invalid log format: %s, must be one of %v", config.Format, validFormats)
	}

	validOutputs := []string{"stdout", "stderr"}
	if !contains(validOutputs, config.Output) {
		return fmt.Errorf("invalid log output: %s, must be one of %v", config.Output, validOutputs)
	}

	return nil
}

// contains checks if a string slice contains a specific string (case-insensitive)
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
