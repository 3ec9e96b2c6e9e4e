package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/valpere/tilemani/internal"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("data.city", "paris")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Data.Style != "StamenTonerLines" {
		t.Errorf("Expected default style StamenTonerLines, got %s", cfg.Data.Style)
	}
	if cfg.Data.Zoom != "14" {
		t.Errorf("Expected default zoom 14, got %s", cfg.Data.Zoom)
	}
	if cfg.Retrieval.NetworkType != "drive_service" {
		t.Errorf("Expected default network type drive_service, got %s", cfg.Retrieval.NetworkType)
	}
	if len(cfg.Render.BgColors) != 5 {
		t.Errorf("Expected 5 default background colors, got %d", len(cfg.Render.BgColors))
	}
	if cfg.QueryAnchor() != internal.AnchorCorner {
		t.Errorf("Expected corner anchor, got %s", cfg.QueryAnchor())
	}

	want := filepath.Join("./data", "paris", "StamenTonerLines", "14")
	if cfg.InputDir() != want {
		t.Errorf("Expected input dir %s, got %s", want, cfg.InputDir())
	}
	if cfg.BatchStem() != "paris-StamenTonerLines-14" {
		t.Errorf("Expected batch stem paris-StamenTonerLines-14, got %s", cfg.BatchStem())
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]interface{}
		wantErr string
	}{
		{"missing style", map[string]interface{}{"data.city": "paris", "data.style": ""}, "style is required"},
		{"bad zoom", map[string]interface{}{"data.city": "paris", "data.zoom": "abc"}, "invalid zoom"},
		{"zoom out of range", map[string]interface{}{"data.city": "paris", "data.zoom": "23"}, "zoom must be between"},
		{"bad network type", map[string]interface{}{"data.city": "paris", "retrieval.network_type": "boat"}, "invalid network_type"},
		{"bad image format", map[string]interface{}{"data.city": "paris", "output.image_format": "gif"}, "invalid image_format"},
		{"non-positive width factor", map[string]interface{}{"data.city": "paris", "render.lw_factors": []float64{0}}, "lw_factors must be positive"},
		{"bad anchor", map[string]interface{}{"data.city": "paris", "retrieval.anchor": "middle"}, "invalid anchor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()
			for k, v := range tt.set {
				viper.Set(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
			if !internal.IsCode(err, internal.ErrorCodeConfig) {
				t.Errorf("Expected CONFIG_ERROR code, got %q", internal.CodeOf(err))
			}
		})
	}
}

func TestBuildingTagFilter(t *testing.T) {
	cfg := &Config{Retrieval: RetrievalConfig{BuildingTags: map[string]string{
		"building": "true",
		"amenity":  "school, hospital",
		"landuse":  "",
	}}}

	filter := cfg.BuildingTagFilter()

	if v, ok := filter["building"]; !ok || v != nil {
		t.Errorf("Expected building to accept any value, got %v", v)
	}
	if v, ok := filter["landuse"]; !ok || v != nil {
		t.Errorf("Expected landuse to accept any value, got %v", v)
	}
	if got := filter["amenity"]; len(got) != 2 || got[0] != "school" || got[1] != "hospital" {
		t.Errorf("Expected [school hospital], got %v", got)
	}
}
