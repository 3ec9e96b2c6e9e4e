package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := New()

	r.TileProcessed("paris")
	r.TileProcessed("paris")
	r.RetrievalFailed("road")
	r.ImageWritten("building")
	r.ImageWritten("building")
	r.ImageWritten("building")
	r.OverpassRequest("ok")
	r.OverpassRequest("retry")
	r.ObserveTile(1500 * time.Millisecond)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"tiles", testutil.ToFloat64(r.tiles.WithLabelValues("paris")), 2},
		{"road failures", testutil.ToFloat64(r.retrievalFailures.WithLabelValues("road")), 1},
		{"building failures", testutil.ToFloat64(r.retrievalFailures.WithLabelValues("building")), 0},
		{"images", testutil.ToFloat64(r.images.WithLabelValues("building")), 3},
		{"overpass ok", testutil.ToFloat64(r.overpassRequests.WithLabelValues("ok")), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, tt.got)
			}
		})
	}

	if n := testutil.CollectAndCount(r.tileDuration); n != 1 {
		t.Errorf("Expected 1 histogram series, got %d", n)
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder

	r.TileProcessed("paris")
	r.RetrievalFailed("road")
	r.ImageWritten("road")
	r.ObserveTile(time.Second)
	r.OverpassRequest("ok")

	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "none.prom")); err != nil {
		t.Errorf("Expected nil recorder to skip export, got %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.TileProcessed("la")
	r.OverpassRequest("cached")

	path := filepath.Join(t.TempDir(), "nested", "tilemani.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read textfile: %v", err)
	}
	out := string(data)

	for _, want := range []string{
		`tilemani_tiles_processed_total{city="la"} 1`,
		`tilemani_overpass_requests_total{outcome="cached"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in textfile, got:\n%s", want, out)
		}
	}
}
