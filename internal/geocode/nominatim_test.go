package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/valpere/tilemani/internal"
	"github.com/valpere/tilemani/internal/tile"
)

func TestReverse(t *testing.T) {
	var gotQuery map[string]string
	var gotAgent string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"place_id":1,"display_name":"Ivry-sur-Seine, Val-de-Marne, 94200, France"}`))
	}))
	defer srv.Close()

	c := NewClient(Options{URL: srv.URL, UserAgent: "tilemani-test", Language: "fr"}, zerolog.Nop())
	addr, err := c.Reverse(context.Background(), tile.LatLng{Lat: 48.8, Lng: 2.39501953125})
	if err != nil {
		t.Fatalf("Reverse failed: %v", err)
	}

	if addr != "Ivry-sur-Seine, Val-de-Marne, 94200, France" {
		t.Errorf("Expected address, got %q", addr)
	}
	if gotAgent != "tilemani-test" {
		t.Errorf("Expected user agent tilemani-test, got %q", gotAgent)
	}

	tests := []struct {
		key  string
		want string
	}{
		{"format", "jsonv2"},
		{"lat", "48.8"},
		{"lon", "2.39501953125"},
		{"zoom", "14"},
		{"accept-language", "fr"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if gotQuery[tt.key] != tt.want {
				t.Errorf("Expected %s=%s, got %s", tt.key, tt.want, gotQuery[tt.key])
			}
		})
	}
}

func TestReverseFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"server error", http.StatusServiceUnavailable, ``, internal.ErrorCodeRetrieval},
		{"malformed body", http.StatusOK, `{"display_name":`, internal.ErrorCodeRetrieval},
		{"unable to geocode", http.StatusOK, `{"error":"Unable to geocode"}`, internal.ErrorCodeNoData},
		{"empty result", http.StatusOK, `{}`, internal.ErrorCodeNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(Options{URL: srv.URL}, zerolog.Nop())
			_, err := c.Reverse(context.Background(), tile.LatLng{Lat: 1, Lng: 1})
			if !internal.IsCode(err, tt.wantCode) {
				t.Errorf("Expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestReverseCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Expected no request after cancellation")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(Options{URL: srv.URL}, zerolog.Nop())
	if _, err := c.Reverse(ctx, tile.LatLng{}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestCountry(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"Saint-Janvier, Mirabel, Laurentides, Quebec, J7J1E3, Canada", "Canada"},
		{"Clark County, Nevada, United States", "United States"},
		{"France", "France"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Country(tt.address); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
