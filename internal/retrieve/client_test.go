package retrieve

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/spf13/afero"
	"github.com/valpere/tilemani/internal"
	"github.com/valpere/tilemani/internal/config"
)

func testConfig(url string) *config.Config {
	return &config.Config{
		Retrieval: config.RetrievalConfig{
			OverpassURL:     url,
			NetworkType:     "drive_service",
			Timeout:         5 * time.Second,
			MaxRetries:      2,
			RetryDelay:      time.Millisecond,
			BreakerFailures: 5,
			BreakerTimeout:  time.Minute,
		},
		Network: config.NetworkConfig{
			UserAgent:       "tilemani-test",
			MaxIdleConns:    2,
			IdleConnTimeout: time.Second,
		},
	}
}

func TestClientQuery(t *testing.T) {
	var gotQuery, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		gotQuery = r.FormValue("data")
		gotAgent = r.UserAgent()
		io.WriteString(w, "<osm></osm>")
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil, zerolog.Nop())
	data, err := client.Query(context.Background(), "[out:xml];way(1);out;")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if string(data) != "<osm></osm>" {
		t.Errorf("Expected body <osm></osm>, got %s", data)
	}
	if gotQuery != "[out:xml];way(1);out;" {
		t.Errorf("Expected query to be posted as data, got %q", gotQuery)
	}
	if gotAgent != "tilemani-test" {
		t.Errorf("Expected user agent tilemani-test, got %q", gotAgent)
	}
}

func TestClientRetry(t *testing.T) {
	tests := []struct {
		name     string
		failures int32
		status   int
		body     string
		wantErr  bool
		wantHits int32
	}{
		{"recovers after server errors", 2, http.StatusBadGateway, "", false, 3},
		{"gives up after max retries", 10, http.StatusServiceUnavailable, "", true, 3},
		{"no retry on client error", 10, http.StatusBadRequest, "", true, 1},
		{"retries rate limiting", 1, http.StatusTooManyRequests, "", false, 2},
		{"retries runtime remarks", 1, http.StatusOK, "<osm><remark> runtime error: Query timed out </remark></osm>", false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&hits, 1)
				if n <= tt.failures {
					w.WriteHeader(tt.status)
					io.WriteString(w, tt.body)
					return
				}
				io.WriteString(w, "<osm></osm>")
			}))
			defer server.Close()

			var outcomes []string
			client := NewClient(testConfig(server.URL), nil, zerolog.Nop())
			client.SetObserver(func(o string) { outcomes = append(outcomes, o) })

			_, err := client.Query(context.Background(), "q")
			if tt.wantErr && err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if err != nil && !internal.IsCode(err, internal.ErrorCodeRetrieval) {
				t.Errorf("Expected RETRIEVAL_FAILURE, got %v", err)
			}
			if got := atomic.LoadInt32(&hits); got != tt.wantHits {
				t.Errorf("Expected %d requests, got %d", tt.wantHits, got)
			}
			if len(outcomes) != int(tt.wantHits) {
				t.Errorf("Expected %d observed outcomes, got %v", tt.wantHits, outcomes)
			}
		})
	}
}

func TestClientBreakerOpens(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Retrieval.MaxRetries = 0
	cfg.Retrieval.BreakerFailures = 2
	client := NewClient(cfg, nil, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := client.Query(context.Background(), "q"); err == nil {
			t.Fatalf("Expected failure on call %d", i)
		}
	}

	_, err := client.Query(context.Background(), "q")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Expected open breaker, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("Expected 2 requests to reach the server, got %d", got)
	}
}

func TestClientUsesCache(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		io.WriteString(w, "<osm></osm>")
	}))
	defer server.Close()

	cache, err := NewCache(afero.NewMemMapFs(), "/cache", 4)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	client := NewClient(testConfig(server.URL), cache, zerolog.Nop())

	for i := 0; i < 3; i++ {
		if _, err := client.Query(context.Background(), "same query"); err != nil {
			t.Fatalf("Query %d failed: %v", i, err)
		}
	}

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("Expected 1 request, got %d", got)
	}
}

func TestClientCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(testConfig(server.URL), nil, zerolog.Nop())
	if _, err := client.Query(ctx, "q"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRuntimeRemark(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no remark", "<osm></osm>", ""},
		{"informational remark", "<osm><remark>note</remark></osm>", ""},
		{"runtime error", "<osm><remark> runtime error: out of memory </remark></osm>", "runtime error: out of memory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runtimeRemark([]byte(tt.body)); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
