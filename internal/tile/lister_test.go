package tile

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/valpere/tilemani/internal"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    Index
		wantErr bool
	}{
		{"png", "/data/paris/StamenTonerLines/14/8301_5639_14.png", Index{8301, 5639, 14}, false},
		{"no directory", "8301_5637_14.jpg", Index{8301, 5637, 14}, false},
		{"missing part", "8301_5639.png", Index{}, true},
		{"not a number", "a_5639_14.png", Index{}, true},
		{"out of range", "20000_5639_14.png", Index{}, true},
		{"extra part", "1_2_3_4.png", Index{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilename(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %s, got %v", tt.path, got)
				}
				if !internal.IsCode(err, internal.ErrorCodeValidation) {
					t.Errorf("Expected VALIDATION_ERROR, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestIndexString(t *testing.T) {
	idx := Index{X: 8301, Y: 5639, Z: 14}
	if idx.String() != "8301_5639_14" {
		t.Errorf("Expected 8301_5639_14, got %s", idx.String())
	}
	if idx.Filename("graphml") != "8301_5639_14.graphml" {
		t.Errorf("Expected 8301_5639_14.graphml, got %s", idx.Filename("graphml"))
	}
}

func TestListerList(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/data/paris/StamenTonerLines/14"
	for _, name := range []string{"8301_5639_14.png", "8301_5637_14.png", "README.txt", "bad_name.png"} {
		if err := afero.WriteFile(fs, dir+"/"+name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := fs.MkdirAll(dir+"/sub", 0o755); err != nil {
		t.Fatal(err)
	}

	lister := NewLister(fs, zerolog.Nop())
	entries, err := lister.List(dir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 tiles, got %d", len(entries))
	}
	if entries[0].Index != (Index{8301, 5637, 14}) || entries[1].Index != (Index{8301, 5639, 14}) {
		t.Errorf("Expected tiles in name order, got %v and %v", entries[0].Index, entries[1].Index)
	}
}

func TestListerMissingDirectory(t *testing.T) {
	lister := NewLister(afero.NewMemMapFs(), zerolog.Nop())

	_, err := lister.List("/nope")
	if err == nil {
		t.Fatal("Expected error for missing directory")
	}
	if !internal.IsCode(err, internal.ErrorCodeConfig) {
		t.Errorf("Expected CONFIG_ERROR, got %v", err)
	}
}
