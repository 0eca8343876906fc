package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"

	"github.com/muurk/meshsd/internal/protocol"
)

func TestGetConfigPath(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout only applies on Linux")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if want := filepath.Join(dir, "meshsd", "node.yaml"); got != want {
		t.Errorf("GetConfigPath() = %v, want %v", got, want)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("NewConfig().Validate() error = %v", err)
	}
	if cfg.Limits.MaxServices != 2 || cfg.Limits.MaxWatches != 2 {
		t.Errorf("NewConfig().Limits = %+v, want 2/2", cfg.Limits)
	}
	if cfg.Timing.StaleInterval != 31*time.Minute {
		t.Errorf("NewConfig().Timing.StaleInterval = %v, want 31m", cfg.Timing.StaleInterval)
	}
	if cfg.Timing.Jitter != 512*time.Millisecond {
		t.Errorf("NewConfig().Timing.Jitter = %v, want 512ms", cfg.Timing.Jitter)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, NewConfig()) {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestCreateDefaultConfig_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "node.yaml")

	created, err := CreateDefaultConfig(path)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# meshsd node configuration") {
		t.Errorf("saved file lacks header:\n%s", data)
	}
	if !strings.Contains(string(data), "stale_interval: 31m0s") {
		t.Errorf("saved file does not write durations as strings:\n%s", data)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("file mode = %v, want 0600", perm)
		}
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("temporary file left behind: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(loaded, created) {
		t.Errorf("Load() = %+v, want %+v", loaded, created)
	}

	if _, err := CreateDefaultConfig(path); !errors.Is(err, fs.ErrExist) {
		t.Errorf("CreateDefaultConfig() on existing file error = %v, want %v", err, fs.ErrExist)
	}
}

func TestParse_FillsDefaults(t *testing.T) {
	doc := `
version: 1
services:
  - {name: lamp, type: rgbw}
watch:
  - {name: ceiling, type: rgbw, mesh: true}
timing:
  min_interval: 5s
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := NewConfig()
	want.Services = []protocol.Service{{Name: "lamp", Type: "rgbw"}}
	want.Watch = []Watch{{Name: "ceiling", Type: "rgbw", Mesh: true}}
	want.Timing.MinInterval = 5 * time.Second
	// advertise_mdns and diag.listen are explicit switches; absent means off.
	want.Node.AdvertiseMDNS = false
	want.Diag.Listen = ""

	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("Parse() = %+v, want %+v", cfg, want)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "future version",
			doc:  "version: 2\n",
			want: ErrUnsupportedVersion,
		},
		{
			name: "missing version",
			doc:  "services: []\n",
			want: ErrUnsupportedVersion,
		},
		{
			name: "too many services",
			doc:  "version: 1\nservices: [{name: a, type: t}, {name: b, type: t}, {name: c, type: t}]\n",
			want: ErrInvalid,
		},
		{
			name: "long name",
			doc:  "version: 1\nservices: [{name: kitchens, type: t}]\n",
			want: protocol.ErrNameBounds,
		},
		{
			name: "empty watch type",
			doc:  "version: 1\nwatch: [{name: ceiling}]\n",
			want: protocol.ErrNameBounds,
		},
		{
			name: "duplicate watch",
			doc:  "version: 1\nwatch: [{name: a, type: t}, {name: a, type: t, mesh: true}]\n",
			want: ErrInvalid,
		},
		{
			name: "inverted intervals",
			doc:  "version: 1\ntiming: {min_interval: 20m, max_interval: 10m}\n",
			want: ErrInvalid,
		},
		{
			name: "bad listen",
			doc:  "version: 1\nnode: {listen: nowhere}\n",
			want: ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParse_BadYAML(t *testing.T) {
	if _, err := Parse([]byte("version: [1")); err == nil {
		t.Error("Parse() error = nil, want YAML error")
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := NewConfig()
	cfg.Services = []protocol.Service{{Name: "", Type: "rgbw"}}
	cfg.Timing.RoundTimeout = -time.Second

	err := cfg.Validate()
	if !errors.Is(err, protocol.ErrNameBounds) {
		t.Errorf("Validate() error = %v, want %v", err, protocol.ErrNameBounds)
	}
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Validate() error = %v, want %v", err, ErrInvalid)
	}
	if n := len(multierr.Errors(err)); n < 2 {
		t.Errorf("Validate() combined %d errors, want one per problem", n)
	}
}

func TestTiming_Scheduler(t *testing.T) {
	got := NewConfig().Timing.Scheduler()
	if got.MinInterval != 10*time.Second || got.MaxInterval != 10*time.Minute || got.StaleInterval != 31*time.Minute {
		t.Errorf("Timing.Scheduler() = %+v", got)
	}
}
