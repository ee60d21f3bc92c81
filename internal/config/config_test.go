package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func lookup(env map[string]string) func(string) string {
	return func(k string) string { return env[k] }
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := fromLookup(lookup(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Config{
		HTTPAddr:  DefaultHTTPAddr,
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		DataPath:  DefaultDataPath,
		Watch:     true,
		Manifest:  DefaultManifest(),
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestFromLookup_Overrides(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.yaml")
	body := `
dataset:
  label: EU VCs
aliases:
  Firm Name: name
map:
  zoom: 5
`
	if err := os.WriteFile(manifest, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	cfg, err := fromLookup(lookup(map[string]string{
		"HTTP_ADDR":      ":9000",
		"LOG_LEVEL":      "debug",
		"VCMAP_DATA":     "/data/firms.csv",
		"VCMAP_MANIFEST": manifest,
		"VCMAP_WATCH":    "off",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":9000" || cfg.LogLevel != "debug" || cfg.DataPath != "/data/firms.csv" || cfg.Watch {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Manifest.Dataset.Label != "EU VCs" {
		t.Fatalf("expected label override, got %q", cfg.Manifest.Dataset.Label)
	}
	if cfg.Manifest.Dataset.Updated != DefaultDatasetUpdated {
		t.Fatalf("expected default updated, got %q", cfg.Manifest.Dataset.Updated)
	}
	if cfg.Manifest.Aliases["Firm Name"] != "name" {
		t.Fatalf("expected alias, got %v", cfg.Manifest.Aliases)
	}
	if cfg.Manifest.Map.Zoom != 5 || cfg.Manifest.Map.HeatmapPrecision != DefaultHeatmapPrecision {
		t.Fatalf("unexpected map settings %+v", cfg.Manifest.Map)
	}
}

func TestFromLookup_BadWatch(t *testing.T) {
	if _, err := fromLookup(lookup(map[string]string{"VCMAP_WATCH": "sometimes"})); err == nil {
		t.Fatalf("expected error for invalid VCMAP_WATCH")
	}
}

func TestFromLookup_MissingManifest(t *testing.T) {
	_, err := fromLookup(lookup(map[string]string{"VCMAP_MANIFEST": filepath.Join(t.TempDir(), "nope.yaml")}))
	if err == nil {
		t.Fatalf("expected error for missing manifest")
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	if _, err := ParseManifest([]byte("dataset: [")); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("VCMAP_TEST_DOTENV=from-file\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("VCMAP_TEST_DOTENV", "")
	os.Unsetenv("VCMAP_TEST_DOTENV")

	LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env"))
	if got := os.Getenv("VCMAP_TEST_DOTENV"); got != "from-file" {
		t.Fatalf("expected value from .env, got %q", got)
	}
}
