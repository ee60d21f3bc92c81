// Package config resolves runtime settings from the environment and the
// optional dataset manifest.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHTTPAddr         = ":8081"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultDataPath         = "VC_Map_Final_Reliable.csv"
	DefaultDatasetLabel     = "US VCs v1.0"
	DefaultDatasetUpdated   = "Feb 2026"
	DefaultZoom             = 3.5
	DefaultHeatmapPrecision = 4
)

type Config struct {
	HTTPAddr     string
	LogLevel     string
	LogFormat    string
	DataPath     string
	ManifestPath string
	Watch        bool
	Manifest     Manifest
}

// Manifest describes the dataset being served. It is read from YAML.
type Manifest struct {
	Dataset DatasetInfo       `yaml:"dataset"`
	Aliases map[string]string `yaml:"aliases"`
	Map     MapSettings       `yaml:"map"`
}

type DatasetInfo struct {
	Label   string `yaml:"label"`
	Updated string `yaml:"updated"`
}

type MapSettings struct {
	Zoom             float64 `yaml:"zoom"`
	HeatmapPrecision int     `yaml:"heatmap_precision"`
}

func DefaultManifest() Manifest {
	return Manifest{
		Dataset: DatasetInfo{Label: DefaultDatasetLabel, Updated: DefaultDatasetUpdated},
		Map:     MapSettings{Zoom: DefaultZoom, HeatmapPrecision: DefaultHeatmapPrecision},
	}
}

// LoadDotEnv loads .env files when they exist. Variables already set in the
// process environment win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// FromEnv reads settings from the process environment and loads the manifest
// when VCMAP_MANIFEST is set.
func FromEnv() (Config, error) {
	return fromLookup(os.Getenv)
}

func fromLookup(getenv func(string) string) (Config, error) {
	envOr := func(key, fallback string) string {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return fallback
		}
		return v
	}

	watch, err := parseBool(envOr("VCMAP_WATCH", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("VCMAP_WATCH: %w", err)
	}

	cfg := Config{
		HTTPAddr:     envOr("HTTP_ADDR", DefaultHTTPAddr),
		LogLevel:     envOr("LOG_LEVEL", DefaultLogLevel),
		LogFormat:    envOr("LOG_FORMAT", DefaultLogFormat),
		DataPath:     envOr("VCMAP_DATA", DefaultDataPath),
		ManifestPath: envOr("VCMAP_MANIFEST", ""),
		Watch:        watch,
		Manifest:     DefaultManifest(),
	}
	if err := cfg.LoadManifest(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadManifest reads ManifestPath, if set, over the defaults.
func (c *Config) LoadManifest() error {
	c.Manifest = DefaultManifest()
	if c.ManifestPath == "" {
		return nil
	}
	b, err := os.ReadFile(c.ManifestPath)
	if err != nil {
		return fmt.Errorf("read manifest %q: %w", c.ManifestPath, err)
	}
	m, err := ParseManifest(b)
	if err != nil {
		return fmt.Errorf("parse manifest %q: %w", c.ManifestPath, err)
	}
	c.Manifest = m
	return nil
}

// ParseManifest decodes YAML and fills unset fields with defaults.
func ParseManifest(b []byte) (Manifest, error) {
	m := DefaultManifest()
	if err := yaml.Unmarshal(b, &m); err != nil {
		return Manifest{}, err
	}
	def := DefaultManifest()
	if strings.TrimSpace(m.Dataset.Label) == "" {
		m.Dataset.Label = def.Dataset.Label
	}
	if strings.TrimSpace(m.Dataset.Updated) == "" {
		m.Dataset.Updated = def.Dataset.Updated
	}
	if m.Map.Zoom <= 0 {
		m.Map.Zoom = def.Map.Zoom
	}
	if m.Map.HeatmapPrecision <= 0 || m.Map.HeatmapPrecision > 12 {
		m.Map.HeatmapPrecision = def.Map.HeatmapPrecision
	}
	return m, nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(v)
}
