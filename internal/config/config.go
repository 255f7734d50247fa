// Package config loads wikinet run configuration from a file, the
// environment, and command-line flags, in increasing order of precedence.
package config

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/latebit/wikinet/internal/graph"
)

// Error reports an invalid configuration value.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Config holds the full run configuration.
type Config struct {
	Run        RunConfig        `toml:"run" yaml:"run"`
	Source     SourceConfig     `toml:"source" yaml:"source"`
	Oracle     OracleConfig     `toml:"oracle" yaml:"oracle"`
	Store      StoreConfig      `toml:"store" yaml:"store"`
	Checkpoint CheckpointConfig `toml:"checkpoint" yaml:"checkpoint"`
	Events     EventsConfig     `toml:"events" yaml:"events"`
	Metrics    MetricsConfig    `toml:"metrics" yaml:"metrics"`
	Log        LogConfig        `toml:"log" yaml:"log"`
}

// RunConfig describes one exploration.
type RunConfig struct {
	Seed            string  `toml:"seed" yaml:"seed"`
	Threshold       float64 `toml:"threshold" yaml:"threshold"`
	MaxDepth        int     `toml:"max_depth" yaml:"max_depth"`
	Workers         int     `toml:"workers" yaml:"workers"`
	CheckpointEvery int     `toml:"checkpoint_every" yaml:"checkpoint_every"`
	Output          string  `toml:"output" yaml:"output"`
	Format          string  `toml:"format" yaml:"format"` // gexf or json; empty infers from output
}

// SourceConfig selects and tunes the article source.
type SourceConfig struct {
	Kind              string  `toml:"kind" yaml:"kind"` // wikipedia or dir
	Language          string  `toml:"language" yaml:"language"`
	Endpoint          string  `toml:"endpoint" yaml:"endpoint"`
	UserAgent         string  `toml:"user_agent" yaml:"user_agent"`
	Namespace         int     `toml:"namespace" yaml:"namespace"`
	AllNamespaces     bool    `toml:"all_namespaces" yaml:"all_namespaces"`
	Dir               string  `toml:"dir" yaml:"dir"`
	Cache             bool    `toml:"cache" yaml:"cache"`
	CacheDir          string  `toml:"cache_dir" yaml:"cache_dir"`
	CacheMaxAge       string  `toml:"cache_max_age" yaml:"cache_max_age"` // Go duration, empty = forever
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `toml:"burst" yaml:"burst"`
}

// OracleConfig selects the similarity oracle.
type OracleConfig struct {
	Kind          string `toml:"kind" yaml:"kind"` // lexical, openai, or ollama
	Model         string `toml:"model" yaml:"model"`
	URL           string `toml:"url" yaml:"url"`
	APIKey        string `toml:"api_key" yaml:"api_key"`
	MaxInputChars int    `toml:"max_input_chars" yaml:"max_input_chars"`
}

// StoreConfig configures the correlation store.
type StoreConfig struct {
	Path string `toml:"path" yaml:"path"` // badger directory; empty keeps scores in memory
}

// CheckpointConfig configures extra checkpoint destinations.
type CheckpointConfig struct {
	S3Bucket   string `toml:"s3_bucket" yaml:"s3_bucket"`
	S3Key      string `toml:"s3_key" yaml:"s3_key"`
	S3Region   string `toml:"s3_region" yaml:"s3_region"`
	S3Endpoint string `toml:"s3_endpoint" yaml:"s3_endpoint"`
}

// EventsConfig configures progress events.
type EventsConfig struct {
	NATSURL string `toml:"nats_url" yaml:"nats_url"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Addr string `toml:"addr" yaml:"addr"` // e.g. ":9090"; empty disables
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `toml:"format" yaml:"format"`
	Level  string `toml:"level" yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Seed:      "Network theory",
			Threshold: 0.6,
			MaxDepth:  7,
			Workers:   4,
			Output:    "output.gexf",
		},
		Source: SourceConfig{
			Kind:              "wikipedia",
			Language:          "en",
			Cache:             true,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Oracle: OracleConfig{
			Kind: "lexical",
		},
		Checkpoint: CheckpointConfig{
			S3Region: "us-east-1",
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load builds a configuration from the defaults, the optional file at path,
// and WIKINET_* environment variables. It does not validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(c); err != nil {
			return &Error{Field: path, Reason: err.Error()}
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil {
			return &Error{Field: path, Reason: err.Error()}
		}
	default:
		return &Error{Field: path, Reason: "unsupported config file type (want .toml, .yaml or .yml)"}
	}
	return nil
}

// ApplyEnv overrides fields from WIKINET_* environment variables.
func (c *Config) ApplyEnv() {
	c.Run.Seed = getEnv("WIKINET_SEED", c.Run.Seed)
	c.Run.Threshold = getEnvAsFloat("WIKINET_THRESHOLD", c.Run.Threshold)
	c.Run.MaxDepth = getEnvAsInt("WIKINET_MAX_DEPTH", c.Run.MaxDepth)
	c.Run.Workers = getEnvAsInt("WIKINET_WORKERS", c.Run.Workers)
	c.Run.CheckpointEvery = getEnvAsInt("WIKINET_CHECKPOINT_EVERY", c.Run.CheckpointEvery)
	c.Run.Output = getEnv("WIKINET_OUTPUT", c.Run.Output)
	c.Run.Format = getEnv("WIKINET_FORMAT", c.Run.Format)

	c.Source.Kind = getEnv("WIKINET_SOURCE", c.Source.Kind)
	c.Source.Language = getEnv("WIKINET_LANGUAGE", c.Source.Language)
	c.Source.Endpoint = getEnv("WIKINET_ENDPOINT", c.Source.Endpoint)
	c.Source.UserAgent = getEnv("WIKINET_USER_AGENT", c.Source.UserAgent)
	c.Source.Dir = getEnv("WIKINET_DIR", c.Source.Dir)
	c.Source.CacheDir = getEnv("WIKINET_CACHE_DIR", c.Source.CacheDir)
	c.Source.RequestsPerSecond = getEnvAsFloat("WIKINET_REQUESTS_PER_SECOND", c.Source.RequestsPerSecond)

	c.Oracle.Kind = getEnv("WIKINET_ORACLE", c.Oracle.Kind)
	c.Oracle.Model = getEnv("WIKINET_ORACLE_MODEL", c.Oracle.Model)
	c.Oracle.URL = getEnv("WIKINET_ORACLE_URL", c.Oracle.URL)
	c.Oracle.APIKey = getEnv("OPENAI_API_KEY", c.Oracle.APIKey)

	c.Store.Path = getEnv("WIKINET_STORE_PATH", c.Store.Path)

	c.Checkpoint.S3Bucket = getEnv("WIKINET_S3_BUCKET", c.Checkpoint.S3Bucket)
	c.Checkpoint.S3Key = getEnv("WIKINET_S3_KEY", c.Checkpoint.S3Key)
	c.Checkpoint.S3Region = getEnv("WIKINET_S3_REGION", c.Checkpoint.S3Region)
	c.Checkpoint.S3Endpoint = getEnv("WIKINET_S3_ENDPOINT", c.Checkpoint.S3Endpoint)

	c.Events.NATSURL = getEnv("WIKINET_NATS_URL", c.Events.NATSURL)
	c.Metrics.Addr = getEnv("WIKINET_METRICS_ADDR", c.Metrics.Addr)

	c.Log.Format = getEnv("WIKINET_LOG_FORMAT", c.Log.Format)
	c.Log.Level = getEnv("WIKINET_LOG_LEVEL", c.Log.Level)
}

// Validate checks the configuration. It returns a *Error describing the
// first invalid field.
func (c *Config) Validate() error {
	r := c.Run
	switch {
	case strings.TrimSpace(r.Seed) == "":
		return &Error{Field: "run.seed", Reason: "must not be empty"}
	case math.IsNaN(r.Threshold) || r.Threshold <= 0 || r.Threshold > 1:
		return &Error{Field: "run.threshold", Reason: fmt.Sprintf("must be in (0, 1], got %v", r.Threshold)}
	case r.MaxDepth < 1 || r.MaxDepth > graph.MaxDepthLimit:
		return &Error{Field: "run.max_depth", Reason: fmt.Sprintf("must be between 1 and %d, got %d", graph.MaxDepthLimit, r.MaxDepth)}
	case r.Workers < 0:
		return &Error{Field: "run.workers", Reason: "must not be negative"}
	case r.CheckpointEvery < 0:
		return &Error{Field: "run.checkpoint_every", Reason: "must not be negative"}
	case r.Output == "":
		return &Error{Field: "run.output", Reason: "must not be empty"}
	}
	if f := strings.ToLower(r.Format); f != "" && f != "gexf" && f != "json" {
		return &Error{Field: "run.format", Reason: fmt.Sprintf("unknown format %q (want gexf or json)", r.Format)}
	}

	s := c.Source
	switch s.Kind {
	case "wikipedia":
	case "dir":
		if s.Dir == "" {
			return &Error{Field: "source.dir", Reason: "required when source.kind is dir"}
		}
	default:
		return &Error{Field: "source.kind", Reason: fmt.Sprintf("unknown source %q (want wikipedia or dir)", s.Kind)}
	}
	if s.RequestsPerSecond < 0 {
		return &Error{Field: "source.requests_per_second", Reason: "must not be negative"}
	}
	if s.Burst < 0 {
		return &Error{Field: "source.burst", Reason: "must not be negative"}
	}
	if _, err := c.CacheMaxAge(); err != nil {
		return &Error{Field: "source.cache_max_age", Reason: err.Error()}
	}

	o := c.Oracle
	switch o.Kind {
	case "lexical", "ollama":
	case "openai":
		if o.APIKey == "" {
			return &Error{Field: "oracle.api_key", Reason: "required for the openai oracle (set OPENAI_API_KEY)"}
		}
	default:
		return &Error{Field: "oracle.kind", Reason: fmt.Sprintf("unknown oracle %q (want lexical, openai or ollama)", o.Kind)}
	}
	if o.MaxInputChars < 0 {
		return &Error{Field: "oracle.max_input_chars", Reason: "must not be negative"}
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return &Error{Field: "log.level", Reason: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return &Error{Field: "log.format", Reason: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	return nil
}

// CacheMaxAge parses source.cache_max_age. Zero means entries never expire.
func (c *Config) CacheMaxAge() (time.Duration, error) {
	if c.Source.CacheMaxAge == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Source.CacheMaxAge)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative, got %s", d)
	}
	return d, nil
}

// OutputFormat returns the checkpoint format, inferring it from the output
// path when unset.
func (c *Config) OutputFormat() string {
	if c.Run.Format != "" {
		return strings.ToLower(c.Run.Format)
	}
	if strings.EqualFold(filepath.Ext(c.Run.Output), ".json") {
		return "json"
	}
	return "gexf"
}

// S3Key returns the object key for S3 checkpoints, defaulting to the output
// file name.
func (c *Config) S3Key() string {
	if c.Checkpoint.S3Key != "" {
		return c.Checkpoint.S3Key
	}
	return filepath.Base(c.Run.Output)
}

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
