package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults applied to fields left empty.
const (
	DefaultSourceKind     = "file"
	DefaultStoreKind      = "memory"
	DefaultWorkload       = "interactive"
	DefaultDelimiter      = "|"
	DefaultArrayDelimiter = ";"
	DefaultStatsInterval  = 5 * time.Second
	DefaultMetricsBackend = "none"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
)

// Environment variables that override the document.
const (
	EnvNumThreads      = "GRAPHLOAD_NUM_THREADS"
	EnvTransactionSize = "GRAPHLOAD_TRANSACTION_SIZE"
	EnvStoreDSN        = "GRAPHLOAD_STORE_DSN"
	EnvLogLevel        = "GRAPHLOAD_LOG_LEVEL"
)

// Load reads path, decodes it by extension (.json, .yaml/.yml, .toml),
// applies environment overrides and fills defaults. It does not validate;
// call Validate on the result.
func Load(path string) (Import, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Import{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Decode(b, filepath.Ext(path))
	if err != nil {
		return Import{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Import{}, err
	}
	cfg.SetDefaults()
	return cfg, nil
}

// Decode decodes b in the format named by ext. Unknown fields are errors in
// every format.
func Decode(b []byte, ext string) (Import, error) {
	var cfg Import
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode yaml: %w", err)
		}
	case ".toml":
		md, err := toml.Decode(string(b), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("decode toml: %w", err)
		}
		if und := md.Undecoded(); len(und) > 0 {
			return cfg, fmt.Errorf("decode toml: unknown field %s", und[0].String())
		}
	case ".json", "":
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode json: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GRAPHLOAD_* variables found by lookup.
func (c *Import) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvNumThreads); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvNumThreads, err)
		}
		c.Runtime.NumThreads = n
	}
	if v, ok := lookup(EnvTransactionSize); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTransactionSize, err)
		}
		c.Runtime.TransactionSize = n
	}
	if v, ok := lookup(EnvStoreDSN); ok {
		c.Store.DSN = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = v
	}
	return nil
}

// SetDefaults fills empty optional fields.
func (c *Import) SetDefaults() {
	if c.Source.Kind == "" {
		c.Source.Kind = DefaultSourceKind
	}
	if c.Store.Kind == "" {
		c.Store.Kind = DefaultStoreKind
	}
	if c.Workload.Name == "" {
		c.Workload.Name = DefaultWorkload
	}
	r := &c.Runtime
	if r.QueueSize == 0 {
		r.QueueSize = r.NumThreads
	}
	if r.StatsInterval == 0 {
		r.StatsInterval = Duration(DefaultStatsInterval)
	}
	if r.Delimiter == "" {
		r.Delimiter = DefaultDelimiter
	}
	if r.ArrayDelimiter == "" {
		r.ArrayDelimiter = DefaultArrayDelimiter
	}
	if c.Metrics.Backend == "" {
		c.Metrics.Backend = DefaultMetricsBackend
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
