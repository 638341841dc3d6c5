// Package config defines the configuration model for one import run. A run
// is described by a single Import document, decoded from JSON, YAML or TOML
// (selected by file extension) and then adjusted by GRAPHLOAD_* environment
// variables.
//
// Example (JSON, trimmed):
//
//	{
//	  "source":   { "kind": "file", "file": { "path": "/data/social_network" } },
//	  "store":    { "kind": "sqlite", "dsn": "graph.db" },
//	  "workload": { "name": "interactive" },
//	  "runtime":  { "num_threads": 8, "transaction_size": 1000 }
//	}
package config

import (
	"fmt"
	"time"

	"graphload/internal/workload"
)

// Import is the top-level configuration document.
type Import struct {
	Source   Source        `json:"source" yaml:"source" toml:"source"`
	Store    Store         `json:"store" yaml:"store" toml:"store"`
	Workload Workload      `json:"workload" yaml:"workload" toml:"workload"`
	Runtime  RuntimeConfig `json:"runtime" yaml:"runtime" toml:"runtime"`
	Metrics  Metrics       `json:"metrics" yaml:"metrics" toml:"metrics"`
	Log      Log           `json:"log" yaml:"log" toml:"log"`
}

// Source says where the input files live.
type Source struct {
	// Kind is "file" (a local directory) or "minio" (an S3-compatible
	// bucket prefix).
	Kind  string      `json:"kind" yaml:"kind" toml:"kind"`
	File  SourceFile  `json:"file" yaml:"file" toml:"file"`
	Minio SourceMinio `json:"minio" yaml:"minio" toml:"minio"`
}

// SourceFile configures the "file" source.
type SourceFile struct {
	// Path is the directory holding the CSV files.
	Path string `json:"path" yaml:"path" toml:"path"`
}

// SourceMinio configures the "minio" source.
type SourceMinio struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id" toml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key" toml:"secret_access_key"`
	Region          string `json:"region" yaml:"region" toml:"region"`
	UseSSL          bool   `json:"use_ssl" yaml:"use_ssl" toml:"use_ssl"`
	Bucket          string `json:"bucket" yaml:"bucket" toml:"bucket"`
	Prefix          string `json:"prefix" yaml:"prefix" toml:"prefix"`
}

// Store selects the graph store backend.
type Store struct {
	// Kind is one of memory, sqlite, mssql, postgres, neo4j.
	Kind     string `json:"kind" yaml:"kind" toml:"kind"`
	DSN      string `json:"dsn" yaml:"dsn" toml:"dsn"`
	Username string `json:"username" yaml:"username" toml:"username"`
	Password string `json:"password" yaml:"password" toml:"password"`
	MaxConns int    `json:"max_conns" yaml:"max_conns" toml:"max_conns"`
}

// Workload selects the schema to load.
type Workload struct {
	// Name is a built-in workload ("interactive") or a path to a YAML
	// workload file.
	Name string `json:"name" yaml:"name" toml:"name"`
	// DisabledTypes lists scalar types the target store cannot hold.
	// Properties of these types are skipped.
	DisabledTypes []string `json:"disabled_types" yaml:"disabled_types" toml:"disabled_types"`
}

// TypeSupport returns the default type-support table minus DisabledTypes.
func (w Workload) TypeSupport() workload.TypeSupport {
	ts := workload.DefaultTypeSupport()
	for _, t := range w.DisabledTypes {
		if vt, err := workload.ParseValueType(t); err == nil {
			delete(ts, vt.Scalar)
		}
	}
	return ts
}

// RuntimeConfig controls concurrency and batching. NumThreads and
// TransactionSize are required and fixed for the run.
type RuntimeConfig struct {
	NumThreads      int `json:"num_threads" yaml:"num_threads" toml:"num_threads"`
	TransactionSize int `json:"transaction_size" yaml:"transaction_size" toml:"transaction_size"`
	// QueueSize is the mutation queue capacity; defaults to NumThreads.
	QueueSize int `json:"queue_size" yaml:"queue_size" toml:"queue_size"`
	// MaxFileWorkers caps concurrent file tasks; 0 means one per file.
	MaxFileWorkers int `json:"max_file_workers" yaml:"max_file_workers" toml:"max_file_workers"`

	StatsInterval Duration `json:"stats_interval" yaml:"stats_interval" toml:"stats_interval"`
	TaskTimeout   Duration `json:"task_timeout" yaml:"task_timeout" toml:"task_timeout"`

	LoadVertexProperties bool   `json:"load_vertex_properties" yaml:"load_vertex_properties" toml:"load_vertex_properties"`
	Delimiter            string `json:"delimiter" yaml:"delimiter" toml:"delimiter"`
	ArrayDelimiter       string `json:"array_delimiter" yaml:"array_delimiter" toml:"array_delimiter"`
}

// Metrics selects a metrics backend.
type Metrics struct {
	// Backend is "none", "prometheus" or "datadog".
	Backend        string   `json:"backend" yaml:"backend" toml:"backend"`
	JobName        string   `json:"job_name" yaml:"job_name" toml:"job_name"`
	PushgatewayURL string   `json:"pushgateway_url" yaml:"pushgateway_url" toml:"pushgateway_url"`
	StatsdAddr     string   `json:"statsd_addr" yaml:"statsd_addr" toml:"statsd_addr"`
	Tags           []string `json:"tags" yaml:"tags" toml:"tags"`
}

// Log configures the logger.
type Log struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}
