package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"graphload/internal/workload"
)

// IssueSeverity is the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block the run.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one validation finding. Path is a dotted path into the document
// ("runtime.num_threads").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

var knownStores = map[string]bool{"memory": true, "sqlite": true, "mssql": true, "mysql": true, "postgres": true, "neo4j": true}

// Validate lints c. It does not mutate it.
func Validate(c Import) []Issue {
	var issues []Issue
	issues = append(issues, validateSource(c.Source)...)
	issues = append(issues, validateStore(c.Store)...)
	issues = append(issues, validateWorkload(c.Workload)...)
	issues = append(issues, validateRuntime(c.Runtime)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	issues = append(issues, validateLog(c.Log)...)
	return issues
}

func errorAt(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}

func warningAt(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)}
}

func validateSource(s Source) []Issue {
	var issues []Issue
	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, errorAt("source.file.path", "file source requires a non-empty path"))
		}
	case "minio":
		if s.Minio.Endpoint == "" {
			issues = append(issues, errorAt("source.minio.endpoint", "minio source requires an endpoint"))
		}
		if s.Minio.Bucket == "" {
			issues = append(issues, errorAt("source.minio.bucket", "minio source requires a bucket"))
		}
		if s.Minio.AccessKeyID == "" {
			issues = append(issues, warningAt("source.minio.access_key_id", "no access key; requests will be anonymous"))
		}
	case "":
		issues = append(issues, errorAt("source.kind", "source.kind must not be empty"))
	default:
		issues = append(issues, errorAt("source.kind", "unknown source kind %q; want file or minio", s.Kind))
	}
	return issues
}

func validateStore(s Store) []Issue {
	var issues []Issue
	if !knownStores[s.Kind] {
		issues = append(issues, errorAt("store.kind", "unknown store kind %q", s.Kind))
		return issues
	}
	if s.Kind != "memory" && strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, errorAt("store.dsn", "%s store requires a dsn", s.Kind))
	}
	if s.Kind == "memory" {
		issues = append(issues, warningAt("store.kind", "memory store discards the graph when the run ends"))
	}
	if s.MaxConns < 0 {
		issues = append(issues, errorAt("store.max_conns", "must not be negative"))
	}
	return issues
}

func validateWorkload(w Workload) []Issue {
	var issues []Issue
	if strings.TrimSpace(w.Name) == "" {
		issues = append(issues, errorAt("workload.name", "workload.name must not be empty"))
	}
	for i, t := range w.DisabledTypes {
		if _, err := workload.ParseValueType(t); err != nil {
			issues = append(issues, errorAt(fmt.Sprintf("workload.disabled_types[%d]", i), "%v", err))
		}
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	if r.NumThreads < 1 {
		issues = append(issues, errorAt("runtime.num_threads", "must be a positive integer, got %d", r.NumThreads))
	}
	if r.TransactionSize < 1 {
		issues = append(issues, errorAt("runtime.transaction_size", "must be a positive integer, got %d", r.TransactionSize))
	}
	if r.QueueSize < 0 {
		issues = append(issues, errorAt("runtime.queue_size", "must not be negative"))
	}
	if r.MaxFileWorkers < 0 {
		issues = append(issues, errorAt("runtime.max_file_workers", "must not be negative"))
	}
	if r.StatsInterval < 0 {
		issues = append(issues, errorAt("runtime.stats_interval", "must not be negative"))
	}
	if r.TaskTimeout < 0 {
		issues = append(issues, errorAt("runtime.task_timeout", "must not be negative"))
	}
	if utf8.RuneCountInString(r.Delimiter) != 1 {
		issues = append(issues, errorAt("runtime.delimiter", "must be a single character, got %q", r.Delimiter))
	}
	if r.ArrayDelimiter == "" {
		issues = append(issues, errorAt("runtime.array_delimiter", "must not be empty"))
	} else if r.ArrayDelimiter == r.Delimiter {
		issues = append(issues, errorAt("runtime.array_delimiter", "must differ from runtime.delimiter"))
	}
	if r.TransactionSize > 100000 {
		issues = append(issues, warningAt("runtime.transaction_size", "very large transactions (%d rows) hold locks for a long time", r.TransactionSize))
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "prometheus":
		if m.PushgatewayURL == "" {
			issues = append(issues, errorAt("metrics.pushgateway_url", "prometheus backend requires a pushgateway_url"))
		}
	case "datadog":
		if m.StatsdAddr == "" {
			issues = append(issues, warningAt("metrics.statsd_addr", "empty; the client falls back to DD_AGENT_HOST"))
		}
	default:
		issues = append(issues, errorAt("metrics.backend", "unknown metrics backend %q", m.Backend))
	}
	return issues
}

func validateLog(l Log) []Issue {
	var issues []Issue
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, errorAt("log.level", "unknown level %q", l.Level))
	}
	switch l.Format {
	case "", "console", "json":
	default:
		issues = append(issues, errorAt("log.format", "unknown format %q", l.Format))
	}
	return issues
}
