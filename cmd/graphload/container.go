package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"graphload/internal/coerce"
	"graphload/internal/config"
	"graphload/internal/datasource"
	"graphload/internal/datasource/file"
	"graphload/internal/datasource/minio"
	"graphload/internal/graph"
	"graphload/internal/importer"
	"graphload/internal/metrics"
	"graphload/internal/metrics/datadog"
	"graphload/internal/metrics/prompush"
	"graphload/internal/workload"
)

// runImport wires the store, workload, source and metrics backend described
// by cfg and runs one import. cfg must already be validated.
func runImport(ctx context.Context, cfg config.Import, log *zap.SugaredLogger) (importer.Report, error) {
	runID := uuid.NewString()
	rep := importer.Report{RunID: runID}

	flush := setupMetrics(cfg.Metrics, runID, log)
	defer flush()

	schema, err := workload.Load(cfg.Workload.Name)
	if err != nil {
		return rep, err
	}
	if err := schema.Validate(); err != nil {
		return rep, fmt.Errorf("workload %s: %w", cfg.Workload.Name, err)
	}

	dir, err := openDir(cfg.Source)
	if err != nil {
		return rep, err
	}

	store, err := graph.Open(ctx, graph.Config{
		Kind:     cfg.Store.Kind,
		DSN:      cfg.Store.DSN,
		Username: cfg.Store.Username,
		Password: cfg.Store.Password,
		MaxConns: cfg.Store.MaxConns,
	})
	if err != nil {
		return rep, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnw("close store", "error", err)
		}
	}()

	delim, _ := utf8.DecodeRuneInString(cfg.Runtime.Delimiter)
	rt := cfg.Runtime
	log.Infow("import starting",
		"run_id", runID,
		"source", dir.Location(),
		"store", cfg.Store.Kind,
		"workload", cfg.Workload.Name,
		"num_threads", rt.NumThreads,
		"transaction_size", rt.TransactionSize,
	)

	im, err := importer.New(importer.Config{
		Store:                store,
		Schema:               schema,
		Registry:             coerce.New(cfg.Workload.TypeSupport(), rt.ArrayDelimiter),
		Dir:                  dir,
		Logger:               log,
		RunID:                runID,
		NumThreads:           rt.NumThreads,
		TransactionSize:      rt.TransactionSize,
		QueueSize:            rt.QueueSize,
		MaxFileWorkers:       rt.MaxFileWorkers,
		StatsInterval:        rt.StatsInterval.D(),
		TaskTimeout:          rt.TaskTimeout.D(),
		LoadVertexProperties: rt.LoadVertexProperties,
		Delimiter:            delim,
	})
	if err != nil {
		return rep, err
	}
	return im.Run(ctx)
}

// openDir builds the input directory named by the source config.
func openDir(s config.Source) (datasource.Dir, error) {
	switch s.Kind {
	case "file":
		return file.NewDir(s.File.Path), nil
	case "minio":
		return minio.New(minio.Config{
			EndpointURL:     s.Minio.Endpoint,
			AccessKeyID:     s.Minio.AccessKeyID,
			SecretAccessKey: s.Minio.SecretAccessKey,
			Region:          s.Minio.Region,
			UseSSL:          s.Minio.UseSSL,
			Bucket:          s.Minio.Bucket,
			Prefix:          s.Minio.Prefix,
		})
	default:
		return nil, fmt.Errorf("unsupported source kind %q", s.Kind)
	}
}

// setupMetrics installs the configured backend and returns the function that
// flushes it. A backend that fails to initialize leaves metrics disabled.
func setupMetrics(m config.Metrics, runID string, log *zap.SugaredLogger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch m.Backend {
	case "prometheus":
		b, err = prompush.NewBackend(m.JobName, m.PushgatewayURL, runID)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr: m.StatsdAddr,
			Tags: append(append([]string(nil), m.Tags...), "run_id:"+runID),
		})
	default:
		log.Debugw("metrics disabled", "backend", m.Backend)
		return func() {}
	}
	if err != nil {
		log.Warnw("metrics backend init failed; using nop", "backend", m.Backend, "error", err)
		return func() {}
	}
	log.Infow("metrics enabled", "backend", m.Backend, "job_name", m.JobName)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warnw("metrics flush", "error", err)
		}
	}
}

// printReport writes the per-file results and the totals of rep to w.
func printReport(w io.Writer, rep importer.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tKIND\tLABEL\tROWS\tCOMMITS\tSTATUS")
	for _, r := range rep.Results {
		status := "ok"
		if r.Err != nil {
			status = "failed: " + r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", r.File, r.Kind, r.Label, r.Rows, r.Commits, status)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "run %s: %d vertices, %d edges, %d vertex properties in %d batches (%s)\n",
		rep.RunID, rep.Stats.Vertices, rep.Stats.Edges, rep.Stats.Properties, rep.Stats.Batches, rep.Stats.Elapsed)
}
