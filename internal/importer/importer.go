// Package importer runs a whole import: it reconciles the store schema,
// partitions the input directory and loads the files in phases, vertices
// first, then edges, then (optionally) vertex properties.
//
// Each phase gets its own pair of pools. The file pool runs one loader task
// per file; the mutation pool applies the batches those tasks submit. A phase
// starts only after both pools of the previous phase have drained, so every
// edge task can resolve the vertices it refers to.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"graphload/internal/coerce"
	"graphload/internal/datasource"
	"graphload/internal/graph"
	"graphload/internal/loader"
	"graphload/internal/metrics"
	"graphload/internal/partition"
	"graphload/internal/pool"
	"graphload/internal/reconcile"
	"graphload/internal/stats"
	"graphload/internal/workload"
)

// Config configures an Importer.
type Config struct {
	Store    graph.Store
	Schema   *workload.Schema
	Registry *coerce.Registry
	Dir      datasource.Dir
	Logger   *zap.SugaredLogger

	// RunID tags logs and the report; empty means a fresh UUID per run.
	RunID string

	// NumThreads is the worker count of the mutation pool.
	NumThreads int
	// TransactionSize is the number of rows per committed batch.
	TransactionSize int
	// QueueSize is the mutation pool's queue capacity; zero means NumThreads.
	QueueSize int
	// MaxFileWorkers caps the file pool; zero means one worker per file.
	MaxFileWorkers int

	StatsInterval        time.Duration
	TaskTimeout          time.Duration
	LoadVertexProperties bool
	Delimiter            rune
}

// Report is the outcome of a run. It is returned even when some files
// failed; Err joins every task failure.
type Report struct {
	RunID     string
	Reconcile reconcile.Result
	Results   []loader.Result
	Stats     stats.Snapshot
	Err       error
}

// Failed returns the results of the tasks that failed.
func (r Report) Failed() []loader.Result {
	var out []loader.Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Importer runs imports. Run may be called more than once.
type Importer struct {
	cfg Config
}

// New validates cfg and returns an Importer.
func New(cfg Config) (*Importer, error) {
	if cfg.Store == nil || cfg.Schema == nil || cfg.Registry == nil || cfg.Dir == nil {
		return nil, errors.New("importer: store, schema, registry and dir are required")
	}
	if cfg.NumThreads < 1 {
		return nil, fmt.Errorf("importer: num threads must be positive, got %d", cfg.NumThreads)
	}
	if cfg.TransactionSize < 1 {
		return nil, fmt.Errorf("importer: transaction size must be positive, got %d", cfg.TransactionSize)
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = cfg.NumThreads
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = stats.DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Importer{cfg: cfg}, nil
}

type phase struct {
	name   string
	groups []partition.Group
}

// Run performs one import. A non-nil error means the run could not start or
// was cancelled: reconciliation failed, the input could not be listed or ctx
// ended. Per-file failures do not stop the run and are reported in
// Report.Err.
func (im *Importer) Run(ctx context.Context) (Report, error) {
	rep := Report{RunID: im.cfg.RunID}
	if rep.RunID == "" {
		rep.RunID = uuid.NewString()
	}
	log := im.cfg.Logger.With("run_id", rep.RunID)

	start := time.Now()
	res, err := reconcile.New(im.cfg.Store, im.cfg.Registry, log).Run(ctx, im.cfg.Schema)
	metrics.RecordStep("reconcile", err, time.Since(start))
	rep.Reconcile = res
	if err != nil {
		return rep, fmt.Errorf("reconcile schema: %w", err)
	}

	names, err := im.cfg.Dir.List(ctx)
	if err != nil {
		return rep, fmt.Errorf("list %s: %w", im.cfg.Dir.Location(), err)
	}
	plan := partition.Partition(names, im.cfg.Schema)
	log.Infow("input partitioned",
		"location", im.cfg.Dir.Location(),
		"listed", len(names),
		"files", plan.Files(),
	)

	st := stats.New()
	ld, err := loader.New(loader.Config{
		Store:           im.cfg.Store,
		Schema:          im.cfg.Schema,
		Registry:        im.cfg.Registry,
		Stats:           st,
		Logger:          log,
		TransactionSize: im.cfg.TransactionSize,
		Delimiter:       im.cfg.Delimiter,
		TaskTimeout:     im.cfg.TaskTimeout,
	})
	if err != nil {
		return rep, err
	}

	reporter := stats.NewReporter(st, im.cfg.StatsInterval, log)
	reporter.Start(ctx)
	defer reporter.Stop()

	phases := []phase{
		{name: "vertices", groups: plan.Vertices},
		{name: "edges", groups: plan.Edges},
	}
	if im.cfg.LoadVertexProperties {
		phases = append(phases, phase{name: "vertex_properties", groups: plan.VertexProperties})
	}

	var merr *multierror.Error
	for _, ph := range phases {
		if err := ctx.Err(); err != nil {
			rep.Stats = st.Snapshot()
			rep.Err = merr.ErrorOrNil()
			return rep, err
		}
		start := time.Now()
		results, poolErr := im.runPhase(ctx, log, ld, ph)
		var phaseErr *multierror.Error
		for _, r := range results {
			if r.Err != nil {
				phaseErr = multierror.Append(phaseErr, r.Err)
			}
		}
		if poolErr != nil {
			phaseErr = multierror.Append(phaseErr, fmt.Errorf("%s: %w", ph.name, poolErr))
		}
		metrics.RecordStep(ph.name, phaseErr.ErrorOrNil(), time.Since(start))
		rep.Results = append(rep.Results, results...)
		if phaseErr != nil {
			merr = multierror.Append(merr, phaseErr.Errors...)
		}
	}

	rep.Stats = st.Snapshot()
	rep.Err = merr.ErrorOrNil()
	log.Infow("import finished",
		"vertices", rep.Stats.Vertices,
		"edges", rep.Stats.Edges,
		"properties", rep.Stats.Properties,
		"batches", rep.Stats.Batches,
		"files", len(rep.Results),
		"failed", len(rep.Failed()),
		"elapsed", rep.Stats.Elapsed,
	)
	return rep, nil
}

// runPhase loads every file of ph and returns one result per file, in
// plan order. The returned error holds pool failures only; task failures
// are in the results.
func (im *Importer) runPhase(ctx context.Context, log *zap.SugaredLogger, ld *loader.Loader, ph phase) ([]loader.Result, error) {
	var files int
	for _, g := range ph.groups {
		files += len(g.Files)
	}
	if files == 0 {
		log.Infow("phase has no files", "phase", ph.name)
		return nil, nil
	}

	workers := files
	if im.cfg.MaxFileWorkers > 0 && im.cfg.MaxFileWorkers < workers {
		workers = im.cfg.MaxFileWorkers
	}
	log.Infow("phase started", "phase", ph.name, "files", files, "file_workers", workers, "mutation_workers", im.cfg.NumThreads)

	mutations := pool.New(ctx, "mutation", im.cfg.NumThreads, im.cfg.QueueSize)
	tasks := pool.New(ctx, "file", workers, files)

	results := make([]loader.Result, 0, files)
	slots := make([]*loader.Result, 0, files)
	var submitErr error
	for _, g := range ph.groups {
		for _, f := range g.Files {
			task := loader.Task{
				Kind:   g.Kind,
				File:   f,
				Source: im.cfg.Dir.Source(f),
				Label:  g.Label,
				Queue:  mutations,
			}
			slot := &loader.Result{File: f, Kind: g.Kind, Label: g.Label}
			slots = append(slots, slot)
			if submitErr != nil {
				slot.Err = fmt.Errorf("%s: not started: %w", f, submitErr)
				continue
			}
			// Results travel through the slot. A panicking task fails its
			// own file only.
			err := tasks.Submit(ctx, func(ctx context.Context) error {
				defer func() {
					if r := recover(); r != nil {
						slot.Err = fmt.Errorf("%s: task panicked: %v", task.File, r)
						log.Errorw("task panicked", "file", task.File, "kind", task.Kind.String(), "panic", r)
					}
				}()
				*slot = ld.Run(ctx, task)
				if slot.Err != nil {
					log.Errorw("task failed", "file", task.File, "kind", task.Kind.String(), "rows", slot.Rows, "error", slot.Err)
				} else {
					log.Infow("task finished", "file", task.File, "kind", task.Kind.String(), "rows", slot.Rows, "commits", slot.Commits, "duration", slot.Duration)
				}
				return nil
			})
			if err != nil {
				submitErr = err
				slot.Err = fmt.Errorf("%s: submit task: %w", f, err)
			}
		}
	}

	// Tasks submit to the mutation pool, so it stops second.
	var merr *multierror.Error
	if err := tasks.Stop(); err != nil {
		merr = multierror.Append(merr, err)
	}
	if err := mutations.Stop(); err != nil {
		merr = multierror.Append(merr, err)
	}
	for _, s := range slots {
		results = append(results, *s)
	}

	ts, ms := tasks.Stats(), mutations.Stats()
	log.Infow("phase finished", "phase", ph.name,
		"tasks", ts.Completed, "batches", ms.Completed, "pool_failures", ts.Failed+ms.Failed)
	return results, merr.ErrorOrNil()
}
