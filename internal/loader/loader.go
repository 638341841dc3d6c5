// Package loader implements the per-file load task. A task streams one
// delimited file, validates its header against the workload schema, coerces
// each record and applies the records in transactions of a fixed size.
//
// Parsing happens on the task's own goroutine (a file-pool worker). Each
// full batch is handed to the mutation pool, and the task waits for that
// batch's commit before it starts the next one, so a task has at most one
// batch in flight and never shares a transaction.
package loader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"graphload/internal/coerce"
	"graphload/internal/datasource"
	"graphload/internal/graph"
	"graphload/internal/metrics"
	"graphload/internal/pool"
	"graphload/internal/stats"
	"graphload/internal/workload"
)

// DefaultDelimiter separates fields in input files.
const DefaultDelimiter = '|'

// Queue accepts mutation batches. *pool.Pool satisfies it.
type Queue interface {
	Submit(ctx context.Context, job pool.Job) error
}

// Task is one file to load. It is immutable once created and owned by the
// worker that runs it.
type Task struct {
	Kind workload.Kind
	// File is the file's name, used in errors and reports.
	File   string
	Source datasource.Source
	// Label is the vertex label, the edge triple ("Person.knows.Person") or
	// the vertex property reference ("Person.email").
	Label string
	// Queue receives the task's mutation batches.
	Queue Queue
}

// Result is the outcome of one task.
type Result struct {
	File     string
	Kind     workload.Kind
	Label    string
	Rows     int64
	Commits  int
	Duration time.Duration
	Err      error
}

// Config configures a Loader.
type Config struct {
	Store    graph.Store
	Schema   *workload.Schema
	Registry *coerce.Registry
	Stats    *stats.LoadingStats
	Logger   *zap.SugaredLogger

	// TransactionSize is the number of rows committed per transaction.
	TransactionSize int
	// Delimiter separates fields; zero means DefaultDelimiter.
	Delimiter rune
	// TaskTimeout bounds a whole task; zero means no limit.
	TaskTimeout time.Duration
}

// Loader runs tasks. It is safe for concurrent use by many file workers.
type Loader struct {
	cfg Config
}

// New validates cfg and returns a Loader.
func New(cfg Config) (*Loader, error) {
	if cfg.Store == nil || cfg.Schema == nil || cfg.Registry == nil {
		return nil, errors.New("loader: store, schema and registry are required")
	}
	if cfg.TransactionSize < 1 {
		return nil, fmt.Errorf("loader: transaction size must be positive, got %d", cfg.TransactionSize)
	}
	if cfg.Delimiter == 0 {
		cfg.Delimiter = DefaultDelimiter
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Loader{cfg: cfg}, nil
}

// Run executes t and returns its result. A failed task reports the error in
// Result.Err; rows committed before the failure stay committed and are
// counted in Rows.
func (l *Loader) Run(ctx context.Context, t Task) (res Result) {
	start := time.Now()
	res = Result{File: t.File, Kind: t.Kind, Label: t.Label}
	defer func() {
		res.Duration = time.Since(start)
		metrics.RecordTask(t.Kind.String(), res.Err)
	}()

	if l.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.TaskTimeout)
		defer cancel()
	}

	res.Err = l.run(ctx, t, &res)
	return res
}

func (l *Loader) run(ctx context.Context, t Task, res *Result) error {
	if t.Source == nil || t.Queue == nil {
		return fmt.Errorf("%s: task has no source or queue", t.File)
	}
	v, err := newVariant(t, l.cfg.Schema, l.cfg.Registry)
	if err != nil {
		return err
	}

	rc, err := t.Source.Open(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", t.File, err)
	}
	defer rc.Close()

	lr := newLineReader(transform.NewReader(rc, unicode.BOMOverride(transform.Nop)), l.cfg.Delimiter)

	header, _, err := lr.next()
	if err == io.EOF {
		return violation(t.File, "empty file")
	}
	if err != nil {
		return fmt.Errorf("%s: read header: %w", t.File, err)
	}
	if err := v.validateHeader(header); err != nil {
		return err
	}

	batch := make([]row, 0, l.cfg.TransactionSize)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", t.File, err)
		}
		rec, line, err := lr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%s: read after line %d: %w", t.File, line, err)
		}
		r, err := v.parseRow(rec)
		if err != nil {
			return &RowError{File: t.File, Line: line, Err: err}
		}
		r.line = line
		batch = append(batch, r)

		if len(batch) == l.cfg.TransactionSize {
			if err := l.commit(ctx, t, v, batch, res); err != nil {
				return err
			}
			batch = make([]row, 0, l.cfg.TransactionSize)
		}
	}
	if len(batch) > 0 {
		return l.commit(ctx, t, v, batch, res)
	}
	return nil
}

// lineReader splits each physical line on the field delimiter. Quote
// characters carry no meaning and stay part of the value.
type lineReader struct {
	r    *bufio.Reader
	sep  string
	line int
}

func newLineReader(r io.Reader, delim rune) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64<<10), sep: string(delim)}
}

// next returns the fields of the next non-empty line and its 1-based line
// number. It returns io.EOF after the last line.
func (lr *lineReader) next() ([]string, int, error) {
	for {
		s, err := lr.r.ReadString('\n')
		if err != nil && (err != io.EOF || s == "") {
			return nil, lr.line, err
		}
		lr.line++
		s = strings.TrimRight(s, "\r\n")
		if s == "" {
			continue
		}
		return strings.Split(s, lr.sep), lr.line, nil
	}
}

// commit submits batch to the task's queue and waits for the outcome.
func (l *Loader) commit(ctx context.Context, t Task, v variant, batch []row, res *Result) error {
	done := make(chan error, 1)
	err := t.Queue.Submit(ctx, func(context.Context) error {
		done <- l.apply(ctx, t, v, batch)
		// The task reports the failure; the pool only sees successes.
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: submit batch: %w", t.File, err)
	}
	if err := <-done; err != nil {
		return err
	}

	n := int64(len(batch))
	res.Rows += n
	res.Commits++
	l.cfg.Stats.Add(t.Kind, n)
	l.cfg.Logger.Debugw("batch committed",
		"file", t.File, "rows", n, "commits", res.Commits, "file_rows", res.Rows)
	return nil
}

// apply runs batch in one store transaction.
func (l *Loader) apply(ctx context.Context, t Task, v variant, batch []row) (err error) {
	start := time.Now()
	var tx graph.Tx
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: batch panicked: %v\n%s", t.File, r, debug.Stack())
		}
		if err != nil && tx != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", t.File, err)
	}
	tx, err = l.cfg.Store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", t.File, err)
	}
	for _, r := range batch {
		if err := v.applyRow(ctx, tx, r); err != nil {
			return &RowError{File: t.File, Line: r.line, Err: err}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		// A failed commit leaves nothing to roll back.
		tx = nil
		return fmt.Errorf("%s: commit batch ending line %d: %w", t.File, batch[len(batch)-1].line, err)
	}
	metrics.RecordBatch(t.Kind.String(), time.Since(start))
	return nil
}
