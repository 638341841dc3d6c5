// Package reconcile brings a graph store's schema into agreement with a
// declared workload schema, creating only what is missing.
//
// Every create step (a vertex label, an edge label, or a property key together
// with its composite index) runs in its own management transaction. Steps
// whose element already exists roll back without mutating anything, so a
// second run against a reconciled store is a no-op.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"graphload/internal/coerce"
	"graphload/internal/graph"
	"graphload/internal/workload"
)

// IndexPrefix prefixes the name of every composite index.
const IndexPrefix = "by"

// indexed lists the property names that get a composite index.
var indexed = map[string]bool{"id": true, "creationDate": true}

// indexTarget scopes every composite index, edge property indexes
// included.
const indexTarget = graph.TargetVertex

// Result counts what a run created or skipped.
type Result struct {
	VertexLabels int
	EdgeLabels   int
	PropertyKeys int
	Indexes      int
	// Skipped holds "<label>.<property>" for properties whose type is not
	// supported.
	Skipped []string
}

// Created is the total number of schema elements created.
func (r Result) Created() int {
	return r.VertexLabels + r.EdgeLabels + r.PropertyKeys + r.Indexes
}

// Reconciler creates missing schema elements on a Store.
type Reconciler struct {
	Store    graph.Store
	Registry *coerce.Registry
	Logger   *zap.SugaredLogger
}

// New returns a Reconciler. A nil logger discards output.
func New(store graph.Store, reg *coerce.Registry, logger *zap.SugaredLogger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Reconciler{Store: store, Registry: reg, Logger: logger}
}

// Run reconciles s against the store. Unsupported property types are logged
// and skipped; any store error aborts the run.
func (r *Reconciler) Run(ctx context.Context, s *workload.Schema) (Result, error) {
	var res Result

	for _, label := range s.VertexLabels() {
		created, err := r.step(ctx, func(m graph.Management) (bool, error) {
			ok, err := m.ContainsVertexLabel(ctx, label)
			if err != nil || ok {
				return false, err
			}
			return true, m.CreateVertexLabel(ctx, label)
		})
		if err != nil {
			return res, fmt.Errorf("vertex label %s: %w", label, err)
		}
		if created {
			res.VertexLabels++
			r.Logger.Infow("created vertex label", "label", label)
		}
	}

	for _, label := range s.Edges {
		created, err := r.step(ctx, func(m graph.Management) (bool, error) {
			ok, err := m.ContainsEdgeLabel(ctx, label)
			if err != nil || ok {
				return false, err
			}
			return true, m.CreateEdgeLabel(ctx, label, graph.Simple)
		})
		if err != nil {
			return res, fmt.Errorf("edge label %s: %w", label, err)
		}
		if created {
			res.EdgeLabels++
			r.Logger.Infow("created edge label", "label", label)
		}
	}

	for _, label := range s.VertexLabels() {
		for _, p := range s.Vertices[label] {
			if err := r.property(ctx, &res, label, p); err != nil {
				return res, err
			}
		}
	}
	for _, label := range s.Edges {
		for _, p := range s.EdgeProperties[label] {
			if err := r.property(ctx, &res, label, p); err != nil {
				return res, err
			}
		}
	}

	// Top-level commit closing the reconciliation.
	m, err := r.Store.OpenManagement(ctx)
	if err != nil {
		return res, fmt.Errorf("open management: %w", err)
	}
	if err := m.Commit(ctx); err != nil {
		return res, fmt.Errorf("final commit: %w", err)
	}

	r.Logger.Infow("schema reconciled",
		"vertex_labels", res.VertexLabels,
		"edge_labels", res.EdgeLabels,
		"property_keys", res.PropertyKeys,
		"indexes", res.Indexes,
		"skipped", len(res.Skipped),
	)
	return res, nil
}

func (r *Reconciler) property(ctx context.Context, res *Result, label string, p workload.Property) error {
	key, err := r.Registry.PropertyKey(label, p)
	if errors.Is(err, workload.ErrUnsupportedType) {
		res.Skipped = append(res.Skipped, workload.Key(label, p.Name))
		r.Logger.Warnw("skipping property with unsupported type",
			"key", workload.Key(label, p.Name), "type", p.Type.String())
		return nil
	}
	if err != nil {
		return err
	}

	var withIndex bool
	created, err := r.step(ctx, func(m graph.Management) (bool, error) {
		ok, err := m.ContainsPropertyKey(ctx, key.Name)
		if err != nil || ok {
			return false, err
		}
		if err := m.CreatePropertyKey(ctx, key); err != nil {
			return true, err
		}
		if indexed[p.Name] {
			withIndex = true
			return true, m.BuildCompositeIndex(ctx, IndexPrefix+key.Name, indexTarget, key.Name)
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("property key %s: %w", key.Name, err)
	}
	if !created {
		return nil
	}
	res.PropertyKeys++
	r.Logger.Infow("created property key",
		"key", key.Name, "datatype", key.DataType.String(), "cardinality", key.Cardinality.String())
	if withIndex {
		res.Indexes++
		r.Logger.Infow("built composite index", "index", IndexPrefix+key.Name, "target", indexTarget.String())
	}
	return nil
}

// step runs fn in a fresh management transaction. The transaction commits
// when fn reports a change and rolls back otherwise or on error.
func (r *Reconciler) step(ctx context.Context, fn func(graph.Management) (bool, error)) (bool, error) {
	m, err := r.Store.OpenManagement(ctx)
	if err != nil {
		return false, fmt.Errorf("open management: %w", err)
	}
	changed, err := fn(m)
	if err != nil || !changed {
		if rbErr := m.Rollback(ctx); rbErr != nil && err == nil {
			err = rbErr
		}
		return false, err
	}
	if err := m.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
