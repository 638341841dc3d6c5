package sqlgraph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"graphload/internal/graph"
)

type management struct {
	s  *Store
	tx *sql.Tx

	// published to the Store caches on commit.
	keys  []graph.PropertyKey
	edges map[string]graph.Multiplicity
}

func (m *management) ContainsVertexLabel(ctx context.Context, name string) (bool, error) {
	return m.s.exists(ctx, m.tx, `SELECT 1 FROM gl_vertex_label WHERE name = ?`, name)
}

func (m *management) ContainsEdgeLabel(ctx context.Context, name string) (bool, error) {
	return m.s.exists(ctx, m.tx, `SELECT 1 FROM gl_edge_label WHERE name = ?`, name)
}

func (m *management) ContainsPropertyKey(ctx context.Context, name string) (bool, error) {
	return m.s.exists(ctx, m.tx, `SELECT 1 FROM gl_property_key WHERE name = ?`, name)
}

func (m *management) CreateVertexLabel(ctx context.Context, name string) error {
	if err := m.s.exec(ctx, m.tx, `INSERT INTO gl_vertex_label (name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("%s: create vertex label %s: %w", m.s.d.name, name, err)
	}
	return nil
}

func (m *management) CreateEdgeLabel(ctx context.Context, name string, mult graph.Multiplicity) error {
	if err := m.s.exec(ctx, m.tx, `INSERT INTO gl_edge_label (name, multiplicity) VALUES (?, ?)`, name, mult.String()); err != nil {
		return fmt.Errorf("%s: create edge label %s: %w", m.s.d.name, name, err)
	}
	if m.edges == nil {
		m.edges = map[string]graph.Multiplicity{}
	}
	m.edges[name] = mult
	return nil
}

func (m *management) CreatePropertyKey(ctx context.Context, k graph.PropertyKey) error {
	err := m.s.exec(ctx, m.tx, `INSERT INTO gl_property_key (name, datatype, cardinality) VALUES (?, ?, ?)`,
		k.Name, k.DataType.String(), k.Cardinality.String())
	if err != nil {
		return fmt.Errorf("%s: create property key %s: %w", m.s.d.name, k.Name, err)
	}
	m.keys = append(m.keys, k)
	return nil
}

func (m *management) BuildCompositeIndex(ctx context.Context, name string, target graph.Target, key string) error {
	if err := m.s.exec(ctx, m.tx, `INSERT INTO gl_index (name, target, prop_key) VALUES (?, ?, ?)`, name, target.String(), key); err != nil {
		return fmt.Errorf("%s: register index %s: %w", m.s.d.name, name, err)
	}
	table := "gl_vertex_property"
	if target == graph.TargetEdge {
		table = "gl_edge_property"
	}
	ddl := fmt.Sprintf(m.s.d.indexFmt, indexName(name), table, m.s.d.literal(key))
	if _, err := m.tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%s: build index %s: %w", m.s.d.name, name, err)
	}
	return nil
}

func (m *management) Commit(context.Context) error {
	if err := m.tx.Commit(); err != nil {
		return txErr(m.s.d.name, "commit management", err)
	}
	m.s.mu.Lock()
	for _, k := range m.keys {
		m.s.keys[k.Name] = k
	}
	for l, mult := range m.edges {
		m.s.edges[l] = mult
	}
	m.s.mu.Unlock()
	return nil
}

func (m *management) Rollback(context.Context) error {
	if err := m.tx.Rollback(); err != nil {
		return txErr(m.s.d.name, "rollback management", err)
	}
	return nil
}

func txErr(dialect, op string, err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%s: %s: %w", dialect, op, graph.ErrTxDone)
	}
	return fmt.Errorf("%s: %s: %w", dialect, op, err)
}
