package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"graphload/internal/graph"
)

type management struct {
	s  *Store
	tx pgx.Tx

	keys  []graph.PropertyKey
	edges map[string]graph.Multiplicity
}

func (m *management) ContainsVertexLabel(ctx context.Context, name string) (bool, error) {
	return exists(ctx, m.tx, `SELECT 1 FROM gl_vertex_label WHERE name = $1`, name)
}

func (m *management) ContainsEdgeLabel(ctx context.Context, name string) (bool, error) {
	return exists(ctx, m.tx, `SELECT 1 FROM gl_edge_label WHERE name = $1`, name)
}

func (m *management) ContainsPropertyKey(ctx context.Context, name string) (bool, error) {
	return exists(ctx, m.tx, `SELECT 1 FROM gl_property_key WHERE name = $1`, name)
}

func (m *management) CreateVertexLabel(ctx context.Context, name string) error {
	if _, err := m.tx.Exec(ctx, `INSERT INTO gl_vertex_label (name) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("postgres: create vertex label %s: %w", name, pgErr(err))
	}
	return nil
}

func (m *management) CreateEdgeLabel(ctx context.Context, name string, mult graph.Multiplicity) error {
	if _, err := m.tx.Exec(ctx, `INSERT INTO gl_edge_label (name, multiplicity) VALUES ($1, $2)`, name, mult.String()); err != nil {
		return fmt.Errorf("postgres: create edge label %s: %w", name, pgErr(err))
	}
	if m.edges == nil {
		m.edges = map[string]graph.Multiplicity{}
	}
	m.edges[name] = mult
	return nil
}

func (m *management) CreatePropertyKey(ctx context.Context, k graph.PropertyKey) error {
	_, err := m.tx.Exec(ctx, `INSERT INTO gl_property_key (name, datatype, cardinality) VALUES ($1, $2, $3)`,
		k.Name, k.DataType.String(), k.Cardinality.String())
	if err != nil {
		return fmt.Errorf("postgres: create property key %s: %w", k.Name, pgErr(err))
	}
	m.keys = append(m.keys, k)
	return nil
}

func (m *management) BuildCompositeIndex(ctx context.Context, name string, target graph.Target, key string) error {
	if _, err := m.tx.Exec(ctx, `INSERT INTO gl_index (name, target, prop_key) VALUES ($1, $2, $3)`, name, target.String(), key); err != nil {
		return fmt.Errorf("postgres: register index %s: %w", name, pgErr(err))
	}
	table := "gl_vertex_property"
	if target == graph.TargetEdge {
		table = "gl_edge_property"
	}
	ddl := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (prop_value) WHERE prop_key = %s`,
		ident(indexName(name)), table, literal(key))
	if _, err := m.tx.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: build index %s: %w", name, pgErr(err))
	}
	return nil
}

func (m *management) Commit(ctx context.Context) error {
	if err := m.tx.Commit(ctx); err != nil {
		return txErr("commit management", err)
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

func (m *management) Rollback(ctx context.Context) error {
	if err := m.tx.Rollback(ctx); err != nil {
		return txErr("rollback management", err)
	}
	return nil
}
