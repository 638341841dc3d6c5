package sqlgraph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"graphload/internal/graph"
)

type tx struct {
	s  *Store
	tx *sql.Tx
}

func (t *tx) LookupVertex(ctx context.Context, key string, value any) (graph.VertexID, error) {
	enc, err := graph.EncodeValue(value)
	if err != nil {
		return 0, fmt.Errorf("%s: lookup %s: %w", t.s.d.name, key, err)
	}
	q := fmt.Sprintf(t.s.d.lookupFmt, t.s.d.literal(key))
	var id int64
	err = t.tx.QueryRowContext(ctx, t.s.d.rebind(q), enc).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s=%s: %w", key, enc, graph.ErrVertexNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: lookup %s: %w", t.s.d.name, key, err)
	}
	return graph.VertexID(id), nil
}

func (t *tx) AddVertex(ctx context.Context, label string, props []graph.Property) (graph.VertexID, error) {
	ok, err := t.s.exists(ctx, t.tx, `SELECT 1 FROM gl_vertex_label WHERE name = ?`, label)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%s: unknown vertex label %s", t.s.d.name, label)
	}
	keys, err := t.check(ctx, props)
	if err != nil {
		return 0, err
	}

	id, err := t.insert(ctx, t.s.d.insertVertex, label)
	if err != nil {
		return 0, fmt.Errorf("%s: insert vertex: %w", t.s.d.name, err)
	}
	for i, p := range props {
		if err := t.insertValues(ctx, "gl_vertex_property", "vertex_id", id, keys[i], p.Value, 0); err != nil {
			return 0, err
		}
	}
	return graph.VertexID(id), nil
}

func (t *tx) AddEdge(ctx context.Context, label string, from, to graph.VertexID, props []graph.Property) error {
	mult, err := t.s.multiplicity(ctx, t.tx, label)
	if err != nil {
		return err
	}
	keys, err := t.check(ctx, props)
	if err != nil {
		return err
	}
	if mult == graph.Simple {
		dup, err := t.s.exists(ctx, t.tx,
			`SELECT 1 FROM gl_edge WHERE label = ? AND from_id = ? AND to_id = ?`, label, int64(from), int64(to))
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("%s: simple edge %s %d->%d already exists", t.s.d.name, label, from, to)
		}
	}

	id, err := t.insert(ctx, t.s.d.insertEdge, label, int64(from), int64(to))
	if err != nil {
		return fmt.Errorf("%s: insert edge: %w", t.s.d.name, err)
	}
	for i, p := range props {
		if err := t.insertValues(ctx, "gl_edge_property", "edge_id", id, keys[i], p.Value, 0); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) SetVertexProperty(ctx context.Context, id graph.VertexID, p graph.Property) error {
	keys, err := t.check(ctx, []graph.Property{p})
	if err != nil {
		return err
	}
	k := keys[0]
	ok, err := t.s.exists(ctx, t.tx, `SELECT 1 FROM gl_vertex WHERE id = ?`, int64(id))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: vertex %d: %w", t.s.d.name, id, graph.ErrVertexNotFound)
	}

	start := 0
	if k.Cardinality == graph.List {
		var next sql.NullInt64
		err := t.tx.QueryRowContext(ctx, t.s.d.rebind(
			`SELECT MAX(ord) + 1 FROM gl_vertex_property WHERE vertex_id = ? AND prop_key = ?`), int64(id), k.Name).Scan(&next)
		if err != nil {
			return fmt.Errorf("%s: next ordinal: %w", t.s.d.name, err)
		}
		start = int(next.Int64)
	} else {
		if err := t.s.exec(ctx, t.tx, `DELETE FROM gl_vertex_property WHERE vertex_id = ? AND prop_key = ?`, int64(id), k.Name); err != nil {
			return fmt.Errorf("%s: replace %s: %w", t.s.d.name, k.Name, err)
		}
	}
	return t.insertValues(ctx, "gl_vertex_property", "vertex_id", int64(id), k, p.Value, start)
}

// check resolves and validates the key of every property.
func (t *tx) check(ctx context.Context, props []graph.Property) ([]graph.PropertyKey, error) {
	keys := make([]graph.PropertyKey, len(props))
	for i, p := range props {
		k, err := t.s.propertyKey(ctx, t.tx, p.Key)
		if err != nil {
			return nil, err
		}
		if err := graph.CheckValue(k, p.Value); err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

// insertValues writes one row per element of v, numbering from ord.
// insert runs an insert statement and returns the generated id.
func (t *tx) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if !t.s.d.lastInsertID {
		var id int64
		err := t.tx.QueryRowContext(ctx, t.s.d.rebind(query), args...).Scan(&id)
		return id, err
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (t *tx) insertValues(ctx context.Context, table, owner string, id int64, k graph.PropertyKey, v any, ord int) error {
	q := fmt.Sprintf(`INSERT INTO %s (%s, prop_key, ord, prop_value) VALUES (?, ?, ?, ?)`, table, owner)
	for _, x := range graph.Values(v) {
		enc, err := graph.EncodeValue(x)
		if err != nil {
			return fmt.Errorf("%s: %w", k.Name, err)
		}
		if err := t.s.exec(ctx, t.tx, q, id, k.Name, ord, enc); err != nil {
			return fmt.Errorf("%s: insert %s: %w", t.s.d.name, k.Name, err)
		}
		ord++
	}
	return nil
}

func (t *tx) Commit(context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return txErr(t.s.d.name, "commit", err)
	}
	return nil
}

func (t *tx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil {
		return txErr(t.s.d.name, "rollback", err)
	}
	return nil
}
