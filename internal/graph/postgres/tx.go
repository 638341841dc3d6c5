package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"graphload/internal/graph"
)

type txn struct {
	s  *Store
	tx pgx.Tx
}

func (t *txn) LookupVertex(ctx context.Context, key string, value any) (graph.VertexID, error) {
	enc, err := graph.EncodeValue(value)
	if err != nil {
		return 0, fmt.Errorf("postgres: lookup %s: %w", key, err)
	}
	// The key is inlined so the planner can match the partial index.
	q := fmt.Sprintf(`SELECT vertex_id FROM gl_vertex_property WHERE prop_key = %s AND prop_value = $1 LIMIT 1`, literal(key))
	var id int64
	err = t.tx.QueryRow(ctx, q, enc).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%s=%s: %w", key, enc, graph.ErrVertexNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: lookup %s: %w", key, pgErr(err))
	}
	return graph.VertexID(id), nil
}

func (t *txn) AddVertex(ctx context.Context, label string, props []graph.Property) (graph.VertexID, error) {
	ok, err := exists(ctx, t.tx, `SELECT 1 FROM gl_vertex_label WHERE name = $1`, label)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("postgres: unknown vertex label %s", label)
	}
	keys, err := t.check(ctx, props)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := t.tx.QueryRow(ctx, `INSERT INTO gl_vertex (label) VALUES ($1) RETURNING id`, label).Scan(&id); err != nil {
		return 0, fmt.Errorf("postgres: insert vertex: %w", pgErr(err))
	}
	if err := t.insertValues(ctx, "gl_vertex_property", "vertex_id", id, keys, props, 0); err != nil {
		return 0, err
	}
	return graph.VertexID(id), nil
}

func (t *txn) AddEdge(ctx context.Context, label string, from, to graph.VertexID, props []graph.Property) error {
	mult, err := t.s.multiplicity(ctx, t.tx, label)
	if err != nil {
		return err
	}
	keys, err := t.check(ctx, props)
	if err != nil {
		return err
	}
	if mult == graph.Simple {
		dup, err := exists(ctx, t.tx, `SELECT 1 FROM gl_edge WHERE label = $1 AND from_id = $2 AND to_id = $3`, label, int64(from), int64(to))
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("postgres: simple edge %s %d->%d already exists", label, from, to)
		}
	}
	var id int64
	if err := t.tx.QueryRow(ctx, `INSERT INTO gl_edge (label, from_id, to_id) VALUES ($1, $2, $3) RETURNING id`,
		label, int64(from), int64(to)).Scan(&id); err != nil {
		return fmt.Errorf("postgres: insert edge: %w", pgErr(err))
	}
	return t.insertValues(ctx, "gl_edge_property", "edge_id", id, keys, props, 0)
}

func (t *txn) SetVertexProperty(ctx context.Context, id graph.VertexID, p graph.Property) error {
	keys, err := t.check(ctx, []graph.Property{p})
	if err != nil {
		return err
	}
	ok, err := exists(ctx, t.tx, `SELECT 1 FROM gl_vertex WHERE id = $1`, int64(id))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("postgres: vertex %d: %w", id, graph.ErrVertexNotFound)
	}
	start := 0
	if keys[0].Cardinality == graph.List {
		err := t.tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(ord) + 1, 0) FROM gl_vertex_property WHERE vertex_id = $1 AND prop_key = $2`,
			int64(id), p.Key).Scan(&start)
		if err != nil {
			return fmt.Errorf("postgres: next ordinal: %w", pgErr(err))
		}
	} else if _, err := t.tx.Exec(ctx, `DELETE FROM gl_vertex_property WHERE vertex_id = $1 AND prop_key = $2`, int64(id), p.Key); err != nil {
		return fmt.Errorf("postgres: replace %s: %w", p.Key, pgErr(err))
	}
	return t.insertValues(ctx, "gl_vertex_property", "vertex_id", int64(id), keys, []graph.Property{p}, start)
}

func (t *txn) check(ctx context.Context, props []graph.Property) ([]graph.PropertyKey, error) {
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

// insertValues queues one INSERT per property value and sends them as a
// single batch.
func (t *txn) insertValues(ctx context.Context, table, owner string, id int64, keys []graph.PropertyKey, props []graph.Property, ord int) error {
	q := fmt.Sprintf(`INSERT INTO %s (%s, prop_key, ord, prop_value) VALUES ($1, $2, $3, $4)`, table, owner)
	b := &pgx.Batch{}
	for i, p := range props {
		n := ord
		for _, x := range graph.Values(p.Value) {
			enc, err := graph.EncodeValue(x)
			if err != nil {
				return fmt.Errorf("%s: %w", keys[i].Name, err)
			}
			b.Queue(q, id, keys[i].Name, n, enc)
			n++
		}
	}
	if b.Len() == 0 {
		return nil
	}
	if err := t.tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("postgres: insert properties: %w", pgErr(err))
	}
	return nil
}

func (t *txn) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return txErr("commit", err)
	}
	return nil
}

func (t *txn) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil {
		return txErr("rollback", err)
	}
	return nil
}
