package neo4j

import (
	"context"
	"fmt"

	"graphload/internal/graph"
)

type tx struct {
	s  *Store
	ss *session
}

func (t *tx) LookupVertex(ctx context.Context, key string, value any) (graph.VertexID, error) {
	v, err := toNeo(value)
	if err != nil {
		return 0, err
	}
	k, err := t.s.propertyKey(ctx, t.ss, key)
	if err != nil {
		return 0, err
	}
	// Matching on the label lets the composite index serve the lookup.
	where := "n.%[2]s = $v"
	if k.Cardinality == graph.List {
		where = "$v IN coalesce(n.%[2]s, [])"
	}
	q := fmt.Sprintf("MATCH (n:%[1]s) WHERE "+where+" RETURN id(n) LIMIT 1", quote(graph.LabelOf(key)), quote(key))
	rec, err := t.ss.single(ctx, q, map[string]interface{}{"v": v})
	if err != nil {
		return 0, fmt.Errorf("neo4j: lookup %s: %w", key, err)
	}
	if rec == nil {
		return 0, fmt.Errorf("%s=%v: %w", key, value, graph.ErrVertexNotFound)
	}
	id, _ := rec.Values()[0].(int64)
	return graph.VertexID(id), nil
}

func (t *tx) AddVertex(ctx context.Context, label string, props []graph.Property) (graph.VertexID, error) {
	rec, err := t.ss.single(ctx, "MATCH (c:"+catalogVertexLabel+" {name: $name}) RETURN count(c)", map[string]interface{}{"name": label})
	if err != nil {
		return 0, err
	}
	if n, _ := rec.Values()[0].(int64); n == 0 {
		return 0, fmt.Errorf("neo4j: unknown vertex label %s", label)
	}
	if err := t.check(ctx, props); err != nil {
		return 0, err
	}
	pm, err := propMap(props)
	if err != nil {
		return 0, err
	}
	rec, err = t.ss.single(ctx, fmt.Sprintf("CREATE (n:%s) SET n = $props RETURN id(n)", quote(label)),
		map[string]interface{}{"props": pm})
	if err != nil {
		return 0, fmt.Errorf("neo4j: create vertex: %w", err)
	}
	id, _ := rec.Values()[0].(int64)
	return graph.VertexID(id), nil
}

func (t *tx) AddEdge(ctx context.Context, label string, from, to graph.VertexID, props []graph.Property) error {
	mult, err := t.s.multiplicity(ctx, t.ss, label)
	if err != nil {
		return err
	}
	if err := t.check(ctx, props); err != nil {
		return err
	}
	pm, err := propMap(props)
	if err != nil {
		return err
	}
	params := map[string]interface{}{"from": int64(from), "to": int64(to), "props": pm}
	if mult == graph.Simple {
		rec, err := t.ss.single(ctx, fmt.Sprintf(
			"MATCH (a)-[r:%s]->(b) WHERE id(a) = $from AND id(b) = $to RETURN count(r)", quote(label)), params)
		if err != nil {
			return err
		}
		if n, _ := rec.Values()[0].(int64); n > 0 {
			return fmt.Errorf("neo4j: simple edge %s %d->%d already exists", label, from, to)
		}
	}
	rec, err := t.ss.single(ctx, fmt.Sprintf(
		"MATCH (a), (b) WHERE id(a) = $from AND id(b) = $to CREATE (a)-[r:%s]->(b) SET r = $props RETURN count(r)",
		quote(label)), params)
	if err != nil {
		return fmt.Errorf("neo4j: create edge: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("neo4j: edge %s %d->%d: %w", label, from, to, graph.ErrVertexNotFound)
	}
	if n, _ := rec.Values()[0].(int64); n == 0 {
		return fmt.Errorf("neo4j: edge %s %d->%d: %w", label, from, to, graph.ErrVertexNotFound)
	}
	return nil
}

func (t *tx) SetVertexProperty(ctx context.Context, id graph.VertexID, p graph.Property) error {
	if err := t.check(ctx, []graph.Property{p}); err != nil {
		return err
	}
	k, _ := t.s.propertyKey(ctx, t.ss, p.Key)
	v, err := toNeo(p.Value)
	if err != nil {
		return err
	}
	set := "n.%s = $v"
	if k.Cardinality == graph.List {
		if _, ok := v.([]interface{}); !ok {
			v = []interface{}{v}
		}
		set = "n.%[1]s = coalesce(n.%[1]s, []) + $v"
	}
	q := fmt.Sprintf("MATCH (n) WHERE id(n) = $id SET "+set+" RETURN count(n)", quote(p.Key))
	rec, err := t.ss.single(ctx, q, map[string]interface{}{"id": int64(id), "v": v})
	if err != nil {
		return fmt.Errorf("neo4j: set %s: %w", p.Key, err)
	}
	if rec == nil {
		return fmt.Errorf("neo4j: vertex %d: %w", id, graph.ErrVertexNotFound)
	}
	if n, _ := rec.Values()[0].(int64); n == 0 {
		return fmt.Errorf("neo4j: vertex %d: %w", id, graph.ErrVertexNotFound)
	}
	return nil
}

func (t *tx) check(ctx context.Context, props []graph.Property) error {
	for _, p := range props {
		k, err := t.s.propertyKey(ctx, t.ss, p.Key)
		if err != nil {
			return err
		}
		if err := graph.CheckValue(k, p.Value); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) Commit(context.Context) error {
	if err := t.ss.finish(true); err != nil {
		return fmt.Errorf("neo4j: commit: %w", err)
	}
	return nil
}

func (t *tx) Rollback(context.Context) error { return t.ss.finish(false) }
