package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/neo4j"

	"graphload/internal/graph"
)

type pendingIndex struct {
	name   string
	target graph.Target
	key    string
}

type management struct {
	s  *Store
	ss *session

	keys    []graph.PropertyKey
	edges   map[string]graph.Multiplicity
	indexes []pendingIndex
}

func (m *management) contains(ctx context.Context, catalog, name string) (bool, error) {
	rec, err := m.ss.single(ctx, "MATCH (c:"+catalog+" {name: $name}) RETURN count(c)", map[string]interface{}{"name": name})
	if err != nil {
		return false, fmt.Errorf("neo4j: read %s %s: %w", catalog, name, err)
	}
	n, _ := rec.Values()[0].(int64)
	return n > 0, nil
}

func (m *management) ContainsVertexLabel(ctx context.Context, name string) (bool, error) {
	return m.contains(ctx, catalogVertexLabel, name)
}

func (m *management) ContainsEdgeLabel(ctx context.Context, name string) (bool, error) {
	return m.contains(ctx, catalogEdgeLabel, name)
}

func (m *management) ContainsPropertyKey(ctx context.Context, name string) (bool, error) {
	return m.contains(ctx, catalogKey, name)
}

func (m *management) create(ctx context.Context, catalog string, props map[string]interface{}) error {
	name, _ := props["name"].(string)
	ok, err := m.contains(ctx, catalog, name)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("neo4j: %s %s already exists", catalog, name)
	}
	if _, err := m.ss.single(ctx, "CREATE (c:"+catalog+") SET c = $props", map[string]interface{}{"props": props}); err != nil {
		return fmt.Errorf("neo4j: create %s %s: %w", catalog, name, err)
	}
	return nil
}

func (m *management) CreateVertexLabel(ctx context.Context, name string) error {
	return m.create(ctx, catalogVertexLabel, map[string]interface{}{"name": name})
}

func (m *management) CreateEdgeLabel(ctx context.Context, name string, mult graph.Multiplicity) error {
	if err := m.create(ctx, catalogEdgeLabel, map[string]interface{}{"name": name, "multiplicity": mult.String()}); err != nil {
		return err
	}
	if m.edges == nil {
		m.edges = map[string]graph.Multiplicity{}
	}
	m.edges[name] = mult
	return nil
}

func (m *management) CreatePropertyKey(ctx context.Context, k graph.PropertyKey) error {
	err := m.create(ctx, catalogKey, map[string]interface{}{
		"name": k.Name, "datatype": k.DataType.String(), "cardinality": k.Cardinality.String(),
	})
	if err != nil {
		return err
	}
	m.keys = append(m.keys, k)
	return nil
}

func (m *management) BuildCompositeIndex(ctx context.Context, name string, target graph.Target, key string) error {
	err := m.create(ctx, catalogIndex, map[string]interface{}{"name": name, "target": target.String(), "key": key})
	if err != nil {
		return err
	}
	m.indexes = append(m.indexes, pendingIndex{name: name, target: target, key: key})
	return nil
}

func (m *management) Commit(ctx context.Context) error {
	if err := m.ss.finish(true); err != nil {
		return fmt.Errorf("neo4j: commit management: %w", err)
	}
	m.s.mu.Lock()
	for _, k := range m.keys {
		m.s.keys[k.Name] = k
	}
	for l, mult := range m.edges {
		m.s.edges[l] = mult
	}
	m.s.mu.Unlock()
	return m.createIndexes(ctx)
}

// createIndexes runs the recorded index DDL in auto-commit transactions.
func (m *management) createIndexes(ctx context.Context) error {
	if len(m.indexes) == 0 {
		return nil
	}
	sess, err := m.s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	if err != nil {
		return fmt.Errorf("neo4j: session: %w", err)
	}
	defer sess.Close()
	for _, ix := range m.indexes {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := sess.Run(indexDDL(ix.name, ix.target, ix.key), nil)
		if err == nil {
			_, err = res.Consume()
		}
		if err != nil {
			return fmt.Errorf("neo4j: create index %s: %w", ix.name, err)
		}
	}
	return nil
}

func (m *management) Rollback(context.Context) error {
	return m.ss.finish(false)
}
