package memory

import (
	"context"
	"fmt"

	"graphload/internal/graph"
)

type schemaOp struct {
	vertexLabel string
	edgeLabel   string
	mult        graph.Multiplicity
	key         *graph.PropertyKey
	indexName   string
	index       index
}

type management struct {
	s    *Store
	ops  []schemaOp
	done bool
}

func (m *management) pendingHas(match func(schemaOp) bool) bool {
	for _, op := range m.ops {
		if match(op) {
			return true
		}
	}
	return false
}

func (m *management) ContainsVertexLabel(_ context.Context, name string) (bool, error) {
	m.s.mu.RLock()
	ok := m.s.vertexLabels[name]
	m.s.mu.RUnlock()
	return ok || m.pendingHas(func(op schemaOp) bool { return op.vertexLabel == name }), nil
}

func (m *management) ContainsEdgeLabel(_ context.Context, name string) (bool, error) {
	m.s.mu.RLock()
	_, ok := m.s.edgeLabels[name]
	m.s.mu.RUnlock()
	return ok || m.pendingHas(func(op schemaOp) bool { return op.edgeLabel == name }), nil
}

func (m *management) ContainsPropertyKey(_ context.Context, name string) (bool, error) {
	m.s.mu.RLock()
	_, ok := m.s.keys[name]
	m.s.mu.RUnlock()
	return ok || m.pendingHas(func(op schemaOp) bool { return op.key != nil && op.key.Name == name }), nil
}

func (m *management) CreateVertexLabel(ctx context.Context, name string) error {
	if m.done {
		return graph.ErrTxDone
	}
	if ok, _ := m.ContainsVertexLabel(ctx, name); ok {
		return fmt.Errorf("memory: vertex label %s already defined", name)
	}
	m.ops = append(m.ops, schemaOp{vertexLabel: name})
	return nil
}

func (m *management) CreateEdgeLabel(ctx context.Context, name string, mult graph.Multiplicity) error {
	if m.done {
		return graph.ErrTxDone
	}
	if ok, _ := m.ContainsEdgeLabel(ctx, name); ok {
		return fmt.Errorf("memory: edge label %s already defined", name)
	}
	m.ops = append(m.ops, schemaOp{edgeLabel: name, mult: mult})
	return nil
}

func (m *management) CreatePropertyKey(ctx context.Context, k graph.PropertyKey) error {
	if m.done {
		return graph.ErrTxDone
	}
	if ok, _ := m.ContainsPropertyKey(ctx, k.Name); ok {
		return fmt.Errorf("memory: property key %s already defined", k.Name)
	}
	m.ops = append(m.ops, schemaOp{key: &k})
	return nil
}

func (m *management) BuildCompositeIndex(ctx context.Context, name string, target graph.Target, key string) error {
	if m.done {
		return graph.ErrTxDone
	}
	if ok, _ := m.ContainsPropertyKey(ctx, key); !ok {
		return fmt.Errorf("memory: index %s: unknown property key %s", name, key)
	}
	m.s.mu.RLock()
	_, exists := m.s.indexes[name]
	m.s.mu.RUnlock()
	if exists || m.pendingHas(func(op schemaOp) bool { return op.indexName == name }) {
		return fmt.Errorf("memory: index %s already defined", name)
	}
	m.ops = append(m.ops, schemaOp{indexName: name, index: index{target: target, key: key}})
	return nil
}

func (m *management) Commit(context.Context) error {
	if m.done {
		return graph.ErrTxDone
	}
	m.done = true

	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, op := range m.ops {
		switch {
		case op.vertexLabel != "":
			m.s.vertexLabels[op.vertexLabel] = true
		case op.edgeLabel != "":
			m.s.edgeLabels[op.edgeLabel] = op.mult
		case op.key != nil:
			m.s.keys[op.key.Name] = *op.key
		case op.indexName != "":
			m.s.indexes[op.indexName] = op.index
		}
		m.s.mutations.Add(1)
	}
	return nil
}

func (m *management) Rollback(context.Context) error {
	if m.done {
		return nil
	}
	m.done = true
	m.ops = nil
	return nil
}
