package memory

import (
	"context"
	"fmt"

	"graphload/internal/graph"
)

type propSet struct {
	id graph.VertexID
	p  graph.Property
}

// tx buffers mutations and applies them atomically on Commit.
type tx struct {
	s       *Store
	order   []graph.VertexID
	added   map[graph.VertexID]*vertex
	pending map[string]graph.VertexID
	edges   []Edge
	sets    []propSet
	done    bool
}

func (t *tx) LookupVertex(_ context.Context, key string, value any) (graph.VertexID, error) {
	if t.done {
		return 0, graph.ErrTxDone
	}
	k, err := graph.LookupKey(key, value)
	if err != nil {
		return 0, err
	}
	if id, ok := t.pending[k]; ok {
		return id, nil
	}
	if id, ok := t.s.lookup(k); ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: %s=%v", graph.ErrVertexNotFound, key, value)
}

func (t *tx) key(name string) (graph.PropertyKey, error) {
	t.s.mu.RLock()
	k, ok := t.s.keys[name]
	t.s.mu.RUnlock()
	if !ok {
		return graph.PropertyKey{}, fmt.Errorf("memory: unknown property key %s", name)
	}
	return k, nil
}

func (t *tx) checkProps(props []graph.Property) error {
	for _, p := range props {
		k, err := t.key(p.Key)
		if err != nil {
			return err
		}
		if err := graph.CheckValue(k, p.Value); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) AddVertex(_ context.Context, label string, props []graph.Property) (graph.VertexID, error) {
	if t.done {
		return 0, graph.ErrTxDone
	}
	t.s.mu.RLock()
	known := t.s.vertexLabels[label]
	t.s.mu.RUnlock()
	if !known {
		return 0, fmt.Errorf("memory: unknown vertex label %s", label)
	}
	if err := t.checkProps(props); err != nil {
		return 0, err
	}

	id := graph.VertexID(t.s.nextID.Add(1))
	v := &vertex{label: label, props: make(map[string]any, len(props))}
	for _, p := range props {
		v.props[p.Key] = p.Value
		for _, x := range graph.Values(p.Value) {
			if k, err := graph.LookupKey(p.Key, x); err == nil {
				if _, dup := t.pending[k]; !dup {
					t.pending[k] = id
				}
			}
		}
	}
	t.added[id] = v
	t.order = append(t.order, id)
	return id, nil
}

func (t *tx) exists(id graph.VertexID) bool {
	if _, ok := t.added[id]; ok {
		return true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	_, ok := t.s.vertices[id]
	return ok
}

func (t *tx) AddEdge(_ context.Context, label string, from, to graph.VertexID, props []graph.Property) error {
	if t.done {
		return graph.ErrTxDone
	}
	t.s.mu.RLock()
	_, known := t.s.edgeLabels[label]
	t.s.mu.RUnlock()
	if !known {
		return fmt.Errorf("memory: unknown edge label %s", label)
	}
	if !t.exists(from) || !t.exists(to) {
		return fmt.Errorf("memory: edge %s %d->%d: %w", label, from, to, graph.ErrVertexNotFound)
	}
	if err := t.checkProps(props); err != nil {
		return err
	}
	e := Edge{Label: label, From: from, To: to, Props: make(map[string]any, len(props))}
	for _, p := range props {
		e.Props[p.Key] = p.Value
	}
	t.edges = append(t.edges, e)
	return nil
}

func (t *tx) SetVertexProperty(_ context.Context, id graph.VertexID, p graph.Property) error {
	if t.done {
		return graph.ErrTxDone
	}
	if !t.exists(id) {
		return fmt.Errorf("memory: vertex %d: %w", id, graph.ErrVertexNotFound)
	}
	if err := t.checkProps([]graph.Property{p}); err != nil {
		return err
	}
	t.sets = append(t.sets, propSet{id: id, p: p})
	return nil
}

func (t *tx) Commit(context.Context) error {
	if t.done {
		return graph.ErrTxDone
	}
	t.done = true

	s := t.s
	s.mu.Lock()
	// Pairs added earlier in this transaction count as existing.
	seen := make(map[string]bool, len(t.edges))
	for _, e := range t.edges {
		if s.edgeLabels[e.Label] == graph.Simple {
			pk := pairKey(e.Label, e.From, e.To)
			if s.edgePairs[pk] || seen[pk] {
				s.mu.Unlock()
				return fmt.Errorf("memory: simple edge %s %d->%d already exists", e.Label, e.From, e.To)
			}
			seen[pk] = true
		}
	}
	for _, id := range t.order {
		s.vertices[id] = t.added[id]
	}
	for _, e := range t.edges {
		s.edges = append(s.edges, e)
		if s.edgeLabels[e.Label] == graph.Simple {
			s.edgePairs[pairKey(e.Label, e.From, e.To)] = true
		}
	}
	for _, ps := range t.sets {
		v := s.vertices[ps.id]
		k := s.keys[ps.p.Key]
		if k.Cardinality == graph.List {
			cur, _ := v.props[ps.p.Key].([]any)
			v.props[ps.p.Key] = append(cur, graph.Values(ps.p.Value)...)
		} else {
			v.props[ps.p.Key] = ps.p.Value
		}
	}
	s.mu.Unlock()

	for _, id := range t.order {
		for k, v := range t.added[id].props {
			s.index(id, k, v)
		}
	}
	for _, ps := range t.sets {
		s.index(ps.id, ps.p.Key, ps.p.Value)
	}
	s.commits.Add(1)
	return nil
}

func (t *tx) Rollback(context.Context) error {
	t.done = true
	t.added, t.order, t.edges, t.sets = nil, nil, nil, nil
	return nil
}
