// Package memory implements an in-process graph.Store. It enforces the same
// schema rules as the database backends (declared labels and keys, datatype
// and cardinality checks, simple multiplicity) and counts schema mutations
// and data commits, which makes it the reference backend for tests and for
// dry runs.
//
// Committed vertex property values are indexed in a sharded lookup table so
// id resolution during edge loading does not serialize on one lock.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"

	"graphload/internal/graph"
)

const shardCount = 64

func init() {
	graph.Register("memory", func(context.Context, graph.Config) (graph.Store, error) {
		return New(), nil
	})
}

type vertex struct {
	label string
	props map[string]any
}

// Edge is a committed edge, exposed for inspection.
type Edge struct {
	Label    string
	From, To graph.VertexID
	Props    map[string]any
}

type index struct {
	target graph.Target
	key    string
}

type shard struct {
	mu  sync.RWMutex
	ids map[string]graph.VertexID
}

// Store is an in-memory property graph.
type Store struct {
	mu           sync.RWMutex
	vertexLabels map[string]bool
	edgeLabels   map[string]graph.Multiplicity
	keys         map[string]graph.PropertyKey
	indexes      map[string]index
	vertices     map[graph.VertexID]*vertex
	edges        []Edge
	edgePairs    map[string]bool

	shards [shardCount]shard

	nextID    atomic.Int64
	mutations atomic.Int64
	commits   atomic.Int64
	closed    atomic.Bool
}

// New returns an empty Store.
func New() *Store {
	s := &Store{
		vertexLabels: map[string]bool{},
		edgeLabels:   map[string]graph.Multiplicity{},
		keys:         map[string]graph.PropertyKey{},
		indexes:      map[string]index{},
		vertices:     map[graph.VertexID]*vertex{},
		edgePairs:    map[string]bool{},
	}
	for i := range s.shards {
		s.shards[i].ids = map[string]graph.VertexID{}
	}
	return s
}

func (s *Store) shardFor(k string) *shard {
	return &s.shards[xxh3.HashString(k)%shardCount]
}

// OpenManagement implements graph.Store.
func (s *Store) OpenManagement(ctx context.Context) (graph.Management, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("memory: store closed")
	}
	return &management{s: s}, nil
}

// Begin implements graph.Store.
func (s *Store) Begin(ctx context.Context) (graph.Tx, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("memory: store closed")
	}
	return &tx{s: s, pending: map[string]graph.VertexID{}, added: map[graph.VertexID]*vertex{}}, nil
}

// Close implements graph.Store.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

// Mutations returns the number of committed schema mutations.
func (s *Store) Mutations() int64 { return s.mutations.Load() }

// Commits returns the number of committed data transactions.
func (s *Store) Commits() int64 { return s.commits.Load() }

// VertexCount returns the number of committed vertices.
func (s *Store) VertexCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vertices)
}

// EdgeCount returns the number of committed edges.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// Edges returns a copy of the committed edges.
func (s *Store) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Edge(nil), s.edges...)
}

// VertexProps returns the label and a copy of the properties of a committed
// vertex.
func (s *Store) VertexProps(id graph.VertexID) (string, map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vertices[id]
	if !ok {
		return "", nil, false
	}
	out := make(map[string]any, len(v.props))
	for k, p := range v.props {
		out[k] = p
	}
	return v.label, out, true
}

// PropertyKey returns a committed property key.
func (s *Store) PropertyKey(name string) (graph.PropertyKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[name]
	return k, ok
}

// HasIndex reports whether a composite index named name exists on key.
func (s *Store) HasIndex(name string, target graph.Target, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ix, ok := s.indexes[name]
	return ok && ix.target == target && ix.key == key
}

func (s *Store) lookup(k string) (graph.VertexID, bool) {
	sh := s.shardFor(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	id, ok := sh.ids[k]
	return id, ok
}

func (s *Store) index(id graph.VertexID, key string, value any) {
	for _, v := range graph.Values(value) {
		k, err := graph.LookupKey(key, v)
		if err != nil {
			continue
		}
		sh := s.shardFor(k)
		sh.mu.Lock()
		if _, exists := sh.ids[k]; !exists {
			sh.ids[k] = id
		}
		sh.mu.Unlock()
	}
}

func pairKey(label string, from, to graph.VertexID) string {
	return fmt.Sprintf("%s\x00%d\x00%d", label, from, to)
}
