package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"graphload/internal/graph"
)

func newSchema(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	m, err := s.OpenManagement(ctx)
	if err != nil {
		t.Fatalf("OpenManagement() error = %v", err)
	}
	steps := []error{
		m.CreateVertexLabel(ctx, "Person"),
		m.CreateEdgeLabel(ctx, "knows", graph.Simple),
		m.CreatePropertyKey(ctx, graph.PropertyKey{Name: "Person.id", DataType: graph.Int64}),
		m.CreatePropertyKey(ctx, graph.PropertyKey{Name: "Person.email", DataType: graph.String, Cardinality: graph.List}),
		m.BuildCompositeIndex(ctx, "byPerson.id", graph.TargetVertex, "Person.id"),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("schema step %d error = %v", i, err)
		}
	}
	if err := m.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

func TestManagement_CommitAndContains(t *testing.T) {
	t.Parallel()

	s := New()
	newSchema(t, s)
	ctx := context.Background()

	if got := s.Mutations(); got != 5 {
		t.Fatalf("Mutations() = %d, want 5", got)
	}
	m, _ := s.OpenManagement(ctx)
	defer m.Rollback(ctx)
	for _, c := range []func() (bool, error){
		func() (bool, error) { return m.ContainsVertexLabel(ctx, "Person") },
		func() (bool, error) { return m.ContainsEdgeLabel(ctx, "knows") },
		func() (bool, error) { return m.ContainsPropertyKey(ctx, "Person.email") },
	} {
		if ok, err := c(); err != nil || !ok {
			t.Fatalf("Contains = %v, %v; want true", ok, err)
		}
	}
	if err := m.CreateVertexLabel(ctx, "Person"); err == nil {
		t.Fatalf("CreateVertexLabel(duplicate) expected error")
	}
	if !s.HasIndex("byPerson.id", graph.TargetVertex, "Person.id") {
		t.Fatalf("index byPerson.id missing")
	}
}

func TestManagement_RollbackDiscards(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	m, _ := s.OpenManagement(ctx)
	if err := m.CreateVertexLabel(ctx, "Tag"); err != nil {
		t.Fatalf("CreateVertexLabel() error = %v", err)
	}
	if err := m.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if s.Mutations() != 0 {
		t.Fatalf("Mutations() = %d after rollback", s.Mutations())
	}
}

func TestTx_AddLookupAndEdges(t *testing.T) {
	t.Parallel()

	s := New()
	newSchema(t, s)
	ctx := context.Background()

	tx, _ := s.Begin(ctx)
	a, err := tx.AddVertex(ctx, "Person", []graph.Property{{Key: "Person.id", Value: int64(1)}})
	if err != nil {
		t.Fatalf("AddVertex() error = %v", err)
	}
	// Visible inside the same transaction before commit.
	if got, err := tx.LookupVertex(ctx, "Person.id", int64(1)); err != nil || got != a {
		t.Fatalf("LookupVertex(pending) = %v, %v", got, err)
	}
	b, _ := tx.AddVertex(ctx, "Person", []graph.Property{
		{Key: "Person.id", Value: int64(2)},
		{Key: "Person.email", Value: []any{"a@x", "b@x"}},
	})
	if err := tx.AddEdge(ctx, "knows", a, b, nil); err != nil {
		t.Fatalf("AddEdge() error = %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	tx2, _ := s.Begin(ctx)
	defer tx2.Rollback(ctx)
	got, err := tx2.LookupVertex(ctx, "Person.email", "b@x")
	if err != nil || got != b {
		t.Fatalf("LookupVertex(email) = %v, %v; want %v", got, err, b)
	}
	if _, err := tx2.LookupVertex(ctx, "Person.id", int64(99)); !errors.Is(err, graph.ErrVertexNotFound) {
		t.Fatalf("LookupVertex(missing) = %v, want ErrVertexNotFound", err)
	}
	if s.VertexCount() != 2 || s.EdgeCount() != 1 || s.Commits() != 1 {
		t.Fatalf("counts v=%d e=%d commits=%d", s.VertexCount(), s.EdgeCount(), s.Commits())
	}
}

func TestTx_RejectsUnknownKeyAndWrongType(t *testing.T) {
	t.Parallel()

	s := New()
	newSchema(t, s)
	ctx := context.Background()
	tx, _ := s.Begin(ctx)
	defer tx.Rollback(ctx)

	if _, err := tx.AddVertex(ctx, "Person", []graph.Property{{Key: "Person.nope", Value: "x"}}); err == nil {
		t.Fatalf("AddVertex(unknown key) expected error")
	}
	if _, err := tx.AddVertex(ctx, "Person", []graph.Property{{Key: "Person.id", Value: "1"}}); err == nil {
		t.Fatalf("AddVertex(wrong type) expected error")
	}
	if _, err := tx.AddVertex(ctx, "Ghost", nil); err == nil {
		t.Fatalf("AddVertex(unknown label) expected error")
	}
}

func TestTx_SimpleMultiplicity(t *testing.T) {
	t.Parallel()

	s := New()
	newSchema(t, s)
	ctx := context.Background()

	tx, _ := s.Begin(ctx)
	a, _ := tx.AddVertex(ctx, "Person", []graph.Property{{Key: "Person.id", Value: int64(1)}})
	b, _ := tx.AddVertex(ctx, "Person", []graph.Property{{Key: "Person.id", Value: int64(2)}})
	_ = tx.AddEdge(ctx, "knows", a, b, nil)
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	tx2, _ := s.Begin(ctx)
	_ = tx2.AddEdge(ctx, "knows", a, b, nil)
	if err := tx2.Commit(ctx); err == nil {
		t.Fatalf("duplicate simple edge committed")
	}
}

func TestTx_SimpleMultiplicityWithinOneTx(t *testing.T) {
	t.Parallel()

	s := New()
	newSchema(t, s)
	ctx := context.Background()

	tx, _ := s.Begin(ctx)
	a, _ := tx.AddVertex(ctx, "Person", []graph.Property{{Key: "Person.id", Value: int64(1)}})
	b, _ := tx.AddVertex(ctx, "Person", []graph.Property{{Key: "Person.id", Value: int64(2)}})
	_ = tx.AddEdge(ctx, "knows", a, b, nil)
	_ = tx.AddEdge(ctx, "knows", a, b, nil)
	if err := tx.Commit(ctx); err == nil {
		t.Fatalf("Commit() with a repeated simple edge succeeded")
	}
	if s.EdgeCount() != 0 || s.VertexCount() != 0 {
		t.Fatalf("edges=%d vertices=%d after rejected commit, want 0/0", s.EdgeCount(), s.VertexCount())
	}
}

func TestTx_ConcurrentCommits(t *testing.T) {
	t.Parallel()

	s := New()
	newSchema(t, s)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				tx, _ := s.Begin(ctx)
				id := int64(w*1000 + i)
				if _, err := tx.AddVertex(ctx, "Person", []graph.Property{{Key: "Person.id", Value: id}}); err != nil {
					t.Errorf("AddVertex() error = %v", err)
					return
				}
				if err := tx.Commit(ctx); err != nil {
					t.Errorf("Commit() error = %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	if s.VertexCount() != 400 {
		t.Fatalf("VertexCount() = %d, want 400", s.VertexCount())
	}
}
