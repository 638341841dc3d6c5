package sqlgraph

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"reflect"
	"testing"

	"graphload/internal/coerce"
	"graphload/internal/graph"
	"graphload/internal/reconcile"
	"graphload/internal/workload"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", graph.Config{DSN: filepath.Join(t.TempDir(), "graph.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createSchema(t *testing.T, s *Store) {
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
		m.CreatePropertyKey(ctx, graph.PropertyKey{Name: "Person.firstName", DataType: graph.String}),
		m.CreatePropertyKey(ctx, graph.PropertyKey{Name: "Person.email", DataType: graph.String, Cardinality: graph.List}),
		m.CreatePropertyKey(ctx, graph.PropertyKey{Name: "Person.score", DataType: graph.Decimal}),
		m.CreatePropertyKey(ctx, graph.PropertyKey{Name: "knows.creationDate", DataType: graph.Int64}),
		m.BuildCompositeIndex(ctx, "byPerson.id", graph.TargetVertex, "Person.id"),
		m.BuildCompositeIndex(ctx, "byknows.creationDate", graph.TargetEdge, "knows.creationDate"),
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

func TestManagement_ContainsAndIndexes(t *testing.T) {
	t.Parallel()

	s := openSQLite(t)
	createSchema(t, s)
	ctx := context.Background()

	m, _ := s.OpenManagement(ctx)
	for _, c := range []func() (bool, error){
		func() (bool, error) { return m.ContainsVertexLabel(ctx, "Person") },
		func() (bool, error) { return m.ContainsEdgeLabel(ctx, "knows") },
		func() (bool, error) { return m.ContainsPropertyKey(ctx, "Person.email") },
	} {
		if ok, err := c(); err != nil || !ok {
			t.Fatalf("Contains = %v, %v; want true", ok, err)
		}
	}
	if ok, err := m.ContainsVertexLabel(ctx, "Tag"); err != nil || ok {
		t.Fatalf("ContainsVertexLabel(Tag) = %v, %v; want false", ok, err)
	}
	if err := m.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	for _, name := range []string{"gl_ix_byPerson_id", "gl_ix_byknows_creationDate"} {
		var n int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?`, name).Scan(&n)
		if err != nil || n != 1 {
			t.Fatalf("index %s: count=%d err=%v", name, n, err)
		}
	}
}

func TestManagement_RollbackDiscards(t *testing.T) {
	t.Parallel()

	s := openSQLite(t)
	ctx := context.Background()
	m, _ := s.OpenManagement(ctx)
	if err := m.CreateVertexLabel(ctx, "Tag"); err != nil {
		t.Fatalf("CreateVertexLabel() error = %v", err)
	}
	if err := m.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	m2, _ := s.OpenManagement(ctx)
	defer m2.Rollback(ctx)
	if ok, _ := m2.ContainsVertexLabel(ctx, "Tag"); ok {
		t.Fatalf("Tag survived rollback")
	}
	if err := m.Commit(ctx); !errors.Is(err, graph.ErrTxDone) {
		t.Fatalf("Commit() after Rollback error = %v, want ErrTxDone", err)
	}
}

func TestTx_VerticesEdgesAndProperties(t *testing.T) {
	t.Parallel()

	s := openSQLite(t)
	createSchema(t, s)
	ctx := context.Background()

	tx, _ := s.Begin(ctx)
	a, err := tx.AddVertex(ctx, "Person", []graph.Property{
		{Key: "Person.id", Value: int64(933)},
		{Key: "Person.firstName", Value: "Mahinda"},
		{Key: "Person.email", Value: []any{"a@x", "b@x"}},
		{Key: "Person.score", Value: big.NewRat(314, 100)},
	})
	if err != nil {
		t.Fatalf("AddVertex() error = %v", err)
	}
	if got, err := tx.LookupVertex(ctx, "Person.id", int64(933)); err != nil || got != a {
		t.Fatalf("LookupVertex(pending) = %v, %v; want %v", got, err, a)
	}
	b, err := tx.AddVertex(ctx, "Person", []graph.Property{{Key: "Person.id", Value: int64(1129)}})
	if err != nil {
		t.Fatalf("AddVertex() error = %v", err)
	}
	if err := tx.AddEdge(ctx, "knows", a, b, []graph.Property{{Key: "knows.creationDate", Value: int64(1266161530447)}}); err != nil {
		t.Fatalf("AddEdge() error = %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	tx2, _ := s.Begin(ctx)
	if err := tx2.SetVertexProperty(ctx, a, graph.Property{Key: "Person.email", Value: []any{"c@x"}}); err != nil {
		t.Fatalf("SetVertexProperty(list) error = %v", err)
	}
	if err := tx2.SetVertexProperty(ctx, a, graph.Property{Key: "Person.firstName", Value: "Mahi"}); err != nil {
		t.Fatalf("SetVertexProperty(single) error = %v", err)
	}
	if err := tx2.SetVertexProperty(ctx, graph.VertexID(424242), graph.Property{Key: "Person.firstName", Value: "x"}); !errors.Is(err, graph.ErrVertexNotFound) {
		t.Fatalf("SetVertexProperty(missing) error = %v, want ErrVertexNotFound", err)
	}
	if err := tx2.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	label, props, err := s.VertexProperties(ctx, a)
	if err != nil {
		t.Fatalf("VertexProperties() error = %v", err)
	}
	if label != "Person" {
		t.Fatalf("label = %q, want Person", label)
	}
	if !reflect.DeepEqual(props["Person.email"], []any{"a@x", "b@x", "c@x"}) {
		t.Fatalf("Person.email = %#v", props["Person.email"])
	}
	if props["Person.firstName"] != "Mahi" || props["Person.id"] != int64(933) {
		t.Fatalf("props = %#v", props)
	}
	if r, ok := props["Person.score"].(*big.Rat); !ok || r.Cmp(big.NewRat(157, 50)) != 0 {
		t.Fatalf("Person.score = %#v", props["Person.score"])
	}

	v, e, err := s.Counts(ctx)
	if err != nil || v != 2 || e != 1 {
		t.Fatalf("Counts() = %d, %d, %v; want 2, 1", v, e, err)
	}

	// One connection: the read-back above must finish before tx3 begins.
	tx3, _ := s.Begin(ctx)
	defer tx3.Rollback(ctx)
	if got, err := tx3.LookupVertex(ctx, "Person.email", "b@x"); err != nil || got != a {
		t.Fatalf("LookupVertex(email) = %v, %v; want %v", got, err, a)
	}
	if _, err := tx3.LookupVertex(ctx, "Person.id", int64(1)); !errors.Is(err, graph.ErrVertexNotFound) {
		t.Fatalf("LookupVertex(missing) error = %v, want ErrVertexNotFound", err)
	}
	if err := tx3.AddEdge(ctx, "knows", a, b, nil); err == nil {
		t.Fatalf("duplicate simple edge accepted")
	}

}

func TestTx_RejectsBadInput(t *testing.T) {
	t.Parallel()

	s := openSQLite(t)
	createSchema(t, s)
	ctx := context.Background()
	tx, _ := s.Begin(ctx)
	defer tx.Rollback(ctx)

	if _, err := tx.AddVertex(ctx, "Ghost", nil); err == nil {
		t.Fatalf("AddVertex(unknown label) expected error")
	}
	if _, err := tx.AddVertex(ctx, "Person", []graph.Property{{Key: "Person.nope", Value: "x"}}); err == nil {
		t.Fatalf("AddVertex(unknown key) expected error")
	}
	if _, err := tx.AddVertex(ctx, "Person", []graph.Property{{Key: "Person.id", Value: "933"}}); err == nil {
		t.Fatalf("AddVertex(wrong type) expected error")
	}
	if err := tx.AddEdge(ctx, "likes", 1, 2, nil); err == nil {
		t.Fatalf("AddEdge(unknown label) expected error")
	}
}

func TestTx_RollbackDiscardsData(t *testing.T) {
	t.Parallel()

	s := openSQLite(t)
	createSchema(t, s)
	ctx := context.Background()

	tx, _ := s.Begin(ctx)
	if _, err := tx.AddVertex(ctx, "Person", []graph.Property{{Key: "Person.id", Value: int64(1)}}); err != nil {
		t.Fatalf("AddVertex() error = %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if v, _, _ := s.Counts(ctx); v != 0 {
		t.Fatalf("vertices = %d after rollback, want 0", v)
	}
}

func TestReconcile_OnSQLiteIsIdempotent(t *testing.T) {
	t.Parallel()

	s := openSQLite(t)
	ctx := context.Background()
	r := reconcile.New(s, coerce.New(workload.DefaultTypeSupport(), ""), nil)

	first, err := r.Run(ctx, workload.Interactive())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if first.Created() == 0 {
		t.Fatalf("first Run() created nothing")
	}
	second, err := r.Run(ctx, workload.Interactive())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second.Created() != 0 {
		t.Fatalf("second Run() created %d elements, want 0", second.Created())
	}
}

func TestOpen_RegisteredKinds(t *testing.T) {
	t.Parallel()

	s, err := graph.Open(context.Background(), graph.Config{Kind: "sqlite", DSN: filepath.Join(t.TempDir(), "g.db")})
	if err != nil {
		t.Fatalf("graph.Open(sqlite) error = %v", err)
	}
	_ = s.Close()

	_, err = graph.Open(context.Background(), graph.Config{Kind: "mssql", DSN: "sqlserver://%zz"})
	if !errors.Is(err, graph.ErrConnection) {
		t.Fatalf("graph.Open(mssql bad dsn) error = %v, want ErrConnection", err)
	}
	_, err = graph.Open(context.Background(), graph.Config{Kind: "mysql", DSN: "graph@tcp(localhost:3306"})
	if !errors.Is(err, graph.ErrConnection) {
		t.Fatalf("graph.Open(mysql bad dsn) error = %v, want ErrConnection", err)
	}
	if _, err := Open(context.Background(), "sqlite", graph.Config{}); err == nil {
		t.Fatalf("Open() with empty DSN expected error")
	}
}

func TestDialect_Helpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"rebind sqlite", sqliteDialect.rebind("a = ? AND b = ?"), "a = ? AND b = ?"},
		{"rebind mssql", mssqlDialect.rebind("a = ? AND b = ?"), "a = @p1 AND b = @p2"},
		{"rebind skips literals", mssqlDialect.rebind("k = 'x?y' AND v = ?"), "k = 'x?y' AND v = @p1"},
		{"literal sqlite", sqliteDialect.literal("O'Brien.id"), "'O''Brien.id'"},
		{"literal mssql", mssqlDialect.literal("Person.id"), "N'Person.id'"},
		{"rebind mysql", mysqlDialect.rebind("a = ?"), "a = ?"},
		{"literal mysql", mysqlDialect.literal(`it's a\b`), `'it''s a\\b'`},
		{"index mysql", fmt.Sprintf(mysqlDialect.indexFmt, "gl_ix_byTag_id", "gl_vertex_property", "'Tag.id'"),
			"CREATE INDEX gl_ix_byTag_id ON gl_vertex_property (prop_key, prop_value(191))"},
		{"index name", indexName("byPerson.creationDate"), "gl_ix_byPerson_creationDate"},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("%s = %q, want %q", tc.name, tc.got, tc.want)
		}
	}
}
