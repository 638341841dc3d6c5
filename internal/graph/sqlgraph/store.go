// Package sqlgraph stores a property graph in relational tables through
// database/sql. Three dialects are registered: "sqlite" (modernc.org/sqlite),
// "mssql" (github.com/microsoft/go-mssqldb) and "mysql"
// (github.com/go-sql-driver/mysql).
//
// Vertices and edges live in gl_vertex and gl_edge; their properties are
// rows of (element, key, ord, value) with the value in the canonical text
// form of graph.EncodeValue. Schema elements are catalog rows, and a
// composite index is a partial index over the property table restricted to
// one key; MySQL has no partial indexes and indexes (key, value prefix)
// instead.
package sqlgraph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/microsoft/go-mssqldb/msdsn"

	"graphload/internal/graph"

	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

func init() {
	graph.Register("sqlite", func(ctx context.Context, cfg graph.Config) (graph.Store, error) {
		return Open(ctx, "sqlite", cfg)
	})
	graph.Register("mssql", func(ctx context.Context, cfg graph.Config) (graph.Store, error) {
		return Open(ctx, "mssql", cfg)
	})
	graph.Register("mysql", func(ctx context.Context, cfg graph.Config) (graph.Store, error) {
		return Open(ctx, "mysql", cfg)
	})
}

const pingTimeout = 5 * time.Second

// Store is a graph.Store over a *sql.DB.
type Store struct {
	db *sql.DB
	d  *dialect

	mu    sync.RWMutex
	keys  map[string]graph.PropertyKey
	edges map[string]graph.Multiplicity
}

// Open connects with the named dialect ("sqlite", "mssql" or "mysql") and
// creates the graph tables if they are missing.
func Open(ctx context.Context, dialectName string, cfg graph.Config) (*Store, error) {
	var d *dialect
	switch dialectName {
	case "sqlite":
		d = sqliteDialect
	case "mssql":
		d = mssqlDialect
		if _, err := msdsn.Parse(cfg.DSN); err != nil {
			return nil, fmt.Errorf("mssql dsn: %w", err)
		}
	case "mysql":
		d = mysqlDialect
		if strings.TrimSpace(cfg.DSN) != "" {
			mc, err := mysql.ParseDSN(cfg.DSN)
			if err != nil {
				return nil, fmt.Errorf("mysql dsn: %w", err)
			}
			if cfg.Username != "" {
				mc.User, mc.Passwd = cfg.Username, cfg.Password
			}
			cfg.DSN = mc.FormatDSN()
		}
	default:
		return nil, fmt.Errorf("sqlgraph: unknown dialect %q", dialectName)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%s: DSN must not be empty", d.name)
	}

	db, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d.name, err)
	}
	switch {
	case d == sqliteDialect:
		// One writer at a time; also keeps ":memory:" on a single database.
		db.SetMaxOpenConns(1)
	case cfg.MaxConns > 0:
		db.SetMaxOpenConns(cfg.MaxConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", d.name, err)
	}

	s := &Store{db: db, d: d, keys: map[string]graph.PropertyKey{}, edges: map[string]graph.Multiplicity{}}
	if err := s.bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) bootstrap(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: bootstrap: %w", s.d.name, err)
		}
	}
	return nil
}

// OpenManagement starts a schema-management transaction.
func (s *Store) OpenManagement(ctx context.Context) (graph.Management, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin management: %w", s.d.name, err)
	}
	return &management{s: s, tx: tx}, nil
}

// Begin starts a data transaction.
func (s *Store) Begin(ctx context.Context) (graph.Tx, error) {
	t, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", s.d.name, err)
	}
	return &tx{s: s, tx: t}, nil
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) exec(ctx context.Context, q querier, query string, args ...any) error {
	_, err := q.ExecContext(ctx, s.d.rebind(query), args...)
	return err
}

func (s *Store) exists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, s.d.rebind(query), args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// propertyKey returns a committed key, reading through to the catalog on a
// cache miss.
func (s *Store) propertyKey(ctx context.Context, q querier, name string) (graph.PropertyKey, error) {
	s.mu.RLock()
	k, ok := s.keys[name]
	s.mu.RUnlock()
	if ok {
		return k, nil
	}
	var dt, card string
	err := q.QueryRowContext(ctx, s.d.rebind(`SELECT datatype, cardinality FROM gl_property_key WHERE name = ?`), name).Scan(&dt, &card)
	if errors.Is(err, sql.ErrNoRows) {
		return graph.PropertyKey{}, fmt.Errorf("%s: unknown property key %s", s.d.name, name)
	}
	if err != nil {
		return graph.PropertyKey{}, fmt.Errorf("%s: read property key %s: %w", s.d.name, name, err)
	}
	k, err = decodeKey(name, dt, card)
	if err != nil {
		return k, err
	}
	s.mu.Lock()
	s.keys[name] = k
	s.mu.Unlock()
	return k, nil
}

func (s *Store) multiplicity(ctx context.Context, q querier, label string) (graph.Multiplicity, error) {
	s.mu.RLock()
	m, ok := s.edges[label]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}
	var text string
	err := q.QueryRowContext(ctx, s.d.rebind(`SELECT multiplicity FROM gl_edge_label WHERE name = ?`), label).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: unknown edge label %s", s.d.name, label)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: read edge label %s: %w", s.d.name, label, err)
	}
	m = graph.Simple
	if text == graph.Multi.String() {
		m = graph.Multi
	}
	s.mu.Lock()
	s.edges[label] = m
	s.mu.Unlock()
	return m, nil
}

func decodeKey(name, dt, card string) (graph.PropertyKey, error) {
	d, err := graph.ParseDataType(dt)
	if err != nil {
		return graph.PropertyKey{}, fmt.Errorf("property key %s: %w", name, err)
	}
	k := graph.PropertyKey{Name: name, DataType: d, Cardinality: graph.Single}
	if card == graph.List.String() {
		k.Cardinality = graph.List
	}
	return k, nil
}

// VertexProperties reads a committed vertex back with decoded values. List
// keys come back as []any in insertion order.
func (s *Store) VertexProperties(ctx context.Context, id graph.VertexID) (string, map[string]any, error) {
	var label string
	err := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT label FROM gl_vertex WHERE id = ?`), int64(id)).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("%s: vertex %d: %w", s.d.name, id, graph.ErrVertexNotFound)
	}
	if err != nil {
		return "", nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.d.rebind(
		`SELECT prop_key, prop_value FROM gl_vertex_property WHERE vertex_id = ? ORDER BY prop_key, ord`), int64(id))
	if err != nil {
		return "", nil, err
	}
	type pair struct{ key, raw string }
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.key, &p.raw); err != nil {
			rows.Close()
			return "", nil, err
		}
		pairs = append(pairs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", nil, err
	}

	props := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, err := s.propertyKey(ctx, s.db, p.key)
		if err != nil {
			return "", nil, err
		}
		v, err := graph.DecodeValue(k.DataType, p.raw)
		if err != nil {
			return "", nil, err
		}
		if k.Cardinality == graph.List {
			cur, _ := props[p.key].([]any)
			props[p.key] = append(cur, v)
		} else {
			props[p.key] = v
		}
	}
	return label, props, nil
}

// Counts returns the number of committed vertices and edges.
func (s *Store) Counts(ctx context.Context) (vertices, edges int64, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gl_vertex`).Scan(&vertices); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gl_edge`).Scan(&edges); err != nil {
		return 0, 0, err
	}
	return vertices, edges, nil
}
