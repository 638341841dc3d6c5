// Package postgres stores a property graph in Postgres through pgx v5. The
// table layout matches the database/sql stores: catalog tables for schema
// elements, element tables, and one row per property value in canonical text
// form. Composite indexes are partial indexes on the property tables.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"graphload/internal/graph"
)

func init() {
	graph.Register("postgres", func(ctx context.Context, cfg graph.Config) (graph.Store, error) {
		return Open(ctx, cfg)
	})
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS gl_vertex_label (name text PRIMARY KEY)`,
	`CREATE TABLE IF NOT EXISTS gl_edge_label (name text PRIMARY KEY, multiplicity text NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS gl_property_key (name text PRIMARY KEY, datatype text NOT NULL, cardinality text NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS gl_index (name text PRIMARY KEY, target text NOT NULL, prop_key text NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS gl_vertex (id bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY, label text NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS gl_vertex_property (vertex_id bigint NOT NULL, prop_key text NOT NULL, ord integer NOT NULL, prop_value text NOT NULL, PRIMARY KEY (vertex_id, prop_key, ord))`,
	`CREATE TABLE IF NOT EXISTS gl_edge (id bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY, label text NOT NULL, from_id bigint NOT NULL, to_id bigint NOT NULL)`,
	`CREATE INDEX IF NOT EXISTS gl_edge_pair ON gl_edge (label, from_id, to_id)`,
	`CREATE TABLE IF NOT EXISTS gl_edge_property (edge_id bigint NOT NULL, prop_key text NOT NULL, ord integer NOT NULL, prop_value text NOT NULL, PRIMARY KEY (edge_id, prop_key, ord))`,
}

// Store is a graph.Store over a pgx pool.
type Store struct {
	pool *pgxpool.Pool

	mu    sync.RWMutex
	keys  map[string]graph.PropertyKey
	edges map[string]graph.Multiplicity
}

// Open connects to cfg.DSN and creates the graph tables if they are missing.
func Open(ctx context.Context, cfg graph.Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres bootstrap: %w", pgErr(err))
		}
	}
	return &Store{pool: pool, keys: map[string]graph.PropertyKey{}, edges: map[string]graph.Multiplicity{}}, nil
}

// OpenManagement starts a schema-management transaction.
func (s *Store) OpenManagement(ctx context.Context) (graph.Management, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin management: %w", err)
	}
	return &management{s: s, tx: tx}, nil
}

// Begin starts a data transaction.
func (s *Store) Begin(ctx context.Context) (graph.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &txn{s: s, tx: tx}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) propertyKey(ctx context.Context, q pgx.Tx, name string) (graph.PropertyKey, error) {
	s.mu.RLock()
	k, ok := s.keys[name]
	s.mu.RUnlock()
	if ok {
		return k, nil
	}
	var dt, card string
	err := q.QueryRow(ctx, `SELECT datatype, cardinality FROM gl_property_key WHERE name = $1`, name).Scan(&dt, &card)
	if errors.Is(err, pgx.ErrNoRows) {
		return graph.PropertyKey{}, fmt.Errorf("postgres: unknown property key %s", name)
	}
	if err != nil {
		return graph.PropertyKey{}, fmt.Errorf("postgres: read property key %s: %w", name, err)
	}
	d, err := graph.ParseDataType(dt)
	if err != nil {
		return graph.PropertyKey{}, fmt.Errorf("property key %s: %w", name, err)
	}
	k = graph.PropertyKey{Name: name, DataType: d}
	if card == graph.List.String() {
		k.Cardinality = graph.List
	}
	s.mu.Lock()
	s.keys[name] = k
	s.mu.Unlock()
	return k, nil
}

func (s *Store) multiplicity(ctx context.Context, q pgx.Tx, label string) (graph.Multiplicity, error) {
	s.mu.RLock()
	m, ok := s.edges[label]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}
	var text string
	err := q.QueryRow(ctx, `SELECT multiplicity FROM gl_edge_label WHERE name = $1`, label).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("postgres: unknown edge label %s", label)
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: read edge label %s: %w", label, err)
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

func exists(ctx context.Context, q pgx.Tx, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, pgErr(err)
	}
	return true, nil
}

// pgErr surfaces the server's detail and SQLSTATE when present.
func pgErr(err error) error {
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Detail != "" {
		return fmt.Errorf("%s (%s): %w", pe.Detail, pe.SQLState(), err)
	}
	return err
}

func txErr(op string, err error) error {
	if errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: %s: %w", op, graph.ErrTxDone)
	}
	return fmt.Errorf("postgres: %s: %w", op, pgErr(err))
}

// ident quotes a Postgres identifier.
func ident(s string) string { return pgx.Identifier{s}.Sanitize() }

// literal renders s as a Postgres string literal.
func literal(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }

// indexName maps a composite index name to the physical index name.
func indexName(name string) string { return "gl_ix_" + name }
