// Package neo4j stores the graph in a Neo4j database through the Bolt
// driver. Vertex labels and edge labels map to node labels and relationship
// types, property keys keep their namespaced names, and the schema catalog
// is kept as Graphload* nodes so that Contains checks survive restarts.
//
// Neo4j rejects index creation inside a transaction that also writes data,
// so BuildCompositeIndex records the index and the management transaction
// creates it right after its commit.
package neo4j

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/neo4j"

	"graphload/internal/graph"
)

func init() {
	graph.Register("neo4j", func(ctx context.Context, cfg graph.Config) (graph.Store, error) {
		return Open(ctx, cfg)
	})
}

const (
	catalogVertexLabel = "GraphloadVertexLabel"
	catalogEdgeLabel   = "GraphloadEdgeLabel"
	catalogKey         = "GraphloadPropertyKey"
	catalogIndex       = "GraphloadIndex"
)

// Store is a graph.Store over a neo4j.Driver.
type Store struct {
	driver neo4j.Driver

	mu    sync.RWMutex
	keys  map[string]graph.PropertyKey
	edges map[string]graph.Multiplicity
}

// Open connects to cfg.DSN (a bolt:// or neo4j:// URI) with basic auth from
// cfg.Username and cfg.Password, and verifies connectivity.
func Open(ctx context.Context, cfg graph.Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("neo4j: DSN must not be empty")
	}
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}
	driver, err := neo4j.NewDriver(cfg.DSN, auth, func(c *neo4j.Config) {
		c.Encrypted = false
		if cfg.MaxConns > 0 {
			c.MaxConnectionPoolSize = cfg.MaxConns
		}
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: driver: %w", err)
	}
	if err := driver.VerifyConnectivity(); err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}
	return &Store{driver: driver, keys: map[string]graph.PropertyKey{}, edges: map[string]graph.Multiplicity{}}, nil
}

// session pairs a write session with its open transaction.
type session struct {
	sess neo4j.Session
	tx   neo4j.Transaction
}

func (s *Store) begin(ctx context.Context) (*session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	if err != nil {
		return nil, fmt.Errorf("neo4j: session: %w", err)
	}
	tx, err := sess.BeginTransaction()
	if err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("neo4j: begin: %w", err)
	}
	return &session{sess: sess, tx: tx}, nil
}

func (ss *session) finish(commit bool) error {
	if ss.tx == nil {
		return graph.ErrTxDone
	}
	var err error
	if commit {
		err = ss.tx.Commit()
	} else {
		err = ss.tx.Rollback()
	}
	_ = ss.tx.Close()
	ss.tx = nil
	if cerr := ss.sess.Close(); err == nil {
		err = cerr
	}
	return err
}

// single runs query and returns its only record, or nil when there is none.
func (ss *session) single(ctx context.Context, query string, params map[string]interface{}) (neo4j.Record, error) {
	if ss.tx == nil {
		return nil, graph.ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := ss.tx.Run(query, params)
	if err != nil {
		return nil, err
	}
	var rec neo4j.Record
	if res.Next() {
		rec = res.Record()
	}
	if _, err := res.Consume(); err != nil {
		return nil, err
	}
	return rec, res.Err()
}

// OpenManagement starts a schema-management transaction.
func (s *Store) OpenManagement(ctx context.Context) (graph.Management, error) {
	ss, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	return &management{s: s, ss: ss}, nil
}

// Begin starts a data transaction.
func (s *Store) Begin(ctx context.Context) (graph.Tx, error) {
	ss, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	return &tx{s: s, ss: ss}, nil
}

// Close closes the driver.
func (s *Store) Close() error { return s.driver.Close() }

func (s *Store) propertyKey(ctx context.Context, ss *session, name string) (graph.PropertyKey, error) {
	s.mu.RLock()
	k, ok := s.keys[name]
	s.mu.RUnlock()
	if ok {
		return k, nil
	}
	rec, err := ss.single(ctx, "MATCH (k:"+catalogKey+" {name: $name}) RETURN k.datatype, k.cardinality",
		map[string]interface{}{"name": name})
	if err != nil {
		return k, fmt.Errorf("neo4j: read property key %s: %w", name, err)
	}
	if rec == nil {
		return k, fmt.Errorf("neo4j: unknown property key %s", name)
	}
	vals := rec.Values()
	dt, _ := vals[0].(string)
	card, _ := vals[1].(string)
	d, err := graph.ParseDataType(dt)
	if err != nil {
		return k, fmt.Errorf("property key %s: %w", name, err)
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

func (s *Store) multiplicity(ctx context.Context, ss *session, label string) (graph.Multiplicity, error) {
	s.mu.RLock()
	m, ok := s.edges[label]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}
	rec, err := ss.single(ctx, "MATCH (e:"+catalogEdgeLabel+" {name: $name}) RETURN e.multiplicity",
		map[string]interface{}{"name": label})
	if err != nil {
		return 0, fmt.Errorf("neo4j: read edge label %s: %w", label, err)
	}
	if rec == nil {
		return 0, fmt.Errorf("neo4j: unknown edge label %s", label)
	}
	m = graph.Simple
	if text, _ := rec.Values()[0].(string); text == graph.Multi.String() {
		m = graph.Multi
	}
	s.mu.Lock()
	s.edges[label] = m
	s.mu.Unlock()
	return m, nil
}

// quote backtick-quotes a label, relationship type or property name.
func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// toNeo converts a coerced value to a Bolt-encodable one. Arbitrary
// precision numbers travel in their canonical text form.
func toNeo(v any) (interface{}, error) {
	switch x := v.(type) {
	case int32:
		return int64(x), nil
	case int64, float64, string:
		return x, nil
	case *big.Rat, *big.Int:
		return graph.EncodeValue(x)
	case []any:
		out := make([]interface{}, len(x))
		for i, e := range x {
			n, err := toNeo(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("neo4j: unsupported value type %T", v)
	}
}

// propMap converts properties to a parameter map for SET x = $props.
func propMap(props []graph.Property) (map[string]interface{}, error) {
	m := make(map[string]interface{}, len(props))
	for _, p := range props {
		v, err := toNeo(p.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Key, err)
		}
		m[p.Key] = v
	}
	return m, nil
}

// indexDDL is the Cypher creating the composite index name on key.
func indexDDL(name string, target graph.Target, key string) string {
	label := quote(graph.LabelOf(key))
	if target == graph.TargetEdge {
		return fmt.Sprintf("CREATE INDEX %s IF NOT EXISTS FOR ()-[e:%s]-() ON (e.%s)", quote(name), label, quote(key))
	}
	return fmt.Sprintf("CREATE INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.%s)", quote(name), label, quote(key))
}
