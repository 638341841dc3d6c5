// Package graph contains the store-agnostic contracts the import pipeline
// needs from a property-graph database: a management interface used to
// reconcile schema, and a transactional interface used to apply mutation
// batches.
//
// Backends (in-memory, SQLite, SQL Server, Postgres, Neo4j) implement Store
// and register a factory under a kind at init time, mirroring how storage
// backends plug into the loader. The rest of the program depends only on
// this package.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConnection wraps any failure to reach the store at startup. It is
	// fatal to the whole run.
	ErrConnection = errors.New("graph store unreachable")

	// ErrVertexNotFound is returned by Tx.LookupVertex when no vertex holds
	// the requested key/value pair.
	ErrVertexNotFound = errors.New("vertex not found")

	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("transaction already committed or rolled back")
)

// VertexID is a store-assigned vertex identifier.
type VertexID int64

// DataType is the storage datatype of a property key.
type DataType int

const (
	Int32 DataType = iota + 1
	Int64
	String
	Decimal
	Float64
	BigInt
)

func (d DataType) String() string {
	switch d {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case String:
		return "string"
	case Decimal:
		return "decimal"
	case Float64:
		return "float64"
	case BigInt:
		return "bigint"
	default:
		return fmt.Sprintf("datatype(%d)", int(d))
	}
}

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, error) {
	for d := Int32; d <= BigInt; d++ {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown datatype %q", s)
}

// Cardinality says whether a key holds one value or a list per element.
type Cardinality int

const (
	Single Cardinality = iota
	List
)

func (c Cardinality) String() string {
	if c == List {
		return "list"
	}
	return "single"
}

// Multiplicity constrains edges of one label between an ordered vertex pair.
type Multiplicity int

const (
	// Simple allows at most one edge of the label per ordered pair.
	Simple Multiplicity = iota
	// Multi places no constraint.
	Multi
)

func (m Multiplicity) String() string {
	if m == Multi {
		return "multi"
	}
	return "simple"
}

// Target is the element kind an index is scoped to.
type Target int

const (
	TargetVertex Target = iota
	TargetEdge
)

func (t Target) String() string {
	if t == TargetEdge {
		return "edge"
	}
	return "vertex"
}

// PropertyKey describes a property key to create.
type PropertyKey struct {
	Name        string
	DataType    DataType
	Cardinality Cardinality
}

// Property is a key/value pair attached to a vertex or edge. For List keys,
// Value is a []any holding one element per value.
type Property struct {
	Key   string
	Value any
}

// Store is a handle to a property-graph database. It is shared by every
// loader goroutine; implementations must be safe for concurrent use, and
// each Begin returns a transaction owned by a single goroutine.
type Store interface {
	OpenManagement(ctx context.Context) (Management, error)
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Management is a schema-management transaction.
type Management interface {
	ContainsVertexLabel(ctx context.Context, name string) (bool, error)
	ContainsEdgeLabel(ctx context.Context, name string) (bool, error)
	ContainsPropertyKey(ctx context.Context, name string) (bool, error)

	CreateVertexLabel(ctx context.Context, name string) error
	CreateEdgeLabel(ctx context.Context, name string, m Multiplicity) error
	CreatePropertyKey(ctx context.Context, k PropertyKey) error
	BuildCompositeIndex(ctx context.Context, name string, target Target, key string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Tx is a data transaction.
type Tx interface {
	// LookupVertex returns the vertex holding value under key, or an error
	// wrapping ErrVertexNotFound.
	LookupVertex(ctx context.Context, key string, value any) (VertexID, error)
	AddVertex(ctx context.Context, label string, props []Property) (VertexID, error)
	AddEdge(ctx context.Context, label string, from, to VertexID, props []Property) error
	// SetVertexProperty sets (Single) or appends to (List) a property of an
	// existing vertex.
	SetVertexProperty(ctx context.Context, id VertexID, p Property) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// LabelOf returns the label portion of a namespaced property key
// ("Person.id" -> "Person").
func LabelOf(key string) string {
	label, _, _ := strings.Cut(key, ".")
	return label
}
