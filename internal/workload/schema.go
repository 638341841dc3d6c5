// Package workload defines the declared target schema of an import run: the
// vertex types and their properties, the edge types and their properties, and
// the file-name prefixes under which their CSV shards are published.
//
// A Schema is immutable once built. Every loader goroutine reads it
// concurrently, so nothing in this package mutates a Schema after
// construction.
package workload

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Type is a declared scalar property type.
type Type string

const (
	TypeInt     Type = "int"
	TypeLong    Type = "long"
	TypeString  Type = "string"
	TypeDate    Type = "date"
	TypeDecimal Type = "decimal"
	TypeDouble  Type = "double"
	TypeBigInt  Type = "bigint"
)

// ErrUnsupportedType marks a declared property type outside the active
// TypeSupport table.
var ErrUnsupportedType = errors.New("unsupported property type")

// TupleSep separates the parts of a compound token such as an edge triple
// ("Person.knows.Person") or a vertex property reference ("Person.email").
const TupleSep = "."

// ValueType is a declared property type: a scalar, or an array of a scalar
// stored as a multi-valued property.
type ValueType struct {
	Scalar Type
	Array  bool
}

// ParseValueType parses "long", "string[]" and the like. Names are
// case-insensitive; a few common aliases are accepted.
func ParseValueType(s string) (ValueType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ValueType{}, fmt.Errorf("empty property type")
	}
	var vt ValueType
	if strings.HasSuffix(s, "[]") {
		vt.Array = true
		s = strings.TrimSuffix(s, "[]")
	}
	switch s {
	case "int", "integer", "int32":
		vt.Scalar = TypeInt
	case "long", "int64":
		vt.Scalar = TypeLong
	case "string", "text":
		vt.Scalar = TypeString
	case "date", "datetime":
		vt.Scalar = TypeDate
	case "decimal", "bigdecimal":
		vt.Scalar = TypeDecimal
	case "double", "float64":
		vt.Scalar = TypeDouble
	case "bigint", "biginteger":
		vt.Scalar = TypeBigInt
	default:
		// Unknown scalars are kept verbatim; the reconciler decides whether
		// the active TypeSupport table accepts them.
		vt.Scalar = Type(s)
	}
	return vt, nil
}

func (v ValueType) String() string {
	if v.Array {
		return string(v.Scalar) + "[]"
	}
	return string(v.Scalar)
}

// MarshalText implements encoding.TextMarshaler.
func (v ValueType) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *ValueType) UnmarshalText(b []byte) error {
	vt, err := ParseValueType(string(b))
	if err != nil {
		return err
	}
	*v = vt
	return nil
}

// TypeSupport is the table of scalar types a run accepts. It is injected
// into the reconciler and the coercion registry instead of living in a
// package-level list, so tests can narrow it.
type TypeSupport map[Type]bool

// DefaultTypeSupport returns the scalar types every graph backend handles.
func DefaultTypeSupport() TypeSupport {
	return TypeSupport{
		TypeInt:     true,
		TypeLong:    true,
		TypeString:  true,
		TypeDate:    true,
		TypeDecimal: true,
		TypeDouble:  true,
		TypeBigInt:  true,
	}
}

// Supports reports whether vt's scalar is in the table.
func (t TypeSupport) Supports(vt ValueType) bool { return t[vt.Scalar] }

// Check returns an error wrapping ErrUnsupportedType when vt is not supported.
func (t TypeSupport) Check(vt ValueType) error {
	if t.Supports(vt) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedType, vt)
}

// Property is a declared property name with its value type.
type Property struct {
	Name string    `yaml:"name" json:"name"`
	Type ValueType `yaml:"type" json:"type"`
}

// Triple identifies an edge file: the source vertex label, the edge label
// and the target vertex label.
type Triple struct {
	From  string
	Label string
	To    string
}

// ParseTriple splits "Person.knows.Person".
func ParseTriple(s string) (Triple, error) {
	parts := strings.Split(s, TupleSep)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Triple{}, fmt.Errorf("edge triple %q: want <from>.<label>.<to>", s)
	}
	return Triple{From: parts[0], Label: parts[1], To: parts[2]}, nil
}

func (t Triple) String() string { return t.From + TupleSep + t.Label + TupleSep + t.To }

// Schema is the declared workload schema.
type Schema struct {
	// Vertices maps a vertex label to its ordered property declarations.
	Vertices map[string][]Property
	// Edges lists the declared edge labels.
	Edges []string
	// EdgeProperties maps an edge label to its property declarations. Edges
	// without properties may be absent.
	EdgeProperties map[string][]Property
	// VertexPropertyFiles maps "<label>.<property>" to a file-name prefix.
	VertexPropertyFiles map[string]string
	// EdgeFiles maps an edge triple ("Person.knows.Person") to a file-name
	// prefix.
	EdgeFiles map[string]string
}

// VertexLabels returns the declared vertex labels in sorted order.
func (s *Schema) VertexLabels() []string {
	out := make([]string, 0, len(s.Vertices))
	for l := range s.Vertices {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// HasVertex reports whether label is a declared vertex label.
func (s *Schema) HasVertex(label string) bool {
	_, ok := s.Vertices[label]
	return ok
}

// HasEdge reports whether label is a declared edge label.
func (s *Schema) HasEdge(label string) bool {
	for _, e := range s.Edges {
		if e == label {
			return true
		}
	}
	return false
}

// VertexProperty looks up a declared vertex property.
func (s *Schema) VertexProperty(label, name string) (Property, bool) {
	return find(s.Vertices[label], name)
}

// EdgeProperty looks up a declared edge property.
func (s *Schema) EdgeProperty(label, name string) (Property, bool) {
	return find(s.EdgeProperties[label], name)
}

func find(props []Property, name string) (Property, bool) {
	for _, p := range props {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Key returns the store-level property key for a property declared on label.
// Keys are namespaced so equally named properties of different labels never
// share a datatype.
func Key(label, property string) string { return label + TupleSep + property }

// IDColumn is the header name of the id column of a vertex label.
func IDColumn(label string) string { return Key(label, "id") }

// VertexFilePrefix is the file-name prefix of a vertex label's shards.
func VertexFilePrefix(label string) string { return strings.ToLower(label) }

// Validate checks structural consistency: edge files reference declared
// vertex and edge labels, vertex-property files reference declared
// properties, and every vertex label declares an "id" property.
func (s *Schema) Validate() error {
	var errs *multierror.Error
	for _, l := range s.VertexLabels() {
		if _, ok := s.VertexProperty(l, "id"); !ok {
			errs = multierror.Append(errs, fmt.Errorf("vertex %s: no id property declared", l))
		}
	}
	for e := range s.EdgeProperties {
		if !s.HasEdge(e) {
			errs = multierror.Append(errs, fmt.Errorf("edge properties for undeclared edge %s", e))
		}
	}
	for triple := range s.EdgeFiles {
		t, err := ParseTriple(triple)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if !s.HasVertex(t.From) || !s.HasVertex(t.To) {
			errs = multierror.Append(errs, fmt.Errorf("edge file %s: undeclared vertex label", triple))
		}
		if !s.HasEdge(t.Label) {
			errs = multierror.Append(errs, fmt.Errorf("edge file %s: undeclared edge label", triple))
		}
	}
	for ref := range s.VertexPropertyFiles {
		label, prop, ok := strings.Cut(ref, TupleSep)
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("vertex property file %s: want <label>.<property>", ref))
			continue
		}
		if _, ok := s.VertexProperty(label, prop); !ok {
			errs = multierror.Append(errs, fmt.Errorf("vertex property file %s: undeclared property", ref))
		}
	}
	return errs.ErrorOrNil()
}

// Kind is the kind of entity a shard family loads.
type Kind int

const (
	KindVertex Kind = iota
	KindEdge
	KindVertexProperty
)

func (k Kind) String() string {
	switch k {
	case KindEdge:
		return "edge"
	case KindVertexProperty:
		return "vertex_property"
	default:
		return "vertex"
	}
}
