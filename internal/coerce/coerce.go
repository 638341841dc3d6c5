// Package coerce turns raw CSV fields into the typed values a graph store
// accepts. A Registry maps each declared scalar type to its storage datatype
// and a parser; dates are stored as int64 epoch milliseconds.
package coerce

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"graphload/internal/graph"
	"graphload/internal/workload"
)

// Func parses one raw scalar field.
type Func func(s string) (any, error)

// Entry binds a declared type to its storage datatype and parser.
type Entry struct {
	DataType graph.DataType
	Parse    Func
}

// DefaultArrayDelimiter separates the elements of an array field.
const DefaultArrayDelimiter = ";"

// Registry is the Type Coercion Registry. It is read-only after New and safe
// for concurrent use.
type Registry struct {
	entries  map[workload.Type]Entry
	arrayDel string
}

// New builds a Registry holding an entry for every type in support that has
// a parser. Array fields are split on arrayDelimiter (DefaultArrayDelimiter
// when empty).
func New(support workload.TypeSupport, arrayDelimiter string) *Registry {
	if arrayDelimiter == "" {
		arrayDelimiter = DefaultArrayDelimiter
	}
	all := map[workload.Type]Entry{
		workload.TypeInt:     {graph.Int32, parseInt32},
		workload.TypeLong:    {graph.Int64, parseInt64},
		workload.TypeString:  {graph.String, parseString},
		workload.TypeDate:    {graph.Int64, ParseDate},
		workload.TypeDecimal: {graph.Decimal, parseDecimal},
		workload.TypeDouble:  {graph.Float64, parseDouble},
		workload.TypeBigInt:  {graph.BigInt, parseBigInt},
	}
	r := &Registry{entries: map[workload.Type]Entry{}, arrayDel: arrayDelimiter}
	for t, e := range all {
		if support[t] {
			r.entries[t] = e
		}
	}
	return r
}

// Lookup returns the entry for a scalar type.
func (r *Registry) Lookup(t workload.Type) (Entry, bool) {
	e, ok := r.entries[t]
	return e, ok
}

// PropertyKey derives the store property key for a declared property of
// label. Array types get List cardinality. The error wraps
// workload.ErrUnsupportedType when no entry exists.
func (r *Registry) PropertyKey(label string, p workload.Property) (graph.PropertyKey, error) {
	e, ok := r.entries[p.Type.Scalar]
	if !ok {
		return graph.PropertyKey{}, fmt.Errorf("%s.%s: %w: %s", label, p.Name, workload.ErrUnsupportedType, p.Type)
	}
	k := graph.PropertyKey{Name: workload.Key(label, p.Name), DataType: e.DataType, Cardinality: graph.Single}
	if p.Type.Array {
		k.Cardinality = graph.List
	}
	return k, nil
}

// Parse coerces raw to vt. Array values come back as []any.
func (r *Registry) Parse(vt workload.ValueType, raw string) (any, error) {
	e, ok := r.entries[vt.Scalar]
	if !ok {
		return nil, fmt.Errorf("%w: %s", workload.ErrUnsupportedType, vt)
	}
	if !vt.Array {
		return e.Parse(raw)
	}
	parts := strings.Split(raw, r.arrayDel)
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		v, err := e.Parse(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseInt32(s string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("int %q: %w", s, err)
	}
	return int32(n), nil
}

func parseInt64(s string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("long %q: %w", s, err)
	}
	return n, nil
}

func parseString(s string) (any, error) { return s, nil }

func parseDouble(s string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("double %q: %w", s, err)
	}
	return f, nil
}

func parseDecimal(s string) (any, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return nil, fmt.Errorf("decimal %q: invalid syntax", s)
	}
	return r, nil
}

func parseBigInt(s string) (any, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("bigint %q: invalid syntax", s)
	}
	return n, nil
}

// dateLayouts are tried in order. The first is the LDBC datagen timestamp
// format; the last covers plain calendar dates such as birthdays.
var dateLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a date or timestamp into int64 epoch milliseconds. A
// field of plain digits is taken to already be epoch milliseconds. Values
// without a zone are read as UTC.
func ParseDate(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("date: empty value")
	}
	if isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("date %q: %w", s, err)
		}
		return n, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return nil, fmt.Errorf("date %q: no matching layout", s)
}

// Time converts an epoch-millisecond date value back to a UTC time.
func Time(epochMillis int64) time.Time { return time.UnixMilli(epochMillis).UTC() }

func isDigits(s string) bool {
	start := 0
	if s[0] == '-' {
		start = 1
	}
	if start == len(s) {
		return false
	}
	for i := start; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
