package loader

import (
	"context"
	"fmt"
	"strings"

	"graphload/internal/coerce"
	"graphload/internal/graph"
	"graphload/internal/workload"
)

// row is one parsed CSV record. ids holds the coerced id values an edge or
// vertex-property row refers to; props holds the coerced properties.
type row struct {
	line  int
	ids   [2]any
	props []graph.Property
}

// variant is the part of a task that depends on what the file loads.
type variant interface {
	// validateHeader checks the header row against the schema.
	validateHeader(header []string) error
	// parseRow coerces the fields of one record.
	parseRow(fields []string) (row, error)
	// applyRow adds the row's mutation to tx.
	applyRow(ctx context.Context, tx graph.Tx, r row) error
}

// column is a header column bound to a property key.
type column struct {
	key string
	vt  workload.ValueType
	// skip is set for columns whose declared type the registry cannot
	// coerce; their values are ignored.
	skip bool
}

func newVariant(t Task, s *workload.Schema, reg *coerce.Registry) (variant, error) {
	switch t.Kind {
	case workload.KindVertex:
		if !s.HasVertex(t.Label) {
			return nil, violation(t.File, "undeclared vertex label %s", t.Label)
		}
		return &vertexVariant{file: t.File, label: t.Label, schema: s, reg: reg}, nil
	case workload.KindEdge:
		tr, err := workload.ParseTriple(t.Label)
		if err != nil {
			return nil, violation(t.File, "%v", err)
		}
		if !s.HasVertex(tr.From) || !s.HasVertex(tr.To) {
			return nil, violation(t.File, "vertex types of triple %s not declared", tr)
		}
		if !s.HasEdge(tr.Label) {
			return nil, violation(t.File, "edge type of triple %s not declared", tr)
		}
		return &edgeVariant{file: t.File, triple: tr, schema: s, reg: reg}, nil
	case workload.KindVertexProperty:
		label, prop, ok := strings.Cut(t.Label, workload.TupleSep)
		if !ok || !s.HasVertex(label) {
			return nil, violation(t.File, "vertex property reference %s does not name a declared label", t.Label)
		}
		return &propertyVariant{file: t.File, label: label, prop: prop, schema: s, reg: reg}, nil
	default:
		return nil, fmt.Errorf("%s: unknown task kind %v", t.File, t.Kind)
	}
}

// propertyName strips an optional "<label>." qualifier from a header cell.
func propertyName(label, col string) string {
	return strings.TrimPrefix(strings.TrimSpace(col), label+workload.TupleSep)
}

func (r *row) add(reg *coerce.Registry, c column, raw string) error {
	if c.skip || raw == "" {
		return nil
	}
	v, err := reg.Parse(c.vt, raw)
	if err != nil {
		return fmt.Errorf("%s: %w", c.key, err)
	}
	if xs, ok := v.([]any); ok && len(xs) == 0 {
		return nil
	}
	r.props = append(r.props, graph.Property{Key: c.key, Value: v})
	return nil
}

func idValue(reg *coerce.Registry, s *workload.Schema, label, raw string) (any, error) {
	p, ok := s.VertexProperty(label, "id")
	if !ok {
		return nil, fmt.Errorf("vertex %s declares no id", label)
	}
	if raw == "" {
		return nil, fmt.Errorf("%s: empty id", workload.IDColumn(label))
	}
	v, err := reg.Parse(p.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", workload.IDColumn(label), err)
	}
	return v, nil
}

func lookup(ctx context.Context, tx graph.Tx, label string, id any) (graph.VertexID, error) {
	return tx.LookupVertex(ctx, workload.IDColumn(label), id)
}

func checkWidth(fields []string, want int) error {
	if len(fields) != want {
		return fmt.Errorf("got %d fields, header has %d", len(fields), want)
	}
	return nil
}

// vertexVariant loads a main vertex file: <label>.id followed by declared
// property columns.
type vertexVariant struct {
	file   string
	label  string
	schema *workload.Schema
	reg    *coerce.Registry
	cols   []column
}

func (v *vertexVariant) validateHeader(header []string) error {
	if len(header) == 0 || strings.TrimSpace(header[0]) != workload.IDColumn(v.label) {
		return violation(v.file, "first column is not labeled %s", workload.IDColumn(v.label))
	}
	seen := map[string]bool{}
	v.cols = make([]column, len(header))
	for i, h := range header {
		name := propertyName(v.label, h)
		p, ok := v.schema.VertexProperty(v.label, name)
		if !ok {
			return violation(v.file, "unknown property %q for vertex type %s", h, v.label)
		}
		if seen[name] {
			return violation(v.file, "duplicate column %q", h)
		}
		seen[name] = true
		_, supported := v.reg.Lookup(p.Type.Scalar)
		v.cols[i] = column{key: workload.Key(v.label, name), vt: p.Type, skip: !supported}
	}
	if v.cols[0].skip {
		return violation(v.file, "id column %s has unsupported type %s", workload.IDColumn(v.label), v.cols[0].vt)
	}
	return nil
}

func (v *vertexVariant) parseRow(fields []string) (row, error) {
	var r row
	if err := checkWidth(fields, len(v.cols)); err != nil {
		return r, err
	}
	if fields[0] == "" {
		return r, fmt.Errorf("%s: empty id", workload.IDColumn(v.label))
	}
	r.props = make([]graph.Property, 0, len(fields))
	for i, f := range fields {
		if err := r.add(v.reg, v.cols[i], f); err != nil {
			return r, err
		}
	}
	return r, nil
}

func (v *vertexVariant) applyRow(ctx context.Context, tx graph.Tx, r row) error {
	_, err := tx.AddVertex(ctx, v.label, r.props)
	return err
}

// edgeVariant loads an edge file: <from>.id, <to>.id, then declared edge
// property columns.
type edgeVariant struct {
	file   string
	triple workload.Triple
	schema *workload.Schema
	reg    *coerce.Registry
	cols   []column
}

func (e *edgeVariant) validateHeader(header []string) error {
	t := e.triple
	if len(header) < 2 {
		return violation(e.file, "header has %d columns, want at least 2", len(header))
	}
	if strings.TrimSpace(header[0]) != workload.IDColumn(t.From) {
		return violation(e.file, "first column is not labeled %s, but %s", workload.IDColumn(t.From), header[0])
	}
	if strings.TrimSpace(header[1]) != workload.IDColumn(t.To) {
		return violation(e.file, "second column is not labeled %s, but %s", workload.IDColumn(t.To), header[1])
	}
	seen := map[string]bool{}
	e.cols = make([]column, len(header))
	for i := 2; i < len(header); i++ {
		name := propertyName(t.Label, header[i])
		p, ok := e.schema.EdgeProperty(t.Label, name)
		if !ok {
			return violation(e.file, "unknown property %q for edge type %s", header[i], t.Label)
		}
		if seen[name] {
			return violation(e.file, "duplicate column %q", header[i])
		}
		seen[name] = true
		_, supported := e.reg.Lookup(p.Type.Scalar)
		e.cols[i] = column{key: workload.Key(t.Label, name), vt: p.Type, skip: !supported}
	}
	return nil
}

func (e *edgeVariant) parseRow(fields []string) (row, error) {
	var r row
	if err := checkWidth(fields, len(e.cols)); err != nil {
		return r, err
	}
	var err error
	if r.ids[0], err = idValue(e.reg, e.schema, e.triple.From, fields[0]); err != nil {
		return r, err
	}
	if r.ids[1], err = idValue(e.reg, e.schema, e.triple.To, fields[1]); err != nil {
		return r, err
	}
	for i := 2; i < len(fields); i++ {
		if err := r.add(e.reg, e.cols[i], fields[i]); err != nil {
			return r, err
		}
	}
	return r, nil
}

func (e *edgeVariant) applyRow(ctx context.Context, tx graph.Tx, r row) error {
	from, err := lookup(ctx, tx, e.triple.From, r.ids[0])
	if err != nil {
		return err
	}
	to, err := lookup(ctx, tx, e.triple.To, r.ids[1])
	if err != nil {
		return err
	}
	return tx.AddEdge(ctx, e.triple.Label, from, to, r.props)
}

// propertyVariant loads a vertex-property file: exactly <label>.id and one
// declared property of that label. Each row sets the property on an
// existing vertex; multi-valued properties accumulate.
type propertyVariant struct {
	file   string
	label  string
	prop   string
	schema *workload.Schema
	reg    *coerce.Registry
	col    column
}

func (p *propertyVariant) validateHeader(header []string) error {
	if len(header) != 2 {
		return violation(p.file, "header has %d columns, want [%s, %s]", len(header), workload.IDColumn(p.label), p.prop)
	}
	if strings.TrimSpace(header[0]) != workload.IDColumn(p.label) {
		return violation(p.file, "first column is not labeled %s, but %s", workload.IDColumn(p.label), header[0])
	}
	name := propertyName(p.label, header[1])
	decl, ok := p.schema.VertexProperty(p.label, name)
	if !ok || name != p.prop {
		return violation(p.file, "unknown property %q for vertex type %s, expected %s", header[1], p.label, p.prop)
	}
	if _, supported := p.reg.Lookup(decl.Type.Scalar); !supported {
		return violation(p.file, "property %s has unsupported type %s", workload.Key(p.label, name), decl.Type)
	}
	p.col = column{key: workload.Key(p.label, name), vt: decl.Type}
	return nil
}

func (p *propertyVariant) parseRow(fields []string) (row, error) {
	var r row
	if err := checkWidth(fields, 2); err != nil {
		return r, err
	}
	var err error
	if r.ids[0], err = idValue(p.reg, p.schema, p.label, fields[0]); err != nil {
		return r, err
	}
	if fields[1] == "" {
		return r, fmt.Errorf("%s: empty value", p.col.key)
	}
	if err := r.add(p.reg, p.col, fields[1]); err != nil {
		return r, err
	}
	return r, nil
}

func (p *propertyVariant) applyRow(ctx context.Context, tx graph.Tx, r row) error {
	id, err := lookup(ctx, tx, p.label, r.ids[0])
	if err != nil {
		return err
	}
	for _, prop := range r.props {
		if err := tx.SetVertexProperty(ctx, id, prop); err != nil {
			return err
		}
	}
	return nil
}
