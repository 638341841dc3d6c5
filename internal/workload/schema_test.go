package workload

import (
	"errors"
	"strings"
	"testing"
)

func TestParseValueType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want ValueType
	}{
		{"long", ValueType{Scalar: TypeLong}},
		{"Integer", ValueType{Scalar: TypeInt}},
		{"string[]", ValueType{Scalar: TypeString, Array: true}},
		{" date ", ValueType{Scalar: TypeDate}},
		{"BigDecimal", ValueType{Scalar: TypeDecimal}},
		{"biginteger", ValueType{Scalar: TypeBigInt}},
		{"boolean", ValueType{Scalar: Type("boolean")}},
	}
	for _, tc := range tests {
		got, err := ParseValueType(tc.in)
		if err != nil {
			t.Fatalf("ParseValueType(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseValueType(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParseValueType(""); err == nil {
		t.Fatalf("ParseValueType(\"\") expected error")
	}
}

func TestTypeSupport_Check(t *testing.T) {
	t.Parallel()

	sup := DefaultTypeSupport()
	if err := sup.Check(ValueType{Scalar: TypeDate, Array: true}); err != nil {
		t.Fatalf("Check(date[]) error = %v", err)
	}
	err := sup.Check(ValueType{Scalar: "boolean"})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("Check(boolean) = %v, want ErrUnsupportedType", err)
	}

	narrow := TypeSupport{TypeLong: true}
	if narrow.Supports(ValueType{Scalar: TypeString}) {
		t.Fatalf("narrow table should not support string")
	}
}

func TestParseTriple(t *testing.T) {
	t.Parallel()

	tr, err := ParseTriple("Person.knows.Person")
	if err != nil {
		t.Fatalf("ParseTriple error = %v", err)
	}
	if tr.From != "Person" || tr.Label != "knows" || tr.To != "Person" {
		t.Fatalf("ParseTriple = %+v", tr)
	}
	if tr.String() != "Person.knows.Person" {
		t.Fatalf("String() = %q", tr.String())
	}
	for _, bad := range []string{"Person.knows", "a..b", "a.b.c.d"} {
		if _, err := ParseTriple(bad); err == nil {
			t.Fatalf("ParseTriple(%q) expected error", bad)
		}
	}
}

func TestInteractive_Validates(t *testing.T) {
	t.Parallel()

	s := Interactive()
	if err := s.Validate(); err != nil {
		t.Fatalf("Interactive().Validate() error = %v", err)
	}
	if got := len(s.VertexLabels()); got != 8 {
		t.Fatalf("vertex labels = %d, want 8", got)
	}
	p, ok := s.VertexProperty("Person", "email")
	if !ok || !p.Type.Array {
		t.Fatalf("Person.email = %+v, %v; want array property", p, ok)
	}
	if _, ok := s.EdgeProperty("knows", "creationDate"); !ok {
		t.Fatalf("knows.creationDate missing")
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	doc := `
vertices:
  Person:
    - {name: id, type: long}
    - {name: name, type: string}
    - {name: email, type: "string[]"}
edges: [knows]
edge_properties:
  knows:
    - {name: since, type: date}
vertex_property_files:
  Person.email: person_email
edge_files:
  Person.knows.Person: knows
`
	s, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	if !s.HasVertex("Person") || !s.HasEdge("knows") {
		t.Fatalf("decoded schema = %+v", s)
	}
	p, ok := s.EdgeProperty("knows", "since")
	if !ok || p.Type.Scalar != TypeDate {
		t.Fatalf("knows.since = %+v", p)
	}
	if s.EdgeFiles["Person.knows.Person"] != "knows" {
		t.Fatalf("edge files = %v", s.EdgeFiles)
	}
}

func TestDecode_RejectsInconsistentSchema(t *testing.T) {
	t.Parallel()

	doc := `
vertices:
  Person:
    - {name: name, type: string}
edges: [knows]
edge_files:
  Person.likes.Post: person_likes_post
`
	_, err := Decode(strings.NewReader(doc))
	if err == nil {
		t.Fatalf("Decode expected error")
	}
	for _, want := range []string{"no id property", "undeclared vertex label", "undeclared edge label"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}
