package workload

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// document is the YAML shape of a workload definition:
//
//	vertices:
//	  Person:
//	    - {name: id, type: long}
//	    - {name: email, type: "string[]"}
//	edges: [knows]
//	edge_properties:
//	  knows:
//	    - {name: creationDate, type: date}
//	vertex_property_files:
//	  Person.email: person_email_emailaddress
//	edge_files:
//	  Person.knows.Person: person_knows_person
type document struct {
	Vertices            map[string][]Property `yaml:"vertices"`
	Edges               []string              `yaml:"edges"`
	EdgeProperties      map[string][]Property `yaml:"edge_properties"`
	VertexPropertyFiles map[string]string     `yaml:"vertex_property_files"`
	EdgeFiles           map[string]string     `yaml:"edge_files"`
}

// Decode reads a YAML workload definition and validates it.
func Decode(r io.Reader) (*Schema, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode workload: %w", err)
	}
	if len(doc.Vertices) == 0 {
		return nil, fmt.Errorf("decode workload: no vertices declared")
	}
	s := &Schema{
		Vertices:            doc.Vertices,
		Edges:               doc.Edges,
		EdgeProperties:      orEmpty(doc.EdgeProperties),
		VertexPropertyFiles: orEmptyStrings(doc.VertexPropertyFiles),
		EdgeFiles:           orEmptyStrings(doc.EdgeFiles),
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("workload: %w", err)
	}
	return s, nil
}

// Load resolves a workload by name or path. "interactive" (or empty) selects
// the built-in LDBC SNB Interactive schema; anything else is read as a YAML
// file.
func Load(nameOrPath string) (*Schema, error) {
	switch nameOrPath {
	case "", "interactive":
		return Interactive(), nil
	}
	f, err := os.Open(nameOrPath)
	if err != nil {
		return nil, fmt.Errorf("open workload: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func orEmpty(m map[string][]Property) map[string][]Property {
	if m == nil {
		return map[string][]Property{}
	}
	return m
}

func orEmptyStrings(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
