// Package partition groups input file names into load tasks. A shard of a
// label is named <prefix>_<shard>_<count>.csv, where the prefix is the
// lowercased vertex label or the declared prefix of an edge triple or
// vertex-property file. Prefix matching is case-insensitive.
package partition

import (
	"regexp"
	"sort"
	"strconv"

	"golang.org/x/text/cases"

	"graphload/internal/workload"
)

// Group is the set of shards for one label.
type Group struct {
	Kind workload.Kind
	// Label is the vertex label, the edge triple ("Person.knows.Person") or
	// the vertex property reference ("Person.email").
	Label  string
	Prefix string
	Files  []string
}

// Plan is the output of Partition, one slice of groups per load phase.
// Groups are ordered by label and files by name; the order carries no
// meaning beyond making runs reproducible.
type Plan struct {
	Vertices         []Group
	Edges            []Group
	VertexProperties []Group
}

// Files returns the total number of files in the plan.
func (p Plan) Files() int {
	n := 0
	for _, gs := range [][]Group{p.Vertices, p.Edges, p.VertexProperties} {
		for _, g := range gs {
			n += len(g.Files)
		}
	}
	return n
}

// Matcher recognises the shards of one prefix. It is safe for concurrent
// use.
type Matcher struct{ re *regexp.Regexp }

// NewMatcher compiles a matcher for prefix.
func NewMatcher(prefix string) *Matcher {
	return &Matcher{re: regexp.MustCompile(`^` + regexp.QuoteMeta(cases.Fold().String(prefix)) + `_(\d+)_(\d+)\.csv$`)}
}

// Match reports whether name is a shard of the prefix and returns its shard
// index and shard count.
func (m *Matcher) Match(name string) (shard, count int, ok bool) {
	sub := m.re.FindStringSubmatch(cases.Fold().String(name))
	if sub == nil {
		return 0, 0, false
	}
	shard, err1 := strconv.Atoi(sub[1])
	count, err2 := strconv.Atoi(sub[2])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return shard, count, true
}

// Partition assigns names to the vertex, edge and vertex-property groups
// declared by s. A label without matching files gets an empty group.
func Partition(names []string, s *workload.Schema) Plan {
	var p Plan
	for _, label := range s.VertexLabels() {
		p.Vertices = append(p.Vertices, group(workload.KindVertex, label, workload.VertexFilePrefix(label), names))
	}
	for _, triple := range sortedKeys(s.EdgeFiles) {
		p.Edges = append(p.Edges, group(workload.KindEdge, triple, s.EdgeFiles[triple], names))
	}
	for _, ref := range sortedKeys(s.VertexPropertyFiles) {
		p.VertexProperties = append(p.VertexProperties, group(workload.KindVertexProperty, ref, s.VertexPropertyFiles[ref], names))
	}
	return p
}

func group(kind workload.Kind, label, prefix string, names []string) Group {
	g := Group{Kind: kind, Label: label, Prefix: prefix}
	m := NewMatcher(prefix)
	for _, n := range names {
		if _, _, ok := m.Match(n); ok {
			g.Files = append(g.Files, n)
		}
	}
	sort.Strings(g.Files)
	return g
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
