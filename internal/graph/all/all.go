// Package all registers every built-in graph store backend. Import it for
// its side effects:
//
//	import _ "graphload/internal/graph/all"
//
// after which graph.Open accepts the kinds memory, sqlite, mssql, mysql,
// postgres and neo4j.
package all

import (
	_ "graphload/internal/graph/memory"
	_ "graphload/internal/graph/neo4j"
	_ "graphload/internal/graph/postgres"
	_ "graphload/internal/graph/sqlgraph"
)
