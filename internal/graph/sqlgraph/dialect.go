package sqlgraph

import (
	"fmt"
	"strings"
)

// dialect holds the statements that differ between SQL engines. Shared
// statements are written with ? placeholders and passed through rebind.
type dialect struct {
	name   string
	driver string
	// numbered placeholders (@p1) instead of ?.
	numbered bool
	// lastInsertID marks engines without RETURNING or OUTPUT; inserts use
	// Exec and sql.Result.LastInsertId.
	lastInsertID bool
	// backslash is an escape character inside string literals.
	backslash bool
	schema    []string

	insertVertex string
	insertEdge   string
	// lookupFmt takes the quoted key literal as its only verb.
	lookupFmt string
	// indexFmt takes index name, table and quoted key literal.
	indexFmt string
}

var sqliteDialect = &dialect{
	name:   "sqlite",
	driver: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS gl_vertex_label (name TEXT PRIMARY KEY)`,
		`CREATE TABLE IF NOT EXISTS gl_edge_label (name TEXT PRIMARY KEY, multiplicity TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS gl_property_key (name TEXT PRIMARY KEY, datatype TEXT NOT NULL, cardinality TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS gl_index (name TEXT PRIMARY KEY, target TEXT NOT NULL, prop_key TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS gl_vertex (id INTEGER PRIMARY KEY AUTOINCREMENT, label TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS gl_vertex_property (vertex_id INTEGER NOT NULL, prop_key TEXT NOT NULL, ord INTEGER NOT NULL, prop_value TEXT NOT NULL, PRIMARY KEY (vertex_id, prop_key, ord))`,
		`CREATE TABLE IF NOT EXISTS gl_edge (id INTEGER PRIMARY KEY AUTOINCREMENT, label TEXT NOT NULL, from_id INTEGER NOT NULL, to_id INTEGER NOT NULL)`,
		`CREATE INDEX IF NOT EXISTS gl_edge_pair ON gl_edge (label, from_id, to_id)`,
		`CREATE TABLE IF NOT EXISTS gl_edge_property (edge_id INTEGER NOT NULL, prop_key TEXT NOT NULL, ord INTEGER NOT NULL, prop_value TEXT NOT NULL, PRIMARY KEY (edge_id, prop_key, ord))`,
	},
	insertVertex: `INSERT INTO gl_vertex (label) VALUES (?) RETURNING id`,
	insertEdge:   `INSERT INTO gl_edge (label, from_id, to_id) VALUES (?, ?, ?) RETURNING id`,
	lookupFmt:    `SELECT vertex_id FROM gl_vertex_property WHERE prop_key = %s AND prop_value = ? LIMIT 1`,
	indexFmt:     `CREATE INDEX IF NOT EXISTS %s ON %s (prop_value) WHERE prop_key = %s`,
}

var mssqlDialect = &dialect{
	name:     "mssql",
	driver:   "sqlserver",
	numbered: true,
	schema: []string{
		`IF OBJECT_ID(N'gl_vertex_label', N'U') IS NULL CREATE TABLE gl_vertex_label (name NVARCHAR(255) PRIMARY KEY)`,
		`IF OBJECT_ID(N'gl_edge_label', N'U') IS NULL CREATE TABLE gl_edge_label (name NVARCHAR(255) PRIMARY KEY, multiplicity NVARCHAR(16) NOT NULL)`,
		`IF OBJECT_ID(N'gl_property_key', N'U') IS NULL CREATE TABLE gl_property_key (name NVARCHAR(255) PRIMARY KEY, datatype NVARCHAR(16) NOT NULL, cardinality NVARCHAR(16) NOT NULL)`,
		`IF OBJECT_ID(N'gl_index', N'U') IS NULL CREATE TABLE gl_index (name NVARCHAR(255) PRIMARY KEY, target NVARCHAR(16) NOT NULL, prop_key NVARCHAR(255) NOT NULL)`,
		`IF OBJECT_ID(N'gl_vertex', N'U') IS NULL CREATE TABLE gl_vertex (id BIGINT IDENTITY(1,1) PRIMARY KEY, label NVARCHAR(255) NOT NULL)`,
		`IF OBJECT_ID(N'gl_vertex_property', N'U') IS NULL CREATE TABLE gl_vertex_property (vertex_id BIGINT NOT NULL, prop_key NVARCHAR(255) NOT NULL, ord INT NOT NULL, prop_value NVARCHAR(4000) NOT NULL, PRIMARY KEY (vertex_id, prop_key, ord))`,
		`IF OBJECT_ID(N'gl_edge', N'U') IS NULL CREATE TABLE gl_edge (id BIGINT IDENTITY(1,1) PRIMARY KEY, label NVARCHAR(255) NOT NULL, from_id BIGINT NOT NULL, to_id BIGINT NOT NULL)`,
		`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'gl_edge_pair') CREATE INDEX gl_edge_pair ON gl_edge (label, from_id, to_id)`,
		`IF OBJECT_ID(N'gl_edge_property', N'U') IS NULL CREATE TABLE gl_edge_property (edge_id BIGINT NOT NULL, prop_key NVARCHAR(255) NOT NULL, ord INT NOT NULL, prop_value NVARCHAR(4000) NOT NULL, PRIMARY KEY (edge_id, prop_key, ord))`,
	},
	insertVertex: `INSERT INTO gl_vertex (label) OUTPUT INSERTED.id VALUES (?)`,
	insertEdge:   `INSERT INTO gl_edge (label, from_id, to_id) OUTPUT INSERTED.id VALUES (?, ?, ?)`,
	lookupFmt:    `SELECT TOP 1 vertex_id FROM gl_vertex_property WHERE prop_key = %s AND prop_value = ?`,
	indexFmt:     `CREATE INDEX %s ON %s (prop_value) WHERE prop_key = %s`,
}

var mysqlDialect = &dialect{
	name:         "mysql",
	driver:       "mysql",
	lastInsertID: true,
	backslash:    true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS gl_vertex_label (name VARCHAR(255) PRIMARY KEY)`,
		`CREATE TABLE IF NOT EXISTS gl_edge_label (name VARCHAR(255) PRIMARY KEY, multiplicity VARCHAR(16) NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS gl_property_key (name VARCHAR(255) PRIMARY KEY, datatype VARCHAR(16) NOT NULL, cardinality VARCHAR(16) NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS gl_index (name VARCHAR(255) PRIMARY KEY, target VARCHAR(16) NOT NULL, prop_key VARCHAR(255) NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS gl_vertex (id BIGINT AUTO_INCREMENT PRIMARY KEY, label VARCHAR(255) NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS gl_vertex_property (vertex_id BIGINT NOT NULL, prop_key VARCHAR(255) NOT NULL, ord INT NOT NULL, prop_value TEXT NOT NULL, PRIMARY KEY (vertex_id, prop_key, ord))`,
		`CREATE TABLE IF NOT EXISTS gl_edge (id BIGINT AUTO_INCREMENT PRIMARY KEY, label VARCHAR(255) NOT NULL, from_id BIGINT NOT NULL, to_id BIGINT NOT NULL, INDEX gl_edge_pair (label, from_id, to_id))`,
		`CREATE TABLE IF NOT EXISTS gl_edge_property (edge_id BIGINT NOT NULL, prop_key VARCHAR(255) NOT NULL, ord INT NOT NULL, prop_value TEXT NOT NULL, PRIMARY KEY (edge_id, prop_key, ord))`,
	},
	insertVertex: `INSERT INTO gl_vertex (label) VALUES (?)`,
	insertEdge:   `INSERT INTO gl_edge (label, from_id, to_id) VALUES (?, ?, ?)`,
	lookupFmt:    `SELECT vertex_id FROM gl_vertex_property WHERE prop_key = %s AND prop_value = ? LIMIT 1`,
	// No partial indexes: the index covers the key and a value prefix.
	indexFmt: `CREATE INDEX %[1]s ON %[2]s (prop_key, prop_value(191))`,
}

// rebind rewrites ? placeholders to @p1, @p2, ... for numbered dialects.
// Placeholders inside single-quoted literals are left alone.
func (d *dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n, quoted := 0, false
	for _, r := range q {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			fmt.Fprintf(&b, "@p%d", n)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// literal renders s as a SQL string literal.
func (d *dialect) literal(s string) string {
	if d.backslash {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	lit := "'" + strings.ReplaceAll(s, "'", "''") + "'"
	if d.numbered {
		return "N" + lit
	}
	return lit
}

// indexName maps a composite index name such as "byPerson.id" to a safe
// identifier.
func indexName(name string) string {
	var b strings.Builder
	b.WriteString("gl_ix_")
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
