// Package datasource abstracts where input shards come from. A Dir lists the
// file names available under one input root and hands out a Source per name;
// loaders only ever see an io.ReadCloser.
package datasource

import (
	"context"
	"io"
)

// Source opens one input file.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Dir is a flat collection of named input files.
type Dir interface {
	// List returns the base names of the files in the collection.
	List(ctx context.Context) ([]string, error)
	// Source returns the Source for a name returned by List.
	Source(name string) Source
	// Location describes the collection for logs and reports.
	Location() string
}
