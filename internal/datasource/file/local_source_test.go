package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// TestLocalOpen covers success, missing file, and pre-canceled context.
func TestLocalOpen(t *testing.T) {
	t.Parallel()

	type tc struct {
		name            string
		prepare         func(t *testing.T) string
		makeCtx         func(t *testing.T) context.Context
		wantErrIs       error
		wantErrContains string
		wantContent     string
	}

	write := func(t *testing.T, payload string) string {
		t.Helper()
		p := filepath.Join(t.TempDir(), "person_0_0.csv")
		if err := os.WriteFile(p, []byte(payload), 0o644); err != nil {
			t.Fatalf("write test file: %v", err)
		}
		return p
	}

	cases := []tc{
		{
			name:        "success_reads_content",
			prepare:     func(t *testing.T) string { return write(t, "Person.id|firstName\n1|Ada\n") },
			makeCtx:     func(*testing.T) context.Context { return context.Background() },
			wantContent: "Person.id|firstName\n1|Ada\n",
		},
		{
			name:            "missing_file_errors_with_wrapping",
			prepare:         func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.csv") },
			makeCtx:         func(*testing.T) context.Context { return context.Background() },
			wantErrIs:       os.ErrNotExist,
			wantErrContains: "open ",
		},
		{
			name:    "pre_canceled_context_short_circuits",
			prepare: func(t *testing.T) string { return write(t, "ignored") },
			makeCtx: func(*testing.T) context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantErrIs: context.Canceled,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			rc, err := NewLocal(c.prepare(t)).Open(c.makeCtx(t))
			if c.wantErrIs != nil {
				if !errors.Is(err, c.wantErrIs) {
					t.Fatalf("Open() error = %v, want %v", err, c.wantErrIs)
				}
				if c.wantErrContains != "" && !strings.Contains(err.Error(), c.wantErrContains) {
					t.Fatalf("error %q does not contain %q", err, c.wantErrContains)
				}
				if rc != nil {
					_ = rc.Close()
					t.Fatalf("got non-nil ReadCloser on error: %T", rc)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer rc.Close()
			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != c.wantContent {
				t.Fatalf("content = %q, want %q", got, c.wantContent)
			}
		})
	}
}

func TestDir_ListAndSource(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, n := range []string{"person_1_2.csv", "person_0_2.csv", "README"} {
		if err := os.WriteFile(filepath.Join(root, n), []byte(n), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(root, "nested_0_0.csv"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	d := NewDir(root)
	got, err := d.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"README", "person_0_2.csv", "person_1_2.csv"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}

	rc, err := d.Source("person_1_2.csv").Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "person_1_2.csv" {
		t.Fatalf("content = %q", b)
	}
	if d.Location() != root {
		t.Fatalf("Location() = %q, want %q", d.Location(), root)
	}
}

func TestDir_ListMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := NewDir(filepath.Join(t.TempDir(), "nope")).List(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("List() error = %v, want ErrNotExist", err)
	}
}
