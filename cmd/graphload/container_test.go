package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"graphload/internal/config"
	"graphload/internal/graph"
	"graphload/internal/importer"
	"graphload/internal/loader"
	"graphload/internal/workload"
)

func testConfig(t *testing.T, dir string) config.Import {
	t.Helper()
	cfg := config.Import{
		Source: config.Source{Kind: "file", File: config.SourceFile{Path: dir}},
		Store:  config.Store{Kind: "memory"},
		Runtime: config.RuntimeConfig{
			NumThreads:      2,
			TransactionSize: 2,
		},
	}
	cfg.SetDefaults()
	if issues := config.Validate(cfg); config.HasErrors(issues) {
		t.Fatalf("Validate() = %v", issues)
	}
	return cfg
}

func TestRunImport_Interactive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := map[string]string{
		"person_0_1.csv": "Person.id|firstName|lastName|birthday\n" +
			"933|Mahinda|Perera|1989-12-03\n" +
			"1129|Carmen|Lepland|1984-02-18\n" +
			"4194|Hồ Chí|Do|1988-10-14\n",
		"tag_0_1.csv": "Tag.id|name|url\n" +
			"1|Hamid_Karzai|http://dbpedia.org/resource/Hamid_Karzai\n",
		"person_knows_person_0_1.csv": "Person.id|Person.id|creationDate\n" +
			"933|1129|2010-03-13T03:43:27.548+0000\n",
		"person_hasinterest_tag_0_1.csv": "Person.id|Tag.id\n" +
			"933|1\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
	}

	rep, err := runImport(context.Background(), testConfig(t, dir), zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("runImport() error = %v", err)
	}
	if rep.Err != nil {
		t.Fatalf("Report.Err = %v", rep.Err)
	}
	if rep.Stats.Vertices != 4 || rep.Stats.Edges != 2 {
		t.Fatalf("Stats = %+v, want 4 vertices and 2 edges", rep.Stats)
	}

	var buf bytes.Buffer
	printReport(&buf, rep)
	out := buf.String()
	for _, want := range []string{"person_0_1.csv", "person_knows_person_0_1.csv", "4 vertices, 2 edges"} {
		if !strings.Contains(out, want) {
			t.Fatalf("printReport() output missing %q:\n%s", want, out)
		}
	}
}

func TestRunImport_StoreUnreachable(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, t.TempDir())
	cfg.Store = config.Store{Kind: "postgres", DSN: "not a dsn"}
	_, err := runImport(context.Background(), cfg, zaptest.NewLogger(t).Sugar())
	if !errors.Is(err, graph.ErrConnection) {
		t.Fatalf("runImport() error = %v, want ErrConnection", err)
	}
}

func TestOpenDir(t *testing.T) {
	t.Parallel()

	d, err := openDir(config.Source{Kind: "file", File: config.SourceFile{Path: "/data/sf1"}})
	if err != nil {
		t.Fatalf("openDir(file) error = %v", err)
	}
	if d.Location() != "/data/sf1" {
		t.Fatalf("Location() = %q", d.Location())
	}

	d, err = openDir(config.Source{Kind: "minio", Minio: config.SourceMinio{
		Endpoint: "http://localhost:9000", Bucket: "ldbc", Prefix: "sf1/initial",
	}})
	if err != nil {
		t.Fatalf("openDir(minio) error = %v", err)
	}
	if d.Location() != "s3://ldbc/sf1/initial" {
		t.Fatalf("Location() = %q", d.Location())
	}

	if _, err := openDir(config.Source{Kind: "ftp"}); err == nil {
		t.Fatalf("openDir(ftp) expected error")
	}
}

func TestPrintReport_Failures(t *testing.T) {
	t.Parallel()

	rep := importer.Report{
		RunID: "r1",
		Results: []loader.Result{
			{File: "tag_0_1.csv", Kind: workload.KindVertex, Label: "Tag", Err: errors.New("boom")},
		},
	}
	var buf bytes.Buffer
	printReport(&buf, rep)
	if !strings.Contains(buf.String(), "failed: boom") {
		t.Fatalf("printReport() output = %q", buf.String())
	}
}
