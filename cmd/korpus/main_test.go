package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/korpus/pkg/korpus/layout"
	"github.com/cognicore/korpus/pkg/korpus/registry"
)

func quietOptions(t *testing.T) runOptions {
	t.Helper()
	root := t.TempDir()
	return runOptions{
		Dirs: layout.Dirs{
			Tmp:    filepath.Join(root, "tmp"),
			Data:   filepath.Join(root, "data"),
			Output: filepath.Join(root, "output"),
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestRunConfigFullPipeline runs the import-to-analysis chain on a small
// JSONL dump.
func TestRunConfigFullPipeline(t *testing.T) {
	opts := quietOptions(t)
	seed := int64(3)
	opts.Seed = &seed

	var docs strings.Builder
	for i := 0; i < 10; i++ {
		docs.WriteString(`{"title":"t","text":"The ship flew in 1977 to the base"}` + "\n")
	}
	input := filepath.Join(t.TempDir(), "docs.jsonl")
	if err := os.WriteFile(input, []byte(docs.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := writeConfig(t, `
topic: demo
stages:
  - name: jsonl_import
    input: `+input+`
  - name: text_cleaning
    lowercase: true
    tokenize: true
  - name: corpus_split
    splits:
      - {name: train, proportion: 8}
      - {name: valid, proportion: 1}
      - {name: test, proportion: 1}
  - name: frequency_filtering
  - name: connect_sql
    database: runs.db
  - name: sql_export
  - name: corpus_analysis
    corpus_file: train.txt
`)
	if !runConfig(context.Background(), registry.Default(), cfg, opts) {
		t.Fatal("pipeline failed")
	}

	for _, path := range []string{
		opts.Dirs.TmpPath("demo", "raw.txt"),
		opts.Dirs.TmpPath("demo", "clean.txt"),
		opts.Dirs.DictionaryPath("demo"),
		opts.Dirs.DataPath("demo", "train.txt"),
		filepath.Join(opts.Dirs.Data, "runs.db"),
		opts.Dirs.OutputPath("demo", "train.analysis.json"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s: %v", path, err)
		}
	}
}

func TestRunConfigFailures(t *testing.T) {
	reg := registry.Default()
	opts := quietOptions(t)

	if runConfig(context.Background(), reg, filepath.Join(t.TempDir(), "missing.yaml"), opts) {
		t.Error("missing config should fail")
	}
	bad := writeConfig(t, "stages:\n  - name: srilm_model\n")
	if runConfig(context.Background(), reg, bad, opts) {
		t.Error("unknown stage should fail")
	}
	missingInput := writeConfig(t, "stages:\n  - name: corpus_split\n    splits: [{name: train, proportion: 1}]\n")
	if runConfig(context.Background(), reg, missingInput, opts) {
		t.Error("missing input should fail")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", true)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("unexpected output %q", out)
	}

	if _, err := newLogger(&buf, "loud", false); err == nil {
		t.Error("invalid level should fail")
	}
}

func TestPrintStages(t *testing.T) {
	var buf bytes.Buffer
	if err := printStages(&buf, registry.Default()); err != nil {
		t.Fatalf("printStages: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"corpus_split\n", "frequency_threshold", "wiki_scraping\n", "sparql_file"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestStringList(t *testing.T) {
	var l stringList
	l.Set("a.yaml")
	l.Set("b.yaml")
	if got := l.String(); got != "a.yaml,b.yaml" {
		t.Errorf("got %q", got)
	}
}
