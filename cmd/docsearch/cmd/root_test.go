package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/search"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeRecords(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleRecords = `[
  {"location": "a", "page": "Quick Start", "title": "Quick Start", "category": "page", "text": "production planning"},
  {"location": "b", "page": "Tutorial", "title": "Tutorial", "category": "page", "text": "hydro thermal scheduling"},
  {"location": "c", "page": "Tutorial", "title": "Planning", "category": "section", "text": "planning the hydro stages"}
]`

func TestSearchCommandJSON(t *testing.T) {
	path := writeRecords(t, sampleRecords)
	out, err := run(t, "search", "-r", path, "--format", "json", "planning", "hydro")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var res search.SearchResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decoding output %q: %v", out, err)
	}
	if res.TotalHits != 3 || len(res.Results) != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Results[0].Location != "c" || res.Results[0].Score != 3 {
		t.Errorf("top result = %+v, want c with score 3", res.Results[0])
	}
}

func TestSearchCommandText(t *testing.T) {
	path := writeRecords(t, sampleRecords)
	out, err := run(t, "search", "-r", path, "-n", "1", "scheduling")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "1 of 1 results") || !strings.Contains(out, "Tutorial") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = run(t, "search", "-r", path, "nothing")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No results") {
		t.Errorf("unexpected output for a miss:\n%s", out)
	}
}

func TestSearchCommandRejectsBadLimit(t *testing.T) {
	path := writeRecords(t, sampleRecords)
	_, err := run(t, "search", "-r", path, "-n", "0", "planning")
	if err == nil || !strings.Contains(err.Error(), "limit") {
		t.Fatalf("expected limit error, got %v", err)
	}
}

func TestSearchCommandEmbeddedIndex(t *testing.T) {
	out, err := run(t, "search", "-r", "-", "--format", "json", "sddp")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var res search.SearchResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	if res.TotalHits == 0 {
		t.Error("expected hits for sddp in the built-in index")
	}
}

func TestValidateCommand(t *testing.T) {
	path := writeRecords(t, sampleRecords)
	out, err := run(t, "validate", "-r", path)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "records:    3") || !strings.Contains(out, "section  1") {
		t.Errorf("unexpected report:\n%s", out)
	}

	bad := writeRecords(t, `[{"location": "x", "page": "P", "title": "T", "category": "chapter", "text": ""}]`)
	if _, err := run(t, "validate", "-r", bad); err == nil {
		t.Error("expected malformed category to fail validation")
	}
}

func TestSearchCommandMultiSource(t *testing.T) {
	first := writeRecords(t, sampleRecords)
	second := writeRecords(t, `[{"location": "d", "page": "Guide", "title": "Planning guide", "category": "page", "text": "planning with hydro"}]`)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cfg := "records:\n  source: multi\n  sources:\n" +
		"    - source: file\n      path: " + first + "\n" +
		"    - source: file\n      path: " + second + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "search", "-c", cfgPath, "--format", "json", "planning", "hydro")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var res search.SearchResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decoding output %q: %v", out, err)
	}
	if res.TotalHits != 4 {
		t.Fatalf("TotalHits = %d, want 4", res.TotalHits)
	}
	// c and d both score 3; c was loaded first.
	if res.Results[0].Location != "c" || res.Results[1].Location != "d" {
		t.Errorf("unexpected order: %+v", res.Results[:2])
	}

	dup := filepath.Join(t.TempDir(), "dup.yaml")
	cfg = "records:\n  source: multi\n  sources:\n" +
		"    - source: file\n      path: " + first + "\n" +
		"    - source: file\n      path: " + first + "\n"
	if err := os.WriteFile(dup, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "search", "-c", dup, "planning"); err == nil {
		t.Error("expected duplicate locations across sources to fail")
	}
}
