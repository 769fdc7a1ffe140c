package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"envjudge/internal/evaluate"

	"github.com/google/go-cmp/cmp"
)

// writeFixture lays out a results dir and golden root in tmp.
func writeFixture(t *testing.T, results map[string]string, golden map[string]string) (string, string) {
	t.Helper()
	root := t.TempDir()
	resultsDir := filepath.Join(root, "results")
	goldenDir := filepath.Join(root, "data")
	for rel, content := range results {
		write(t, filepath.Join(resultsDir, rel), content)
	}
	for rel, content := range golden {
		write(t, filepath.Join(goldenDir, rel), content)
	}
	return resultsDir, goldenDir
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

const predictedJSON = `{
  "repo_name": "demo-repo",
  "readme_name": "README_1.md",
  "errors": [
    {"error_type": "E1", "error_description": "numpy is not installed", "fix_answer": "pip install numpy"},
    {"error_type": "E4", "error_description": "build runs before install", "fix_answer": "swap the steps"}
  ],
  "raw_output": "..."
}`

const goldenJSON = `{
  "readme_name": "README_1.md",
  "errors": [
    {"error_type": "E1", "error_description": "missing numpy dependency", "golden_answer": "pip install numpy"}
  ]
}`

func TestLoad_HappyPath(t *testing.T) {
	resultsDir, goldenDir := writeFixture(t,
		map[string]string{"run1/README_1_error_analysis.json": predictedJSON},
		map[string]string{"demo-repo/README_1/README.json": goldenJSON},
	)

	docs, skipped, err := NewLoader(resultsDir, goldenDir).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("skipped = %+v", skipped)
	}
	if len(docs) != 1 {
		t.Fatalf("docs = %d, want 1", len(docs))
	}

	want := evaluate.Document{
		Name: "README_1.md",
		Repo: "demo-repo",
		Predicted: []evaluate.ErrorItem{
			{Category: evaluate.CategoryDependency, Description: "numpy is not installed", Fix: "pip install numpy"},
			{Category: evaluate.CategoryOrdering, Description: "build runs before install", Fix: "swap the steps"},
		},
		Golden: []evaluate.ErrorItem{
			{Category: evaluate.CategoryDependency, Description: "missing numpy dependency", Fix: "pip install numpy"},
		},
	}
	if diff := cmp.Diff(want, docs[0]); diff != "" {
		t.Errorf("document (-want +got):\n%s", diff)
	}
}

func TestLoad_DiscoveryFilters(t *testing.T) {
	resultsDir, goldenDir := writeFixture(t,
		map[string]string{
			"run1/README_1_error_analysis.json": predictedJSON,
			"run1/notes.json":                   `{}`,       // no "error" in name
			"run1/readme.txt":                   "not json", // wrong extension
		},
		map[string]string{"demo-repo/README_1/README.json": goldenJSON},
	)

	docs, skipped, err := NewLoader(resultsDir, goldenDir).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 1 || len(skipped) != 0 {
		t.Errorf("docs=%d skipped=%d, want 1/0", len(docs), len(skipped))
	}
}

func TestLoad_UnknownCategorySkips(t *testing.T) {
	bad := `{
  "repo_name": "demo",
  "readme_name": "README_2.md",
  "errors": [{"error_type": "E9", "error_description": "mystery", "fix_answer": "?"}]
}`
	resultsDir, goldenDir := writeFixture(t,
		map[string]string{
			"run1/README_1_error_analysis.json": predictedJSON,
			"run1/README_2_error_analysis.json": bad,
		},
		map[string]string{
			"demo-repo/README_1/README.json": goldenJSON,
			"demo-repo/README_2/README.json": `{"readme_name": "README_2.md", "errors": []}`,
		},
	)

	docs, skipped, err := NewLoader(resultsDir, goldenDir).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("docs = %d, want 1", len(docs))
	}
	if len(skipped) != 1 {
		t.Fatalf("skipped = %+v, want 1 entry", skipped)
	}
	if got := skipped[0].Reason; !strings.Contains(got, "E9") {
		t.Errorf("skip reason should name the bad category, got %q", got)
	}
}

func TestLoad_MissingGoldenSkips(t *testing.T) {
	resultsDir, goldenDir := writeFixture(t,
		map[string]string{"run1/README_1_error_analysis.json": predictedJSON},
		map[string]string{"demo-repo/OTHER_DOC/README.json": goldenJSON},
	)

	docs, skipped, err := NewLoader(resultsDir, goldenDir).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 0 || len(skipped) != 1 {
		t.Errorf("docs=%d skipped=%d, want 0/1", len(docs), len(skipped))
	}
}

func TestLoad_MalformedJSONSkips(t *testing.T) {
	resultsDir, goldenDir := writeFixture(t,
		map[string]string{"run1/broken_error.json": `{"readme_name": `},
		map[string]string{"demo-repo/README_1/README.json": goldenJSON},
	)

	docs, skipped, err := NewLoader(resultsDir, goldenDir).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 0 || len(skipped) != 1 {
		t.Errorf("docs=%d skipped=%d, want 0/1", len(docs), len(skipped))
	}
}

func TestLoad_EmptyResultsDirIsError(t *testing.T) {
	resultsDir, goldenDir := writeFixture(t, map[string]string{}, map[string]string{})
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewLoader(resultsDir, goldenDir).Load(); err == nil {
		t.Error("want error for empty results dir")
	}
}

func TestFindGolden_FuzzyFolderNames(t *testing.T) {
	resultsDir, goldenDir := writeFixture(t,
		map[string]string{"run1/README_3_error.json": `{
  "repo_name": "demo",
  "readme_name": "README_3.md",
  "errors": []
}`},
		// Folder matches without the .md extension plus a suffix.
		map[string]string{"demo/README_3_v2/README.json": `{"readme_name": "README_3.md", "errors": []}`},
	)

	docs, skipped, err := NewLoader(resultsDir, goldenDir).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 1 || len(skipped) != 0 {
		t.Errorf("docs=%d skipped=%d, want 1/0", len(docs), len(skipped))
	}
}

