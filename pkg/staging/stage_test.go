package staging

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestStageCopiesTree(t *testing.T) {
	src := filepath.Join(t.TempDir(), "DP_Test.DataPipeline")
	writeFile(t, filepath.Join(src, ".platform"), `{}`)
	writeFile(t, filepath.Join(src, "pipeline-content.json"), `{"a": 1}`)
	writeFile(t, filepath.Join(src, "sub", "nested.json"), `{"b": 2}`)
	writeFile(t, filepath.Join(src, "model.abf"), "binary payload")

	dest, err := Stage(src, Options{Root: t.TempDir(), IgnorePatterns: []string{"*.abf"}})
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if filepath.Base(dest) != "DP_Test.DataPipeline" {
		t.Errorf("staging dir not keyed by artifact name: %s", dest)
	}

	for _, f := range []string{".platform", "pipeline-content.json", filepath.Join("sub", "nested.json")} {
		if _, err := os.Stat(filepath.Join(dest, f)); err != nil {
			t.Errorf("expected %s in staging dir: %v", f, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dest, "model.abf")); !os.IsNotExist(err) {
		t.Errorf("ignored file was staged")
	}
}

func TestStageOverwritesPreviousCopy(t *testing.T) {
	src := filepath.Join(t.TempDir(), "NB_Test.Notebook")
	writeFile(t, filepath.Join(src, "notebook-content.ipynb"), `{}`)

	root := t.TempDir()
	dest, err := Stage(src, Options{Root: root})
	if err != nil {
		t.Fatalf("first Stage failed: %v", err)
	}

	// Simulate leftovers from a previous run.
	writeFile(t, filepath.Join(dest, "stale.json"), `{}`)

	dest2, err := Stage(src, Options{Root: root})
	if err != nil {
		t.Fatalf("second Stage failed: %v", err)
	}
	if dest2 != dest {
		t.Fatalf("staging location not deterministic: %s vs %s", dest, dest2)
	}
	if _, err := os.Stat(filepath.Join(dest2, "stale.json")); !os.IsNotExist(err) {
		t.Errorf("leftover file survived restaging")
	}
	if _, err := os.Stat(filepath.Join(dest2, "notebook-content.ipynb")); err != nil {
		t.Errorf("source file missing after restaging: %v", err)
	}
}

func TestStageMissingSource(t *testing.T) {
	_, err := Stage(filepath.Join(t.TempDir(), "does-not-exist"), Options{Root: t.TempDir()})
	if err == nil {
		t.Fatal("expected error for missing source path")
	}
}

func TestStageInvalidIgnorePattern(t *testing.T) {
	src := t.TempDir()
	_, err := Stage(src, Options{Root: t.TempDir(), IgnorePatterns: []string{"[unterminated"}})
	if err == nil {
		t.Fatal("expected error for invalid ignore pattern")
	}
}
