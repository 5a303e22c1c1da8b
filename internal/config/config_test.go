package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/meow/internal/meow"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
	return path
}

func TestLoadAndPopulateInlineBodies(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "workflow.yml", `
patterns:
  - name: watch-csv
    kind: file
    recipe_name: process-csv
    triggering_path: "data/*.csv"
    triggering_file: INPUT_FILE
    event_mask: [file_created]
recipes:
  - name: process-csv
    kind: shell
    script: "echo {PATH}"
`)
	doc, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	reg := meow.NewRegistry()
	if err := doc.Populate(reg, dir); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	rules := reg.GetRules()
	if len(rules) != 1 {
		t.Fatalf("GetRules() = %v, want 1 rule", rules)
	}
}

func TestPopulateResolvesSourceFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "script.sh", "echo hello")
	cfgPath := writeFile(t, dir, "workflow.yml", `
patterns:
  - name: watch-csv
    kind: file
    recipe_name: process-csv
    triggering_path: "data/*.csv"
    triggering_file: INPUT_FILE
    event_mask: [file_created]
recipes:
  - name: process-csv
    kind: shell
    source: script.sh
`)
	doc, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	reg := meow.NewRegistry()
	if err := doc.Populate(reg, dir); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	recipes := reg.GetRecipes()
	shellRecipe, ok := recipes["process-csv"].(*meow.ShellRecipe)
	if !ok {
		t.Fatalf("recipes[process-csv] = %T, want *meow.ShellRecipe", recipes["process-csv"])
	}
	if shellRecipe.Script != "echo hello" {
		t.Fatalf("Script = %q, want %q", shellRecipe.Script, "echo hello")
	}
}

func TestPopulateUnknownPatternKindFails(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "workflow.yml", `
patterns:
  - name: bogus
    kind: carrier-pigeon
    recipe_name: r1
recipes:
  - name: r1
    kind: shell
    script: "echo hi"
`)
	doc, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	reg := meow.NewRegistry()
	if err := doc.Populate(reg, dir); err == nil {
		t.Fatalf("Populate() = nil, want error for unknown pattern kind")
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load("/nonexistent/workflow.yml"); err == nil {
		t.Fatalf("Load() = nil, want error for missing file")
	}
}
