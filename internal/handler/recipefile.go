package handler

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/meow/internal/keyword"
	"github.com/ppiankov/meow/internal/meow"
)

// writeRecipeFile writes the recipe-variant-specific job files (and a
// params.yml of the post-substitution parameters) and returns the shell
// invocation line job.sh should run, grounded on
// create_job_recipe_file's per-variant dispatch and on
// jupyter_notebook_recipe.py's BASE_FILE/JOB_FILE/PARAMS_FILE naming.
func writeRecipeFile(jobDir string, recipe meow.Recipe, params map[string]any, kw keyword.Table) (string, error) {
	paramsPath := filepath.Join(jobDir, "params.yml")
	paramsData, err := yaml.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("handler: marshal params: %w", err)
	}
	if err := os.WriteFile(paramsPath, paramsData, 0o644); err != nil {
		return "", fmt.Errorf("handler: write params.yml: %w", err)
	}

	switch r := recipe.(type) {
	case *meow.ShellRecipe:
		return writeShellRecipeFile(jobDir, r, kw)
	case *meow.NotebookRecipe:
		return writeNotebookRecipeFile(jobDir, r)
	default:
		return "", fmt.Errorf("handler: unsupported recipe kind %q", recipe.Kind())
	}
}

func writeShellRecipeFile(jobDir string, recipe *meow.ShellRecipe, kw keyword.Table) (string, error) {
	const recipeFile = "recipe.sh"
	body := kw.Expand(recipe.Script)
	path := filepath.Join(jobDir, recipeFile)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		return "", fmt.Errorf("handler: write recipe.sh: %w", err)
	}
	return fmt.Sprintf("bash %q", path), nil
}

func writeNotebookRecipeFile(jobDir string, recipe *meow.NotebookRecipe) (string, error) {
	const baseFile = "base.ipynb"
	const jobFile = "job.ipynb"
	const resultFile = "result.ipynb"

	basePath := filepath.Join(jobDir, baseFile)
	if err := os.WriteFile(basePath, recipe.Notebook, 0o644); err != nil {
		return "", fmt.Errorf("handler: write base.ipynb: %w", err)
	}
	jobPath := filepath.Join(jobDir, jobFile)
	if err := os.WriteFile(jobPath, recipe.Notebook, 0o644); err != nil {
		return "", fmt.Errorf("handler: write job.ipynb: %w", err)
	}

	paramsPath := filepath.Join(jobDir, "params.yml")
	resultPath := filepath.Join(jobDir, resultFile)
	return fmt.Sprintf("papermill %q %q -f %q", jobPath, resultPath, paramsPath), nil
}
