package meow

import "fmt"

// RecipeKind tags which variant a Recipe is.
type RecipeKind string

const (
	RecipeKindShell    RecipeKind = "shell"
	RecipeKindNotebook RecipeKind = "notebook"
)

// Recipe describes what to run: an executable body plus the parameters and
// requirements it expects. ShellRecipe and NotebookRecipe are the two
// concrete variants.
type Recipe interface {
	Name() string
	Kind() RecipeKind
	Validate() error
	Clone() Recipe
	Parameters() map[string]any
	Requirements() map[string]any
	Source() string
}

// ShellRecipe runs a shell script body.
type ShellRecipe struct {
	RecipeName   string
	Params       map[string]any
	Reqs         map[string]any
	SourcePath   string
	Script       string
}

var _ Recipe = (*ShellRecipe)(nil)

func (r *ShellRecipe) Name() string               { return r.RecipeName }
func (r *ShellRecipe) Kind() RecipeKind            { return RecipeKindShell }
func (r *ShellRecipe) Parameters() map[string]any  { return r.Params }
func (r *ShellRecipe) Requirements() map[string]any { return r.Reqs }
func (r *ShellRecipe) Source() string              { return r.SourcePath }

func (r *ShellRecipe) Validate() error {
	if err := validName(r.RecipeName, "ShellRecipe.name"); err != nil {
		return err
	}
	if r.Script == "" {
		return fmt.Errorf("ShellRecipe.body: script body must not be empty")
	}
	for k := range r.Params {
		if err := validVariableName(k, "ShellRecipe.parameters"); err != nil {
			return err
		}
	}
	return nil
}

func (r *ShellRecipe) Clone() Recipe {
	cp := *r
	cp.Params = cloneParams(r.Params)
	cp.Reqs = cloneParams(r.Reqs)
	return &cp
}

// NotebookRecipe runs a Jupyter notebook body, grounded on the source
// implementation's JupyterNotebookRecipe (original_source/recipes/
// jupyter_notebook_recipe.py): the recipe carries the notebook JSON body
// verbatim and the recipe-type-specific job files it needs
// (base.ipynb/job.ipynb/result.ipynb) are named by the handler, not here.
type NotebookRecipe struct {
	RecipeName string
	Params     map[string]any
	Reqs       map[string]any
	SourcePath string
	Notebook   []byte
}

var _ Recipe = (*NotebookRecipe)(nil)

func (r *NotebookRecipe) Name() string               { return r.RecipeName }
func (r *NotebookRecipe) Kind() RecipeKind            { return RecipeKindNotebook }
func (r *NotebookRecipe) Parameters() map[string]any  { return r.Params }
func (r *NotebookRecipe) Requirements() map[string]any { return r.Reqs }
func (r *NotebookRecipe) Source() string              { return r.SourcePath }

func (r *NotebookRecipe) Validate() error {
	if err := validName(r.RecipeName, "NotebookRecipe.name"); err != nil {
		return err
	}
	if len(r.Notebook) == 0 {
		return fmt.Errorf("NotebookRecipe.body: notebook body must not be empty")
	}
	for k := range r.Params {
		if err := validVariableName(k, "NotebookRecipe.parameters"); err != nil {
			return err
		}
	}
	return nil
}

func (r *NotebookRecipe) Clone() Recipe {
	cp := *r
	cp.Params = cloneParams(r.Params)
	cp.Reqs = cloneParams(r.Reqs)
	cp.Notebook = append([]byte(nil), r.Notebook...)
	return &cp
}
