// Package config loads pattern and recipe definitions from a YAML file on
// disk into an internal/meow.Registry — grounded on the teacher's
// internal/profile package (Load/List/Validate over gopkg.in/yaml.v3), but
// for this domain: one file lists every pattern and recipe definition
// instead of one file per named bundle, since the workflow as a whole
// (not a reusable boundary bundle) is the unit of configuration here.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/meow/internal/meow"
)

// PatternDef is the on-disk shape of one pattern entry. Exactly one of
// the variant-specific field groups should be populated, selected by Kind.
type PatternDef struct {
	Name       string             `yaml:"name"`
	Kind       string             `yaml:"kind"` // "file" or "socket"
	RecipeName string             `yaml:"recipe_name"`
	Parameters map[string]any     `yaml:"parameters,omitempty"`
	Outputs    map[string]string  `yaml:"outputs,omitempty"`
	Sweep      map[string]sweepDef `yaml:"sweep,omitempty"`
	Notifications map[string]any  `yaml:"notifications,omitempty"`
	Tracing    string             `yaml:"tracing,omitempty"`

	// file
	TriggeringPath string   `yaml:"triggering_path,omitempty"`
	TriggeringFile string   `yaml:"triggering_file,omitempty"`
	EventMask      []string `yaml:"event_mask,omitempty"`

	// socket
	TriggeringPort int `yaml:"triggering_port,omitempty"`
}

type sweepDef struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Jump  float64 `yaml:"jump"`
}

// RecipeDef is the on-disk shape of one recipe entry. Kind selects
// between an inline shell script body and an inline notebook JSON body;
// Source, when set, is read from disk relative to the config file's
// directory instead of being inlined.
type RecipeDef struct {
	Name         string         `yaml:"name"`
	Kind         string         `yaml:"kind"` // "shell" or "notebook"
	Parameters   map[string]any `yaml:"parameters,omitempty"`
	Requirements map[string]any `yaml:"requirements,omitempty"`
	Source       string         `yaml:"source,omitempty"`
	Script       string         `yaml:"script,omitempty"`
	Notebook     string         `yaml:"notebook,omitempty"`
}

// Document is the top-level shape of a workflow definition file.
type Document struct {
	Patterns []PatternDef `yaml:"patterns"`
	Recipes  []RecipeDef  `yaml:"recipes"`
}

// Load reads and parses a workflow definition file. It does not populate
// a registry; call Populate for that once a *meow.Registry exists.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &doc, nil
}

// Populate builds patterns and recipes from the document and adds them to
// reg. Recipes are added before patterns so that a pattern referencing a
// recipe defined later in the same file still produces a rule on the
// first recomputation. Source-file bodies are resolved relative to
// baseDir (typically the config file's own directory).
func (doc *Document) Populate(reg *meow.Registry, baseDir string) error {
	for _, rd := range doc.Recipes {
		recipe, err := buildRecipe(rd, baseDir)
		if err != nil {
			return fmt.Errorf("config: recipe %q: %w", rd.Name, err)
		}
		if err := reg.AddRecipe(recipe); err != nil {
			return fmt.Errorf("config: recipe %q: %w", rd.Name, err)
		}
	}
	for _, pd := range doc.Patterns {
		pattern, err := buildPattern(pd)
		if err != nil {
			return fmt.Errorf("config: pattern %q: %w", pd.Name, err)
		}
		if err := reg.AddPattern(pattern); err != nil {
			return fmt.Errorf("config: pattern %q: %w", pd.Name, err)
		}
	}
	return nil
}

func buildPattern(pd PatternDef) (meow.Pattern, error) {
	sweeps := make(map[string]meow.Sweep, len(pd.Sweep))
	for name, s := range pd.Sweep {
		sweeps[name] = meow.Sweep{Start: s.Start, Stop: s.Stop, Jump: s.Jump}
	}

	switch pd.Kind {
	case "file", "":
		mask := make([]meow.EventType, 0, len(pd.EventMask))
		for _, m := range pd.EventMask {
			mask = append(mask, meow.EventType(m))
		}
		return &meow.FilePattern{
			PatternName:      pd.Name,
			Recipe:           pd.RecipeName,
			Parameters:       pd.Parameters,
			OutputTemplates:  pd.Outputs,
			SweepDefs:        sweeps,
			NotificationData: pd.Notifications,
			TracingData:      pd.Tracing,
			TriggeringPath:   pd.TriggeringPath,
			TriggeringFile:   pd.TriggeringFile,
			EventMask:        mask,
		}, nil
	case "socket":
		return &meow.SocketPattern{
			PatternName:      pd.Name,
			Recipe:           pd.RecipeName,
			Parameters:       pd.Parameters,
			OutputTemplates:  pd.Outputs,
			SweepDefs:        sweeps,
			NotificationData: pd.Notifications,
			TracingData:      pd.Tracing,
			TriggeringPort:   pd.TriggeringPort,
		}, nil
	default:
		return nil, fmt.Errorf("unknown pattern kind %q", pd.Kind)
	}
}

func buildRecipe(rd RecipeDef, baseDir string) (meow.Recipe, error) {
	switch rd.Kind {
	case "shell", "":
		script := rd.Script
		source := ""
		if rd.Source != "" {
			body, err := os.ReadFile(resolveSource(baseDir, rd.Source))
			if err != nil {
				return nil, fmt.Errorf("reading source %s: %w", rd.Source, err)
			}
			script = string(body)
			source = rd.Source
		}
		return &meow.ShellRecipe{
			RecipeName: rd.Name,
			Params:     rd.Parameters,
			Reqs:       rd.Requirements,
			SourcePath: source,
			Script:     script,
		}, nil
	case "notebook":
		notebook := []byte(rd.Notebook)
		source := ""
		if rd.Source != "" {
			body, err := os.ReadFile(resolveSource(baseDir, rd.Source))
			if err != nil {
				return nil, fmt.Errorf("reading source %s: %w", rd.Source, err)
			}
			notebook = body
			source = rd.Source
		}
		return &meow.NotebookRecipe{
			RecipeName: rd.Name,
			Params:     rd.Parameters,
			Reqs:       rd.Requirements,
			SourcePath: source,
			Notebook:   notebook,
		}, nil
	default:
		return nil, fmt.Errorf("unknown recipe kind %q", rd.Kind)
	}
}

func resolveSource(baseDir, source string) string {
	if filepath.IsAbs(source) {
		return source
	}
	return filepath.Join(baseDir, source)
}
