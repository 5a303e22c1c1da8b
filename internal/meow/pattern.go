package meow

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PatternKind tags which variant a Pattern is, for rule-constructor lookup
// and type-switch dispatch (spec.md §9: a constructor registry keyed by
// variant, not reflection).
type PatternKind string

const (
	PatternKindFile   PatternKind = "file"
	PatternKindSocket PatternKind = "socket"
)

// Pattern describes when a rule fires: a predicate over events plus
// parameter/output templates. FilePattern and SocketPattern are the two
// concrete variants.
type Pattern interface {
	Name() string
	RecipeName() string
	Kind() PatternKind
	Validate() error
	Clone() Pattern

	// AssembleParams returns the ordered list of parameter dictionaries
	// this pattern produces for a matched event — length 1 unless a sweep
	// is present.
	AssembleParams(event Event) ([]map[string]any, error)

	// AdditionalKeywords returns the pattern-variant-specific {TOKEN} ->
	// value table for keyword substitution, given the triggering event.
	AdditionalKeywords(event Event) map[string]string

	Outputs() map[string]string
	Notifications() map[string]any
	Tracing() string
}

// FilePattern matches filesystem events under a watched tree.
type FilePattern struct {
	PatternName      string
	Recipe           string
	Parameters       map[string]any
	OutputTemplates  map[string]string
	SweepDefs        map[string]Sweep
	NotificationData map[string]any
	TracingData      string

	TriggeringPath string
	TriggeringFile string
	EventMask      []EventType
}

var _ Pattern = (*FilePattern)(nil)

func (p *FilePattern) Name() string             { return p.PatternName }
func (p *FilePattern) RecipeName() string        { return p.Recipe }
func (p *FilePattern) Kind() PatternKind         { return PatternKindFile }
func (p *FilePattern) Outputs() map[string]string { return p.OutputTemplates }
func (p *FilePattern) Notifications() map[string]any { return p.NotificationData }
func (p *FilePattern) Tracing() string           { return p.TracingData }

// Validate checks every field of a file pattern: name/recipe charset,
// non-empty triggering path, a triggering-file variable name drawn from
// the identifier charset, a non-empty event mask drawn from the known
// vocabulary, and that every sweep definition is non-infinite.
func (p *FilePattern) Validate() error {
	if err := validName(p.PatternName, "FilePattern.name"); err != nil {
		return err
	}
	if err := validName(p.Recipe, "FilePattern.recipe_name"); err != nil {
		return err
	}
	if p.TriggeringPath == "" {
		return fmt.Errorf("FilePattern.triggering_path: must not be empty")
	}
	if err := validVariableName(p.TriggeringFile, "FilePattern.triggering_file"); err != nil {
		return err
	}
	if len(p.EventMask) == 0 {
		return fmt.Errorf("FilePattern.event_mask: must not be empty")
	}
	for _, t := range p.EventMask {
		if !validFileEventType(t) {
			return fmt.Errorf("FilePattern.event_mask: invalid event type %q", t)
		}
	}
	for k := range p.Parameters {
		if err := validVariableName(k, "FilePattern.parameters"); err != nil {
			return err
		}
	}
	for k := range p.OutputTemplates {
		if err := validVariableName(k, "FilePattern.outputs"); err != nil {
			return err
		}
	}
	for name, sweep := range p.SweepDefs {
		if err := sweep.Validate(fmt.Sprintf("FilePattern.sweep[%s]", name)); err != nil {
			return err
		}
	}
	return nil
}

func validFileEventType(t EventType) bool {
	switch t {
	case EventFileCreated, EventFileModified, EventFileMoved, EventFileDeleted,
		EventFileClosed, EventFileRetroactive,
		EventDirCreated, EventDirModified, EventDirMoved, EventDirDeleted,
		EventDirClosed, EventDirRetroactive:
		return true
	}
	return false
}

// Clone returns a deep copy, so a caller's further mutation of the
// original cannot reach the registry's stored copy.
func (p *FilePattern) Clone() Pattern {
	cp := *p
	cp.Parameters = cloneParams(p.Parameters)
	cp.OutputTemplates = cloneStringMap(p.OutputTemplates)
	cp.NotificationData = cloneParams(p.NotificationData)
	cp.SweepDefs = make(map[string]Sweep, len(p.SweepDefs))
	for k, v := range p.SweepDefs {
		cp.SweepDefs[k] = v
	}
	cp.EventMask = append([]EventType(nil), p.EventMask...)
	return &cp
}

// AssembleParams expands the sweep (if any) then binds the triggering
// file's path into the variable named by TriggeringFile, in every
// resulting dictionary.
func (p *FilePattern) AssembleParams(event Event) ([]map[string]any, error) {
	dicts := expandSweep(p.Parameters, p.SweepDefs)
	for _, d := range dicts {
		d[p.TriggeringFile] = event.Path
	}
	return dicts, nil
}

// AdditionalKeywords supplies the file-pattern-specific keyword table:
// {BASE}, {REL_PATH}, {DIR}, {REL_DIR}, {FILENAME}, {PREFIX}, {EXTENSION}.
func (p *FilePattern) AdditionalKeywords(event Event) map[string]string {
	rel, err := filepath.Rel(event.BaseDir, event.Path)
	if err != nil {
		rel = event.Path
	}
	dir := filepath.Dir(event.Path)
	relDir := filepath.Dir(rel)
	filename := filepath.Base(event.Path)
	ext := filepath.Ext(filename)
	prefix := strings.TrimSuffix(filename, ext)

	return map[string]string{
		"{BASE}":      event.BaseDir,
		"{REL_PATH}":  rel,
		"{REL_DIR}":   relDir,
		"{DIR}":       dir,
		"{FILENAME}":  filename,
		"{PREFIX}":    prefix,
		"{EXTENSION}": ext,
	}
}

// SocketPattern matches inbound connections on a fixed port.
type SocketPattern struct {
	PatternName      string
	Recipe           string
	Parameters       map[string]any
	OutputTemplates  map[string]string
	SweepDefs        map[string]Sweep
	NotificationData map[string]any
	TracingData      string

	TriggeringPort int
}

var _ Pattern = (*SocketPattern)(nil)

func (p *SocketPattern) Name() string              { return p.PatternName }
func (p *SocketPattern) RecipeName() string         { return p.Recipe }
func (p *SocketPattern) Kind() PatternKind          { return PatternKindSocket }
func (p *SocketPattern) Outputs() map[string]string { return p.OutputTemplates }
func (p *SocketPattern) Notifications() map[string]any { return p.NotificationData }
func (p *SocketPattern) Tracing() string            { return p.TracingData }

func (p *SocketPattern) Validate() error {
	if err := validName(p.PatternName, "SocketPattern.name"); err != nil {
		return err
	}
	if err := validName(p.Recipe, "SocketPattern.recipe_name"); err != nil {
		return err
	}
	if p.TriggeringPort < 1 || p.TriggeringPort > 65535 {
		return fmt.Errorf("SocketPattern.triggering_port: %d out of range [1,65535]", p.TriggeringPort)
	}
	for name, sweep := range p.SweepDefs {
		if err := sweep.Validate(fmt.Sprintf("SocketPattern.sweep[%s]", name)); err != nil {
			return err
		}
	}
	return nil
}

func (p *SocketPattern) Clone() Pattern {
	cp := *p
	cp.Parameters = cloneParams(p.Parameters)
	cp.OutputTemplates = cloneStringMap(p.OutputTemplates)
	cp.NotificationData = cloneParams(p.NotificationData)
	cp.SweepDefs = make(map[string]Sweep, len(p.SweepDefs))
	for k, v := range p.SweepDefs {
		cp.SweepDefs[k] = v
	}
	return &cp
}

func (p *SocketPattern) AssembleParams(event Event) ([]map[string]any, error) {
	return expandSweep(p.Parameters, p.SweepDefs), nil
}

// AdditionalKeywords: socket patterns carry no path-shaped extra tokens,
// so only the universal {PATH}/{JOB} tokens (applied by the keyword
// package itself) resolve.
func (p *SocketPattern) AdditionalKeywords(event Event) map[string]string {
	return map[string]string{}
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
