// Package meow implements the pattern/recipe/rule model and the event and
// job records that flow between the monitor, handler, and runner.
package meow

import (
	"fmt"
	"regexp"
	"time"
)

// validNameChars restricts pattern and recipe names to letters, digits,
// underscore, hyphen, and dot.
var validNameChars = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// validVariableChars restricts parameter and output keys to a narrower,
// code-identifier-safe charset.
var validVariableChars = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func validName(name, hint string) error {
	if name == "" {
		return fmt.Errorf("%s: name must not be empty", hint)
	}
	if !validNameChars.MatchString(name) {
		return fmt.Errorf("%s: name %q contains invalid characters (letters, digits, '_', '-', '.' only)", hint, name)
	}
	return nil
}

func validVariableName(name, hint string) error {
	if !validVariableChars.MatchString(name) {
		return fmt.Errorf("%s: key %q contains invalid characters (letters, digits, '_' only)", hint, name)
	}
	return nil
}

// EventType enumerates the kinds of observation the engine can match rules
// against.
type EventType string

const (
	EventFileCreated     EventType = "file_created"
	EventFileModified    EventType = "file_modified"
	EventFileMoved       EventType = "file_moved"
	EventFileDeleted     EventType = "file_deleted"
	EventFileClosed      EventType = "file_closed"
	EventFileRetroactive EventType = "file_retroactive"

	EventDirCreated     EventType = "dir_created"
	EventDirModified    EventType = "dir_modified"
	EventDirMoved       EventType = "dir_moved"
	EventDirDeleted     EventType = "dir_deleted"
	EventDirClosed      EventType = "dir_closed"
	EventDirRetroactive EventType = "dir_retroactive"

	EventWatchdog EventType = "watchdog"
)

// Event is a uniform observation record, matched against a rule and handed
// off to the runner's event queue. Both the filesystem and the socket
// monitor emit watchdog events with BaseDir and FileHash populated.
type Event struct {
	Type     EventType
	Path     string
	Rule     Rule
	Time     time.Time
	BaseDir  string
	FileHash string
}

// JobStatus is the lifecycle state of a materialised job.
type JobStatus string

const (
	StatusCreating JobStatus = "creating"
	StatusQueued   JobStatus = "queued"
	StatusRunning  JobStatus = "running"
	StatusSkipped  JobStatus = "skipped"
	StatusFailed   JobStatus = "failed"
	StatusDone     JobStatus = "done"
)

// Job is the in-memory record mirrored by the job.yml metadata file inside
// a job's on-disk directory.
type Job struct {
	JobID        string         `yaml:"job_id"`
	Event        EventSnapshot  `yaml:"event"`
	Type         string         `yaml:"type"`
	PatternName  string         `yaml:"pattern_name"`
	RecipeName   string         `yaml:"recipe_name"`
	RuleName     string         `yaml:"rule_name"`
	Status       JobStatus      `yaml:"status"`
	CreateTime   time.Time      `yaml:"create_time"`
	StartTime    time.Time      `yaml:"start_time,omitempty"`
	EndTime      time.Time      `yaml:"end_time,omitempty"`
	Requirements map[string]any `yaml:"requirements,omitempty"`
	Parameters   map[string]any `yaml:"parameters"`
	Error        string         `yaml:"error,omitempty"`
}

// EventSnapshot is the by-value copy of an Event embedded in a job's
// metadata — names, not live references, cross the persistence boundary.
type EventSnapshot struct {
	Type     EventType `yaml:"type"`
	Path     string    `yaml:"path"`
	RuleName string    `yaml:"rule_name"`
	Time     time.Time `yaml:"time"`
	BaseDir  string    `yaml:"base_dir,omitempty"`
	FileHash string    `yaml:"file_hash,omitempty"`
}

// Snapshot copies an Event into its on-disk, reference-free form.
func (e Event) Snapshot() EventSnapshot {
	return EventSnapshot{
		Type:     e.Type,
		Path:     e.Path,
		RuleName: e.Rule.Name,
		Time:     e.Time,
		BaseDir:  e.BaseDir,
		FileHash: e.FileHash,
	}
}
