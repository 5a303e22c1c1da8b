// Package handler implements the MEOW event-to-job pipeline: polling the
// runner for events, assembling parameters (including sweeps), expanding
// keywords, and materialising a deterministic on-disk job directory.
//
// Grounded on original_source/core/base_handler.py's BaseHandler
// (main_loop's ready-token poll, setup_job's directory/file assembly
// order, and create_job_script_file's hash-guard shell script) and on
// the teacher's internal/daemon/processor.go (atomic write-temp-then-
// rename for job metadata, owner-group-world file permissions).
package handler

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/meow/internal/ids"
	"github.com/ppiankov/meow/internal/keyword"
	"github.com/ppiankov/meow/internal/meow"
)

const (
	metaFile   = "job.yml"
	scriptFile = "job.sh"
)

// writeMeta marshals a Job to YAML and writes it atomically (temp file +
// rename) so a concurrent reader never observes a half-written file.
func writeMeta(jobDir string, job meow.Job) error {
	data, err := yaml.Marshal(job)
	if err != nil {
		return fmt.Errorf("handler: marshal job metadata: %w", err)
	}
	final := filepath.Join(jobDir, metaFile)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("handler: write job metadata: %w", err)
	}
	return os.Rename(tmp, final)
}

// jobScriptBody is the hash-guard shell script every job ships with,
// ported near-verbatim from create_job_script_file: recompute the
// triggering file's SHA-256 and bail with exit 134 if it no longer
// matches the hash captured at emission time, otherwise run the
// recipe's invocation line and exit with its status.
func jobScriptBody(fileHash, eventPath, recipeCommand string) string {
	return fmt.Sprintf(`#!/bin/bash

given_hash=%q
event_path=%q

actual_hash=$(sha256sum "$event_path" | cut -c -64)

if [ "$given_hash" != "$actual_hash" ]; then
    echo "Job was skipped as triggering file has been modified since scheduling"
    exit 134
fi

%s
exit $?
`, fileHash, eventPath, recipeCommand)
}

// writeJobScript writes job.sh with owner/group/world read+execute, per
// spec.md §6's on-disk contract.
func writeJobScript(jobDir, fileHash, eventPath, recipeCommand string) error {
	path := filepath.Join(jobDir, scriptFile)
	body := jobScriptBody(fileHash, eventPath, recipeCommand)
	return os.WriteFile(path, []byte(body), 0o755)
}

// buildJob assembles the in-memory Job record for one parameter
// dictionary, ready to be written as job.yml.
func buildJob(event meow.Event, params map[string]any) meow.Job {
	return meow.Job{
		JobID:        ids.NewJobID(),
		Event:        event.Snapshot(),
		Type:         string(event.Rule.Recipe.Kind()),
		PatternName:  event.Rule.Pattern.Name(),
		RecipeName:   event.Rule.Recipe.Name(),
		RuleName:     event.Rule.Name,
		Status:       meow.StatusCreating,
		CreateTime:   event.Time,
		Requirements: event.Rule.Recipe.Requirements(),
		Parameters:   params,
	}
}

// keywordTable builds the substitution table for one job: the universal
// {PATH}/{JOB} tokens plus the pattern variant's additional tokens.
func keywordTable(event meow.Event, jobID string) keyword.Table {
	additional := event.Rule.Pattern.AdditionalKeywords(event)
	return keyword.NewTable(event.Path, jobID, additional)
}
