package cli

import (
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testPatternsYAML = `
recipes:
  - name: r1
    kind: shell
    script: "echo {PATH} > {DIR}/out.txt"
patterns:
  - name: p1
    kind: file
    recipe_name: r1
    triggering_path: "*"
    triggering_file: INPUT_FILE
    event_mask: [file_created]
`

func TestBuildRunnerRequiresCoreFlags(t *testing.T) {
	logger := log.New(os.Stderr, "test: ", 0)
	_, err := buildRunner(runConfig{}, logger)
	if err == nil {
		t.Fatal("expected an error when base dir, job queue dir, and patterns file are all empty")
	}
}

func TestBuildRunnerWiresMonitorAndHandler(t *testing.T) {
	dir := t.TempDir()
	patternsPath := filepath.Join(dir, "patterns.yml")
	if err := os.WriteFile(patternsPath, []byte(testPatternsYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := runConfig{
		baseDir:      dir,
		jobQueueDir:  filepath.Join(dir, "queue"),
		patternsFile: patternsPath,
		settleTime:   50 * time.Millisecond,
		pauseTime:    50 * time.Millisecond,
	}
	logger := log.New(os.Stderr, "test: ", 0)

	r, err := buildRunner(cfg, logger)
	if err != nil {
		t.Fatalf("buildRunner: %v", err)
	}

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop()

	triggerPath := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(triggerPath, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		jobs := r.PendingJobs()
		if len(jobs) > 0 {
			if _, err := os.Stat(jobs[0]); err != nil {
				t.Fatalf("job dir missing: %v", err)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a materialised job")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestBuildRunnerRejectsUnreadablePatternsFile(t *testing.T) {
	dir := t.TempDir()
	cfg := runConfig{
		baseDir:      dir,
		jobQueueDir:  filepath.Join(dir, "queue"),
		patternsFile: filepath.Join(dir, "missing.yml"),
	}
	logger := log.New(os.Stderr, "test: ", 0)
	if _, err := buildRunner(cfg, logger); err == nil {
		t.Fatal("expected an error for a missing patterns file")
	}
}
