package handler

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/meow/internal/ids"
	"github.com/ppiankov/meow/internal/meow"
)

const defaultPauseTime = 5 * time.Second

// Logger is the narrow logging surface this package needs.
type Logger interface {
	Printf(format string, args ...any)
}

// CriteriaFunc decides whether a handler can process a given event, and
// why not when it can't — spec.md §4.6's valid_handle_criteria.
type CriteriaFunc func(event meow.Event) (ok bool, reason string)

// AcceptAll is the trivial criteria function: every event is eligible.
// Most single-handler deployments use this.
func AcceptAll(meow.Event) (bool, string) { return true, "" }

// Handler polls the runner for events and, for each one it accepts,
// materialises a job directory on disk.
type Handler struct {
	Name        string
	JobQueueDir string
	PauseTime   time.Duration
	Criteria    CriteriaFunc
	Log         Logger
}

// New constructs a Handler, creating job_queue_dir if it does not
// already exist. An empty name is auto-generated.
func New(name, jobQueueDir string, pauseTime time.Duration, criteria CriteriaFunc, log Logger) (*Handler, error) {
	if name == "" {
		name = ids.NewHandlerID()
	}
	if pauseTime <= 0 {
		pauseTime = defaultPauseTime
	}
	if criteria == nil {
		criteria = AcceptAll
	}
	if err := os.MkdirAll(jobQueueDir, 0o755); err != nil {
		return nil, fmt.Errorf("handler: creating job_queue_dir %s: %w", jobQueueDir, err)
	}
	return &Handler{
		Name:        name,
		JobQueueDir: jobQueueDir,
		PauseTime:   pauseTime,
		Criteria:    criteria,
		Log:         log,
	}, nil
}

func (h *Handler) logf(format string, args ...any) {
	if h.Log != nil {
		h.Log.Printf(format, args...)
	}
}

// Run is the handler's main loop (spec.md §4.6): repeatedly announce
// readiness, wait up to PauseTime for a reply, and handle whatever
// event the runner hands back. It exits when stopCh is closed.
//
// readyCh carries one "ready" token per iteration; eventCh carries the
// runner's reply — a non-nil event to handle, or nil to signal "nothing
// eligible, try again"; jobCh carries materialised job directory paths
// back to the runner.
func (h *Handler) Run(stopCh <-chan struct{}, readyCh chan<- struct{}, eventCh <-chan *meow.Event, jobCh chan<- string) {
	for {
		select {
		case <-stopCh:
			return
		case readyCh <- struct{}{}:
		}

		var event *meow.Event
		select {
		case <-stopCh:
			return
		case event = <-eventCh:
		case <-time.After(h.PauseTime):
			continue
		}

		if event == nil {
			time.Sleep(h.PauseTime)
			continue
		}

		h.handle(*event, jobCh)
	}
}

// handle assembles and materialises every job a single event produces,
// catching and logging any failure rather than propagating it — a
// single bad event must never take the handler's loop down.
func (h *Handler) handle(event meow.Event, jobCh chan<- string) {
	defer func() {
		if r := recover(); r != nil {
			h.logf("handler %s: recovered panic handling event at %s: %v", h.Name, event.Path, r)
		}
	}()

	dicts, err := event.Rule.Pattern.AssembleParams(event)
	if err != nil {
		h.logf("handler %s: assemble params for event at %s: %v", h.Name, event.Path, err)
		return
	}

	for _, params := range dicts {
		jobDir, err := h.setupJob(event, params)
		if err != nil {
			h.logf("handler %s: setup job for event at %s: %v", h.Name, event.Path, err)
			continue
		}
		jobCh <- jobDir
	}
}

// setupJob implements spec.md §4.6's job materialisation steps: build
// metadata, expand keywords, create the job directory, write job.yml,
// the recipe file, and the hash-guarded job.sh, in that order.
func (h *Handler) setupJob(event meow.Event, params map[string]any) (string, error) {
	job := buildJob(event, params)
	kw := keywordTable(event, job.JobID)
	job.Parameters = kw.ExpandParams(params)

	jobDir := filepath.Join(h.JobQueueDir, job.JobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}

	job.Status = meow.StatusQueued
	if err := writeMeta(jobDir, job); err != nil {
		return "", err
	}

	recipeCommand, err := writeRecipeFile(jobDir, event.Rule.Recipe, job.Parameters, kw)
	if err != nil {
		return "", err
	}

	if err := writeJobScript(jobDir, event.FileHash, event.Path, recipeCommand); err != nil {
		return "", fmt.Errorf("write job.sh: %w", err)
	}

	return jobDir, nil
}
