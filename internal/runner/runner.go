// Package runner implements the MEOW runner loop (spec.md §4.7): it owns
// a list of monitors and handlers, an in-memory event queue fed by
// monitors, an in-memory job queue fed by handlers, and routes events to
// eligible handlers on their ready tokens.
//
// Grounded on original_source/core/base_handler.py's
// prompt_runner_for_event/send_job_to_runner channel protocol (which
// this package sits on the other end of) and on the teacher's
// internal/daemon/daemon.go for the PID-lock single-instance guard and
// the restart-time orphaned-job sweep (recoverOrphans), generalised here
// in orphan.go to the job.yml metadata this engine writes.
package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/meow/internal/eventlog"
	"github.com/ppiankov/meow/internal/handler"
	"github.com/ppiankov/meow/internal/meow"
)

// Logger is the narrow logging surface this package needs.
type Logger interface {
	Printf(format string, args ...any)
}

// Monitor is the subset of fsmonitor.Monitor (and sockmonitor.Monitor)
// the runner needs to own a monitor's lifecycle without depending on
// either package's concrete type.
type Monitor interface {
	Start() error
	Stop()
}

// handlerLink bundles one handler with the channel triple the spec
// assigns it: a ready-token channel, an event-reply channel, and a
// job-announcement channel.
type handlerLink struct {
	h       *handler.Handler
	readyCh chan struct{}
	eventCh chan *meow.Event
	jobCh   chan string
}

// Runner owns monitors, handlers, and the two FIFOs connecting them.
type Runner struct {
	StateDir string
	Log      Logger

	// EventLog, if set, receives one hash-chained entry per job handed
	// off by a handler, and one per orphaned job rewritten at Start. Left
	// nil, neither is audited.
	EventLog *eventlog.Log

	mu       sync.Mutex
	monitors []Monitor
	links    []*handlerLink
	events   []meow.Event
	jobs     []string

	stopCh   chan struct{}
	wg       sync.WaitGroup
	pidPath  string
}

// New constructs an empty Runner. Monitors and handlers must be added
// with AddMonitor/AddHandler before Start.
func New(stateDir string, log Logger) *Runner {
	return &Runner{StateDir: stateDir, Log: log}
}

// AddMonitor registers a monitor to be started/stopped with the runner.
func (r *Runner) AddMonitor(m Monitor) {
	r.monitors = append(r.monitors, m)
}

// AddHandler registers a handler and allocates its channel triple.
func (r *Runner) AddHandler(h *handler.Handler) {
	r.links = append(r.links, &handlerLink{
		h:       h,
		readyCh: make(chan struct{}),
		eventCh: make(chan *meow.Event),
		jobCh:   make(chan string, 1),
	})
}

// PushEvent enqueues an event onto the runner's FIFO. Implements
// fsmonitor.EventSink and the equivalent socket-monitor interface.
func (r *Runner) PushEvent(e meow.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// PendingJobs returns and clears the runner's accumulated job directory
// paths — downstream execution (out of scope for this engine) collects
// them from here.
func (r *Runner) PendingJobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := r.jobs
	r.jobs = nil
	return jobs
}

func (r *Runner) logf(format string, args ...any) {
	if r.Log != nil {
		r.Log.Printf(format, args...)
	}
}

// Start acquires the single-instance PID lock, rewrites any job left
// mid-flight by a previous instance, starts every monitor, and spawns
// the per-handler main loop plus its event-routing and job-collection
// goroutines.
func (r *Runner) Start() error {
	if r.StateDir != "" {
		if err := os.MkdirAll(r.StateDir, 0o755); err != nil {
			return fmt.Errorf("runner: creating state dir: %w", err)
		}
		r.pidPath = filepath.Join(r.StateDir, "runner.pid")
		if err := acquirePIDLock(r.pidPath); err != nil {
			return fmt.Errorf("runner: %w", err)
		}
	}

	r.stopCh = make(chan struct{})

	for _, link := range r.links {
		if err := r.recoverOrphanedJobs(link.h.JobQueueDir); err != nil {
			r.logf("runner: recovering orphaned jobs in %s: %v", link.h.JobQueueDir, err)
		}
	}

	for _, m := range r.monitors {
		if err := m.Start(); err != nil {
			return fmt.Errorf("runner: starting monitor: %w", err)
		}
	}

	for _, link := range r.links {
		link := link
		r.wg.Add(3)
		go func() {
			defer r.wg.Done()
			link.h.Run(r.stopCh, link.readyCh, link.eventCh, link.jobCh)
		}()
		go func() {
			defer r.wg.Done()
			r.routeEvents(link)
		}()
		go func() {
			defer r.wg.Done()
			r.collectJobs(link)
		}()
	}

	return nil
}

// Stop sets the stop flag, stops every monitor, drains in-flight
// handler loops, and releases the PID lock.
func (r *Runner) Stop() {
	if r.stopCh != nil {
		close(r.stopCh)
	}
	for _, m := range r.monitors {
		m.Stop()
	}
	r.wg.Wait()
	if r.pidPath != "" {
		_ = os.Remove(r.pidPath)
	}
}

// routeEvents implements spec.md §4.7's event routing: on every ready
// token from a handler, scan pending events in FIFO order and pop the
// first one the handler's criteria accepts. If none qualifies, reply
// with nothing — the handler's own select times out after pause_time.
func (r *Runner) routeEvents(link *handlerLink) {
	for {
		select {
		case <-r.stopCh:
			return
		case <-link.readyCh:
		}

		event, ok := r.popEventFor(link.h)
		if !ok {
			continue
		}
		select {
		case link.eventCh <- event:
		case <-r.stopCh:
			return
		}
	}
}

func (r *Runner) popEventFor(h *handler.Handler) (*meow.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.events {
		if ok, _ := h.Criteria(e); ok {
			r.events = append(r.events[:i], r.events[i+1:]...)
			ev := e
			return &ev, true
		}
	}
	return nil, false
}

func (r *Runner) collectJobs(link *handlerLink) {
	for {
		select {
		case <-r.stopCh:
			return
		case jobDir, ok := <-link.jobCh:
			if !ok {
				return
			}
			r.mu.Lock()
			r.jobs = append(r.jobs, jobDir)
			r.mu.Unlock()
			r.logf("runner: job materialised at %s", jobDir)
			r.recordJobQueued(jobDir)
		}
	}
}

// recordJobQueued reads the just-written job.yml back and appends a
// creating->queued transition to the event log, if one is configured.
// Errors here are logged, not propagated: a missing audit entry must
// never block job hand-off.
func (r *Runner) recordJobQueued(jobDir string) {
	if r.EventLog == nil {
		return
	}
	data, err := os.ReadFile(filepath.Join(jobDir, "job.yml"))
	if err != nil {
		r.logf("runner: reading job.yml in %s for audit: %v", jobDir, err)
		return
	}
	var job meow.Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		r.logf("runner: parsing job.yml in %s for audit: %v", jobDir, err)
		return
	}
	if err := r.EventLog.Record(job.JobID, job.RuleName, job.PatternName, meow.StatusCreating, job.Status, ""); err != nil {
		r.logf("runner: recording audit entry for job %s: %v", job.JobID, err)
	}
}

// acquirePIDLock is the single-instance guard: it refuses to start if
// another live process already holds the PID file, and reclaims a stale
// one left behind by a process that no longer exists. Grounded on the
// teacher's internal/daemon/daemon.go acquirePIDLock.
func acquirePIDLock(path string) error {
	if data, err := os.ReadFile(path); err == nil {
		if pid, err := strconv.Atoi(string(data)); err == nil {
			if proc, err := os.FindProcess(pid); err == nil {
				if err := proc.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("another runner instance is already active (PID %d)", pid)
				}
			}
		}
		_ = os.Remove(path)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}
