package runner

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ppiankov/meow/internal/handler"
	"github.com/ppiankov/meow/internal/meow"
)

type fakeMonitor struct {
	started bool
	stopped bool
}

func (m *fakeMonitor) Start() error { m.started = true; return nil }
func (m *fakeMonitor) Stop()        { m.stopped = true }

func testEvent(path, ruleName string) meow.Event {
	pattern := &meow.FilePattern{
		PatternName:    ruleName,
		Recipe:         ruleName,
		TriggeringPath: "*",
		TriggeringFile: "INPUT_FILE",
		EventMask:      []meow.EventType{meow.EventFileCreated},
	}
	recipe := &meow.ShellRecipe{RecipeName: ruleName, Script: "echo {PATH}"}
	rule := meow.Rule{Name: ruleName, Pattern: pattern, Recipe: recipe}
	return meow.Event{
		Type: meow.EventWatchdog,
		Path: path,
		Rule: rule,
		Time: time.Now(),
	}
}

func TestRunnerRoutesEventToHandler(t *testing.T) {
	dir := t.TempDir()
	h, err := handler.New("h1", filepath.Join(dir, "queue"), 30*time.Millisecond, nil, nil)
	if err != nil {
		t.Fatalf("handler.New: %v", err)
	}

	r := New(filepath.Join(dir, "state"), nil)
	r.AddHandler(h)
	mon := &fakeMonitor{}
	r.AddMonitor(mon)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop()

	if !mon.started {
		t.Fatal("expected monitor to be started")
	}

	r.PushEvent(testEvent(filepath.Join(dir, "in.csv"), "p1"))

	deadline := time.After(2 * time.Second)
	for {
		jobs := r.PendingJobs()
		if len(jobs) == 1 {
			if _, err := os.Stat(jobs[0]); err != nil {
				t.Fatalf("job dir missing: %v", err)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a materialised job")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRunnerSkipsEventRejectedByCriteria(t *testing.T) {
	dir := t.TempDir()
	reject := func(meow.Event) (bool, string) { return false, "never accepts" }
	h, err := handler.New("h1", filepath.Join(dir, "queue"), 20*time.Millisecond, reject, nil)
	if err != nil {
		t.Fatalf("handler.New: %v", err)
	}

	r := New("", nil)
	r.AddHandler(h)
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop()

	r.PushEvent(testEvent(filepath.Join(dir, "in.csv"), "p1"))

	time.Sleep(150 * time.Millisecond)
	if jobs := r.PendingJobs(); len(jobs) != 0 {
		t.Fatalf("expected no jobs for a handler that rejects everything, got %v", jobs)
	}

	r.mu.Lock()
	pending := len(r.events)
	r.mu.Unlock()
	if pending != 1 {
		t.Fatalf("expected the rejected event to remain queued, got %d pending", pending)
	}
}

func TestStopJoinsGoroutinesAndMonitors(t *testing.T) {
	dir := t.TempDir()
	h, err := handler.New("h1", filepath.Join(dir, "queue"), 10*time.Millisecond, nil, nil)
	if err != nil {
		t.Fatalf("handler.New: %v", err)
	}
	r := New("", nil)
	r.AddHandler(h)
	mon := &fakeMonitor{}
	r.AddMonitor(mon)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Stop()

	if !mon.stopped {
		t.Fatal("expected monitor to be stopped")
	}
}

func TestAcquirePIDLockRejectsLiveProcessAndReclaimsStale(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "runner.pid")

	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := acquirePIDLock(pidPath); err == nil {
		t.Fatal("expected acquirePIDLock to refuse while the owning process is alive")
	}

	// A PID that is extremely unlikely to be live reclaims the lock.
	if err := os.WriteFile(pidPath, []byte("999999"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := acquirePIDLock(pidPath); err != nil {
		t.Fatalf("expected acquirePIDLock to reclaim a stale lock, got: %v", err)
	}

	data, err := os.ReadFile(pidPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("expected pid file to hold our own PID, got %q", data)
	}
}
