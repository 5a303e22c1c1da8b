package fsmonitor

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/meow/internal/meow"
)

type collectingSink struct {
	mu     sync.Mutex
	events []meow.Event
}

func (s *collectingSink) PushEvent(e meow.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *collectingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *collectingSink) snapshot() []meow.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]meow.Event(nil), s.events...)
}

func waitForCount(t *testing.T, sink *collectingSink, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if sink.count() >= want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d", want, sink.count())
}

func newTestRegistry(t *testing.T, patternName, triggeringPath string, mask []meow.EventType) *meow.Registry {
	t.Helper()
	reg := meow.NewRegistry()
	if err := reg.AddRecipe(&meow.ShellRecipe{RecipeName: "r1", Script: "echo hi"}); err != nil {
		t.Fatalf("AddRecipe: %v", err)
	}
	pattern := &meow.FilePattern{
		PatternName:    patternName,
		Recipe:         "r1",
		TriggeringPath: triggeringPath,
		TriggeringFile: "INPUT_FILE",
		EventMask:      mask,
	}
	if err := reg.AddPattern(pattern); err != nil {
		t.Fatalf("AddPattern: %v", err)
	}
	return reg
}

func TestMonitorSimpleMatch(t *testing.T) {
	dir := t.TempDir()
	reg := newTestRegistry(t, "p1", "A", []meow.EventType{meow.EventFileCreated})
	sink := &collectingSink{}
	mon := New(dir, 200*time.Millisecond, reg, sink, log.New(os.Stderr, "", 0))
	if err := mon.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mon.Stop()

	if err := os.WriteFile(filepath.Join(dir, "A"), []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	waitForCount(t, sink, 1, 3*time.Second)

	events := sink.snapshot()
	if events[0].Path != filepath.Join(dir, "A") {
		t.Fatalf("event path = %s, want %s", events[0].Path, filepath.Join(dir, "A"))
	}
	if events[0].Rule.Name != "p1" {
		t.Fatalf("event rule = %s, want p1", events[0].Rule.Name)
	}

	if err := os.WriteFile(filepath.Join(dir, "B"), []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	time.Sleep(500 * time.Millisecond)
	if got := sink.count(); got != 1 {
		t.Fatalf("non-matching file produced %d events, want 1 total", got)
	}
}

func TestMonitorSubdirectoryMatch(t *testing.T) {
	dir := t.TempDir()
	reg := newTestRegistry(t, "p1", "start/A.txt", []meow.EventType{meow.EventFileCreated})
	sink := &collectingSink{}
	mon := New(dir, 200*time.Millisecond, reg, sink, log.New(os.Stderr, "", 0))

	if err := os.Mkdir(filepath.Join(dir, "start"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := mon.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mon.Stop()

	if err := os.WriteFile(filepath.Join(dir, "start", "A.txt"), []byte("Initial Data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	waitForCount(t, sink, 1, 3*time.Second)

	events := sink.snapshot()
	want := filepath.Join(dir, "start", "A.txt")
	if events[0].Path != want {
		t.Fatalf("event path = %s, want %s", events[0].Path, want)
	}
}

func TestMonitorRetroactiveScanAtStart(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "start"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "start", "A.txt"), []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	reg := newTestRegistry(t, "p1", "start/A.txt", []meow.EventType{meow.EventFileRetroactive})
	sink := &collectingSink{}
	mon := New(dir, 200*time.Millisecond, reg, sink, log.New(os.Stderr, "", 0))
	if err := mon.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mon.Stop()

	waitForCount(t, sink, 1, 3*time.Second)
	events := sink.snapshot()
	if events[0].Path != filepath.Join(dir, "start", "A.txt") {
		t.Fatalf("retroactive event path = %s", events[0].Path)
	}
}

func TestMonitorRetroactiveEmptyBaseDirProducesNoEvents(t *testing.T) {
	dir := t.TempDir()
	reg := newTestRegistry(t, "p1", "*", []meow.EventType{meow.EventFileRetroactive})
	sink := &collectingSink{}
	mon := New(dir, 200*time.Millisecond, reg, sink, log.New(os.Stderr, "", 0))
	if err := mon.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mon.Stop()

	time.Sleep(300 * time.Millisecond)
	if got := sink.count(); got != 0 {
		t.Fatalf("retroactive scan of empty base_dir produced %d events, want 0", got)
	}
}

func TestMonitorDebounceCoalescesBurstOnSamePath(t *testing.T) {
	dir := t.TempDir()
	reg := newTestRegistry(t, "p1", "top", []meow.EventType{meow.EventFileCreated, meow.EventFileModified})
	sink := &collectingSink{}
	mon := New(dir, time.Second, reg, sink, log.New(os.Stderr, "", 0))
	if err := mon.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mon.Stop()

	target := filepath.Join(dir, "top")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		time.Sleep(150 * time.Millisecond)
	}
	time.Sleep(2 * time.Second)

	if got := sink.count(); got != 1 {
		t.Fatalf("debounced burst on one path produced %d events, want exactly 1", got)
	}
}

func TestMonitorAggregatesDirectoryBurstIntoOneEvent(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "top"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	reg := meow.NewRegistry()
	if err := reg.AddRecipe(&meow.ShellRecipe{RecipeName: "r1", Script: "echo hi"}); err != nil {
		t.Fatalf("AddRecipe: %v", err)
	}
	if err := reg.AddPattern(&meow.FilePattern{
		PatternName:    "p1",
		Recipe:         "r1",
		TriggeringPath: "top",
		TriggeringFile: "INPUT_FILE",
		EventMask:      []meow.EventType{meow.EventDirCreated, meow.EventDirModified},
	}); err != nil {
		t.Fatalf("AddPattern: %v", err)
	}

	sink := &collectingSink{}
	mon := New(dir, 500*time.Millisecond, reg, sink, log.New(os.Stderr, "", 0))
	if err := mon.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mon.Stop()

	for i := 0; i < 10; i++ {
		name := filepath.Join(dir, "top", fmt.Sprintf("f%d", i))
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		time.Sleep(150 * time.Millisecond)
	}

	waitForCount(t, sink, 1, 5*time.Second)
	time.Sleep(700 * time.Millisecond)

	events := sink.snapshot()
	if len(events) != 1 {
		t.Fatalf("got %d events for a debounced directory burst, want exactly 1: %+v", len(events), events)
	}
	want := filepath.Join(dir, "top")
	if events[0].Path != want {
		t.Fatalf("event path = %s, want %s", events[0].Path, want)
	}
}
