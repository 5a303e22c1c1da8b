package fsmonitor

import (
	"sync"
	"time"
)

// rawKind is one of the five raw notification kinds this monitor
// observes, before the file_/dir_ prefix is applied at match time.
type rawKind string

const (
	kindCreated  rawKind = "created"
	kindModified rawKind = "modified"
	kindMoved    rawKind = "moved"
	kindDeleted  rawKind = "deleted"
	kindClosed   rawKind = "closed"
)

// recentEntry is the per-path debounce record: the timestamp of the last
// event recorded at this path, and the union of kinds seen in the
// current settle window.
type recentEntry struct {
	lastTs time.Time
	kinds  map[rawKind]bool
}

// debounceCache implements the per-path debounce algorithm of spec.md
// §4.4 / original_source's WatchdogEventHandler.threaded_handler: a
// lock-guarded map from path to (last_ts, {kinds}), recording a union of
// kinds per settle window and dropping stale duplicates.
type debounceCache struct {
	mu      sync.Mutex
	recent  map[string]*recentEntry
	settle  time.Duration
}

func newDebounceCache(settle time.Duration) *debounceCache {
	return &debounceCache{
		recent: make(map[string]*recentEntry),
		settle: settle,
	}
}

// recordOutcome is the verdict from recording one raw notification.
type recordOutcome int

const (
	outcomeDrop recordOutcome = iota
	outcomeImmediate
	outcomeWait
)

// record applies step 1-3 of the debounce algorithm and returns whether
// the caller should drop the event, match immediately (file_closed), or
// sleep out the settle window before re-checking.
func (c *debounceCache) record(path string, kind rawKind, now time.Time) recordOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, seen := c.recent[path]
	switch {
	case !seen || now.After(entry.lastTs.Add(c.settle)):
		c.recent[path] = &recentEntry{lastTs: now, kinds: map[rawKind]bool{kind: true}}
	case now.After(entry.lastTs):
		entry.lastTs = now
		entry.kinds[kind] = true
	default:
		return outcomeDrop
	}

	if kind == kindClosed {
		return outcomeImmediate
	}
	return outcomeWait
}

// recheck implements the post-sleep re-check: if last_ts has advanced
// past recordedAt since we started waiting, another event arrived and
// this one is superseded — drop it. Otherwise return the accumulated
// kind set to hand off to matching.
func (c *debounceCache) recheck(path string, recordedAt time.Time) (map[rawKind]bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.recent[path]
	if !ok {
		return nil, false
	}
	if entry.lastTs.After(recordedAt) {
		return nil, false
	}
	kinds := make(map[rawKind]bool, len(entry.kinds))
	for k := range entry.kinds {
		kinds[k] = true
	}
	return kinds, true
}

// snapshot returns a copy of kinds recorded for path without mutating
// state, used when file_closed short-circuits the wait.
func (c *debounceCache) snapshot(path string) map[rawKind]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.recent[path]
	if !ok {
		return nil
	}
	kinds := make(map[rawKind]bool, len(entry.kinds))
	for k := range entry.kinds {
		kinds[k] = true
	}
	return kinds
}
