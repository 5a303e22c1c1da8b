// Package eventlog implements an append-only, SHA-256 hash-chained JSONL
// trail of job lifecycle transitions — the ambient audit record a
// long-running runner accumulates alongside each job's job.yml.
//
// Grounded verbatim in structure on the teacher's internal/audit/log.go
// (chain-tail recovery on Open, PrevHash set at Record time, fsync after
// every append) with AuditEntry's policy-decision fields replaced by job
// lifecycle fields (job id, pattern/rule name, status transition).
package eventlog

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ppiankov/meow/internal/meow"
)

// GenesisHash is the PrevHash of the first entry in a new log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one line in the hash-chained JSONL trail. All fields are
// plain structs, never map[string]any, so json.Marshal's field order is
// deterministic and the chain hashes reproducibly.
type Entry struct {
	Timestamp   string `json:"ts"`
	JobID       string `json:"job_id"`
	RuleName    string `json:"rule_name"`
	PatternName string `json:"pattern_name"`
	From        string `json:"from"`
	To          string `json:"to"`
	Detail      string `json:"detail,omitempty"`
	PrevHash    string `json:"prev_hash"`
}

// Log is an append-only JSONL event log with SHA-256 hash chaining.
type Log struct {
	path     string
	file     *os.File
	prevHash string
	mu       sync.Mutex
}

// Open opens (or creates) a log file for appending, recovering the chain
// tail from the file's last line if it already exists.
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("eventlog: create directory: %w", err)
	}

	prevHash := GenesisHash

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("eventlog: read existing log: %w", err)
		}
		scanner := bufio.NewScanner(f)
		var lastLine []byte
		for scanner.Scan() {
			lastLine = append([]byte(nil), scanner.Bytes()...)
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("eventlog: scan existing log: %w", err)
		}
		if len(lastLine) > 0 {
			prevHash = HashLine(lastLine)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open file: %w", err)
	}

	return &Log{path: path, file: file, prevHash: prevHash}, nil
}

// Record appends one status transition, chaining it to the previous
// line's hash and fsyncing before returning.
func (l *Log) Record(jobID, ruleName, patternName string, from, to meow.JobStatus, detail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		Timestamp:   time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		JobID:       jobID,
		RuleName:    ruleName,
		PatternName: patternName,
		From:        string(from),
		To:          string(to),
		Detail:      detail,
		PrevHash:    l.prevHash,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("eventlog: marshal entry: %w", err)
	}

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("eventlog: write entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("eventlog: sync: %w", err)
	}

	l.prevHash = HashLine(line)
	return nil
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
