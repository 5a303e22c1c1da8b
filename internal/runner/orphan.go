package runner

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/meow/internal/meow"
)

// interruptedError is the error string written onto a job.yml rewritten
// by recoverOrphanedJobs.
const interruptedError = "interrupted: runner restarted while job was running"

// recoverOrphanedJobs implements the restart-time orphan sweep: any job
// directory under jobQueueDir whose job.yml still reads status: running
// was abandoned by a previous runner process — nothing here tracks
// which executor held it, so it cannot be resumed, only marked failed.
// Grounded on the teacher's internal/daemon/daemon.go recoverOrphans,
// generalised from its stale-lease table to this engine's job.yml files.
func (r *Runner) recoverOrphanedJobs(jobQueueDir string) error {
	entries, err := os.ReadDir(jobQueueDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading job queue dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		r.recoverOrphanedJob(filepath.Join(jobQueueDir, entry.Name()))
	}
	return nil
}

func (r *Runner) recoverOrphanedJob(jobDir string) {
	metaPath := filepath.Join(jobDir, "job.yml")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return
	}
	var job meow.Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return
	}
	if job.Status != meow.StatusRunning {
		return
	}

	from := job.Status
	job.Status = meow.StatusFailed
	job.Error = interruptedError

	out, err := yaml.Marshal(job)
	if err != nil {
		r.logf("runner: marshalling recovered job %s: %v", job.JobID, err)
		return
	}
	tmp := metaPath + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		r.logf("runner: writing recovered job %s: %v", job.JobID, err)
		return
	}
	if err := os.Rename(tmp, metaPath); err != nil {
		r.logf("runner: renaming recovered job %s: %v", job.JobID, err)
		return
	}

	r.logf("runner: recovered orphaned job %s (was running, marked failed)", job.JobID)
	if r.EventLog != nil {
		if err := r.EventLog.Record(job.JobID, job.RuleName, job.PatternName, from, job.Status, interruptedError); err != nil {
			r.logf("runner: recording audit entry for recovered job %s: %v", job.JobID, err)
		}
	}
}
