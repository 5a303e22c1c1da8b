package cli

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/meow/internal/config"
	"github.com/ppiankov/meow/internal/eventlog"
	"github.com/ppiankov/meow/internal/fsmonitor"
	"github.com/ppiankov/meow/internal/handler"
	"github.com/ppiankov/meow/internal/meow"
	"github.com/ppiankov/meow/internal/runner"
	"github.com/ppiankov/meow/internal/sockmonitor"
)

var (
	runBaseDir          string
	runJobQueueDir      string
	runStateDir         string
	runPatternsFile     string
	runSettleTime       time.Duration
	runPauseTime        time.Duration
	runAuditLog         string
	runEnableSockets    bool
	runSocketPayloadDir string
	runSocketReconcile  time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runBaseDir, "base-dir", "", "Directory tree to watch (required)")
	runCmd.Flags().StringVar(&runJobQueueDir, "job-queue-dir", "", "Directory jobs are materialised into (required)")
	runCmd.Flags().StringVar(&runStateDir, "state-dir", "", "Directory for the runner's PID lock")
	runCmd.Flags().StringVar(&runPatternsFile, "patterns", "", "Path to a YAML file declaring patterns and recipes (required)")
	runCmd.Flags().DurationVar(&runSettleTime, "settle-time", 2*time.Second, "Debounce window for filesystem events")
	runCmd.Flags().DurationVar(&runPauseTime, "pause-time", 5*time.Second, "Handler poll timeout")
	runCmd.Flags().StringVar(&runAuditLog, "audit-log", "", "Path to a hash-chained JSONL job event log")
	runCmd.Flags().BoolVar(&runEnableSockets, "enable-sockets", false, "Also bind socket-pattern ports")
	runCmd.Flags().StringVar(&runSocketPayloadDir, "socket-payload-dir", "", "Directory socket payloads are written to (defaults to base-dir)")
	runCmd.Flags().DurationVar(&runSocketReconcile, "socket-reconcile-interval", 2*time.Second, "How often the socket monitor re-derives its port set")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the event monitor, handler, and runner",
	RunE:  runRun,
}

// runConfig is the flag-parsed form runRun hands to buildRunner, kept
// separate from the package-level flag variables so the wiring logic
// can be exercised without going through cobra.
type runConfig struct {
	baseDir          string
	jobQueueDir      string
	stateDir         string
	patternsFile     string
	settleTime       time.Duration
	pauseTime        time.Duration
	auditLog         string
	enableSockets    bool
	socketPayloadDir string
	socketReconcile  time.Duration
}

// buildRunner loads the patterns file, populates a registry, and wires a
// runner with an fsmonitor (and, if requested, a sockmonitor) and a
// single handler — everything runRun needs before it can Start.
func buildRunner(cfg runConfig, logger *log.Logger) (*runner.Runner, error) {
	if cfg.baseDir == "" || cfg.jobQueueDir == "" || cfg.patternsFile == "" {
		return nil, fmt.Errorf("base dir, job queue dir, and patterns file are all required")
	}

	doc, err := config.Load(cfg.patternsFile)
	if err != nil {
		return nil, fmt.Errorf("loading patterns file: %w", err)
	}

	reg := meow.NewRegistry()
	if err := doc.Populate(reg, filepath.Dir(cfg.patternsFile)); err != nil {
		return nil, fmt.Errorf("populating registry: %w", err)
	}

	r := runner.New(cfg.stateDir, logger)

	if cfg.auditLog != "" {
		elog, err := eventlog.Open(cfg.auditLog)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		r.EventLog = elog
	}

	fsMon := fsmonitor.New(cfg.baseDir, cfg.settleTime, reg, r, logger)
	r.AddMonitor(fsMon)

	if cfg.enableSockets {
		payloadDir := cfg.socketPayloadDir
		if payloadDir == "" {
			payloadDir = cfg.baseDir
		}
		sockMon := sockmonitor.New(payloadDir, cfg.socketReconcile, reg, r, logger)
		r.AddMonitor(sockMon)
	}

	h, err := handler.New("", cfg.jobQueueDir, cfg.pauseTime, handler.AcceptAll, logger)
	if err != nil {
		return nil, fmt.Errorf("constructing handler: %w", err)
	}
	r.AddHandler(h)

	return r, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stderr, "meowd: ", log.LstdFlags)

	cfg := runConfig{
		baseDir:          runBaseDir,
		jobQueueDir:      runJobQueueDir,
		stateDir:         runStateDir,
		patternsFile:     runPatternsFile,
		settleTime:       runSettleTime,
		pauseTime:        runPauseTime,
		auditLog:         runAuditLog,
		enableSockets:    runEnableSockets,
		socketPayloadDir: runSocketPayloadDir,
		socketReconcile:  runSocketReconcile,
	}

	r, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}
	if r.EventLog != nil {
		defer r.EventLog.Close()
	}

	if err := r.Start(); err != nil {
		return fmt.Errorf("starting runner: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Printf("shutting down")
	r.Stop()
	return nil
}
