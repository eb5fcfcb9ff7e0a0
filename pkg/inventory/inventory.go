// Package inventory periodically checks that the account binaries the
// gateway invokes are present and executable.
package inventory

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "@every 1m"

// Binary is the last observed state of one executable.
type Binary struct {
	Path      string    `json:"path"`
	Available bool      `json:"available"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

type Inventory struct {
	executables []string
	logger      *slog.Logger
	lookPath    func(string) (string, error)

	mu       sync.RWMutex
	binaries map[string]Binary
	cron     *cron.Cron
}

func New(executables []string, logger *slog.Logger) *Inventory {
	return &Inventory{
		executables: executables,
		logger:      logger.With("module", "inventory"),
		lookPath:    exec.LookPath,
		binaries:    make(map[string]Binary, len(executables)),
	}
}

// Probe checks every executable once and records the result.
func (i *Inventory) Probe() {
	now := time.Now().UTC()
	results := make(map[string]Binary, len(i.executables))

	for _, executable := range i.executables {
		binary := Binary{Path: executable, CheckedAt: now}

		resolved, err := i.lookPath(executable)
		if err != nil {
			binary.Error = err.Error()
			i.logger.Warn("Account binary unavailable", "executable", executable, "error", err)
		} else {
			binary.Path = resolved
			binary.Available = true
		}

		results[executable] = binary
	}

	i.mu.Lock()
	i.binaries = results
	i.mu.Unlock()
}

// Snapshot returns the latest probe results keyed by configured executable.
func (i *Inventory) Snapshot() map[string]Binary {
	i.mu.RLock()
	defer i.mu.RUnlock()

	snapshot := make(map[string]Binary, len(i.binaries))
	for name, binary := range i.binaries {
		snapshot[name] = binary
	}

	return snapshot
}

// Start probes immediately and then on the given cron schedule.
func (i *Inventory) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := c.AddFunc(schedule, i.Probe); err != nil {
		return fmt.Errorf("invalid inventory schedule %q: %w", schedule, err)
	}

	i.Probe()

	i.mu.Lock()
	i.cron = c
	i.mu.Unlock()

	c.Start()
	i.logger.Info("Binary inventory started", "schedule", schedule, "executables", len(i.executables))

	return nil
}

func (i *Inventory) Stop() {
	i.mu.RLock()
	c := i.cron
	i.mu.RUnlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
