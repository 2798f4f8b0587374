package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a managed process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

const (
	// maxProbeFailures is how many consecutive failed probes kill the daemon.
	maxProbeFailures = 3

	// probeTimeout bounds a single health probe.
	probeTimeout = 5 * time.Second

	// killWait bounds the wait for exit after a SIGKILL.
	killWait = 5 * time.Second
)

// Config holds configuration for a supervised daemon.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments passed to the binary.
	Args []string

	// RestartOnFailure restarts the daemon when it exits without Stop.
	RestartOnFailure bool

	// RestartDelay is the fixed wait before each restart.
	RestartDelay time.Duration

	// MaxRestartAttempts limits restarts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// Probe, if set, is called every ProbeInterval while the daemon runs.
	// Three consecutive failures kill the daemon so it gets restarted.
	Probe func(ctx context.Context) error

	// ProbeInterval is how often Probe runs.
	ProbeInterval time.Duration

	// OnExit is called whenever the daemon exits; err is nil after Stop.
	OnExit func(err error)
}

// DefaultConfig returns a Config with restart enabled.
func DefaultConfig(name, binary string, args []string) Config {
	return Config{
		Name:               name,
		Binary:             binary,
		Args:               args,
		RestartOnFailure:   true,
		RestartDelay:       5 * time.Second,
		MaxRestartAttempts: 10,
		GracefulTimeout:    10 * time.Second,
		ProbeInterval:      30 * time.Second,
	}
}

// Manager supervises one long-running subprocess.
type Manager struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	current       *instance
	status        Status
	restartCount  int
	lastError     error
	startTime     time.Time
	stopRequested bool
	done          chan struct{}
}

// NewManager creates a manager, filling zero durations with defaults.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = 30 * time.Second
	}

	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Start launches the daemon and supervises it until Stop or ctx is done.
// Only the first launch reports an error; later restarts are logged.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, m.config.Name)
	}
	m.status = StatusStarting
	m.stopRequested = false
	m.done = make(chan struct{})
	m.mu.Unlock()

	if err := m.launch(ctx); err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.lastError = err
		close(m.done)
		m.mu.Unlock()
		return err
	}

	go m.supervise(ctx)
	return nil
}

// instance is one launched copy of the daemon.
type instance struct {
	cmd    *exec.Cmd
	exited chan struct{}
	err    error // valid once exited is closed
}

// launch starts one instance of the daemon in its own process group.
func (m *Manager) launch(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, m.config.Binary, m.config.Args...) //nolint:gosec // Binary comes from validated config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// One pipe for both streams keeps daemon output in order.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close() //nolint:errcheck // Nothing was written
		return fmt.Errorf("%w: %s: %w", ErrSpawnFailed, m.config.Name, err)
	}

	inst := &instance{cmd: cmd, exited: make(chan struct{})}
	go m.logLines(pr)
	go func() {
		inst.err = cmd.Wait()
		pw.Close() //nolint:errcheck // PipeWriter.Close never fails
		close(inst.exited)
	}()

	m.mu.Lock()
	m.current = inst
	m.status = StatusRunning
	m.startTime = time.Now()
	m.mu.Unlock()

	m.logger.Info("daemon started",
		"name", m.config.Name,
		"binary", m.config.Binary,
		"args", m.config.Args,
		"pid", cmd.Process.Pid,
	)
	return nil
}

// logLines logs daemon output one line at a time at debug level.
func (m *Manager) logLines(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.logger.Debug("daemon output", "name", m.config.Name, "line", scanner.Text())
	}
}

// wait blocks until the daemon exits, ctx is done, or the probe gives up.
func (m *Manager) wait(ctx context.Context, inst *instance) error {

	var tick <-chan time.Time
	if m.config.Probe != nil {
		ticker := time.NewTicker(m.config.ProbeInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	failures := 0
	for {
		select {
		case <-inst.exited:
			return inst.err

		case <-ctx.Done():
			<-inst.exited
			return ctx.Err()

		case <-tick:
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			err := m.config.Probe(probeCtx)
			cancel()

			if err == nil {
				if failures > 0 {
					m.logger.Info("daemon probe recovered", "name", m.config.Name, "previous_failures", failures)
				}
				failures = 0
				continue
			}

			failures++
			m.logger.Warn("daemon probe failed", "name", m.config.Name, "error", err, "consecutive_failures", failures)
			if failures < maxProbeFailures {
				continue
			}

			m.logger.Error("daemon unresponsive, killing", "name", m.config.Name)
			_ = syscall.Kill(-inst.cmd.Process.Pid, syscall.SIGKILL) //nolint:errcheck // Exit is observed below
			select {
			case <-inst.exited:
				return fmt.Errorf("killed after %d failed probes", failures)
			case <-time.After(killWait):
				return fmt.Errorf("daemon did not exit after kill")
			}
		}
	}
}

// supervise waits for each exit and restarts the daemon when configured.
func (m *Manager) supervise(ctx context.Context) {
	defer close(m.done)

	for {
		m.mu.RLock()
		inst := m.current
		m.mu.RUnlock()

		err := m.wait(ctx, inst)

		m.mu.Lock()
		if m.stopRequested {
			m.status = StatusStopped
			m.mu.Unlock()
			m.logger.Info("daemon stopped", "name", m.config.Name)
			m.notifyExit(nil)
			return
		}
		m.status = StatusFailed
		m.lastError = err
		m.mu.Unlock()

		m.logger.Warn("daemon exited unexpectedly", "name", m.config.Name, "error", err)
		m.notifyExit(err)

		if !m.shouldRestart(ctx) {
			return
		}

		if err := m.launch(ctx); err != nil {
			m.logger.Error("daemon restart failed", "name", m.config.Name, "error", err)
			m.mu.Lock()
			m.lastError = err
			m.mu.Unlock()
			return
		}
	}
}

// shouldRestart counts the attempt and sleeps RestartDelay.
// It returns false when restarting is disabled, exhausted or cancelled.
func (m *Manager) shouldRestart(ctx context.Context) bool {
	if !m.config.RestartOnFailure || ctx.Err() != nil {
		return false
	}

	m.mu.Lock()
	m.restartCount++
	attempt := m.restartCount
	m.mu.Unlock()

	if m.config.MaxRestartAttempts > 0 && attempt > m.config.MaxRestartAttempts {
		m.logger.Error("max restart attempts reached", "name", m.config.Name, "attempts", attempt-1)
		return false
	}

	m.logger.Info("restarting daemon", "name", m.config.Name, "attempt", attempt, "delay", m.config.RestartDelay)

	select {
	case <-ctx.Done():
		return false
	case <-time.After(m.config.RestartDelay):
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.stopRequested
}

func (m *Manager) notifyExit(err error) {
	if m.config.OnExit != nil {
		m.config.OnExit(err)
	}
}

// Stop sends SIGTERM to the daemon's process group, escalating to SIGKILL
// after GracefulTimeout. It is a no-op when nothing is running.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.status != StatusRunning && m.status != StatusStarting {
		m.mu.Unlock()
		return nil
	}
	m.stopRequested = true
	inst := m.current
	done := m.done
	m.mu.Unlock()

	if inst == nil || done == nil {
		return nil
	}

	pid := inst.cmd.Process.Pid
	m.logger.Info("stopping daemon", "name", m.config.Name, "pid", pid)

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		m.logger.Warn("failed to send SIGTERM", "name", m.config.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(m.config.GracefulTimeout):
		m.logger.Warn("graceful shutdown timeout, sending SIGKILL", "name", m.config.Name, "timeout", m.config.GracefulTimeout)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", m.config.Name, err)
	}

	<-done
	return nil
}

// Status returns the current status of the daemon.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning reports whether the daemon is currently running.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// LastError returns the error from the most recent unexpected exit.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// RestartCount returns how many restarts have been attempted.
func (m *Manager) RestartCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restartCount
}

// PID returns the daemon's process ID, or 0 if not running.
func (m *Manager) PID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status != StatusRunning || m.current == nil {
		return 0
	}
	return m.current.cmd.Process.Pid
}

// Stats is a point-in-time snapshot of the daemon.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	PID          int           `json:"pid,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the daemon.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:         m.config.Name,
		Status:       m.status,
		RestartCount: m.restartCount,
	}
	if m.status == StatusRunning && m.current != nil {
		stats.PID = m.current.cmd.Process.Pid
		stats.Uptime = time.Since(m.startTime)
	}
	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}
	return stats
}
