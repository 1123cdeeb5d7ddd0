// Package engine supervises the external Java-based SPARQL engine process.
//
// The engine is launched as `<command> endpoint -m <mapping> -t <ontology>
// -p <properties>` with stdout and stderr collected in a log file. The
// supervisor tracks liveness, records the PID on disk so a restarted web
// tier can re-adopt a running engine, and flags the engine as stale when
// its input files change after launch.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/hereditary-eu/obda-studio/internal/platform/errors"
	"github.com/hereditary-eu/obda-studio/internal/platform/timeouts"
)

// State is the observable engine lifecycle state.
type State string

const (
	// StateStopped means no engine process is running.
	StateStopped State = "stopped"
	// StateStarting means the process is up but the endpoint not yet healthy.
	StateStarting State = "starting"
	// StateRunning means the endpoint answered a health probe.
	StateRunning State = "running"
)

// healthPollInitialDelay is the first wait between endpoint probes.
const healthPollInitialDelay = 200 * time.Millisecond

// healthPollMaxDelay caps the backoff between endpoint probes.
const healthPollMaxDelay = 2 * time.Second

// healthProbeTimeout bounds a single endpoint probe.
const healthProbeTimeout = 2 * time.Second

// Status is a snapshot of the supervised engine.
type Status struct {
	State     State
	PID       int
	StartedAt time.Time
	// Stale reports that a mapping/ontology/properties file changed after
	// the engine started, so served data may not reflect current inputs.
	Stale bool
}

// Pinger probes the engine's SPARQL endpoint for liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Supervisor manages one external engine process.
type Supervisor struct {
	cfg    Config
	pinger Pinger

	mu         sync.Mutex
	cmd        *exec.Cmd
	exited     chan struct{}
	state      State
	startedAt  time.Time
	stale      bool
	adoptedPID int

	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  sync.Once
}

// New builds a supervisor. A leftover PID file pointing at a live process
// is adopted so engine state survives web-tier restarts.
func New(cfg Config, pinger Pinger) *Supervisor {
	cfg = cfg.withDefaults()
	supervisor := &Supervisor{
		cfg:    cfg,
		pinger: pinger,
		state:  StateStopped,
		done:   make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("engine input watcher unavailable: %v", err)
	} else {
		supervisor.watcher = watcher
		go supervisor.watchLoop()
	}

	if pid, ok := readPIDFile(cfg.PIDPath); ok && processAlive(pid) {
		log.Printf("engine adopted running process pid %d", pid)
		supervisor.adoptedPID = pid
		supervisor.state = StateRunning
		supervisor.watchInputs()
	}

	return supervisor
}

// startArgs builds the engine command line from the configured files.
func (s *Supervisor) startArgs() []string {
	return []string{
		"endpoint",
		"-m", s.cfg.MappingPath,
		"-t", s.cfg.OntologyPath,
		"-p", s.cfg.PropertiesPath,
	}
}

// Start launches the engine and waits for its endpoint to answer.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.runningLocked() {
		s.mu.Unlock()
		return apperrors.New(apperrors.CodeEngineAlreadyRunning, "engine is already running")
	}

	logFile, err := os.Create(s.cfg.LogPath)
	if err != nil {
		s.mu.Unlock()
		return apperrors.Wrap(apperrors.CodeEngineStartFailed, "create engine log", err)
	}

	cmd := exec.Command(s.cfg.Command, s.startArgs()...)
	cmd.Dir = s.cfg.WorkDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		s.mu.Unlock()
		return apperrors.Wrap(apperrors.CodeEngineStartFailed, fmt.Sprintf("start %s", s.cfg.Command), err)
	}
	// The child holds its own handle now.
	_ = logFile.Close()

	if err := writePIDFile(s.cfg.PIDPath, cmd.Process.Pid); err != nil {
		log.Printf("engine pid file write failed: %v", err)
	}

	exited := make(chan struct{})
	s.cmd = cmd
	s.exited = exited
	s.state = StateStarting
	s.startedAt = time.Now()
	s.stale = false
	s.adoptedPID = 0
	s.mu.Unlock()

	go s.reap(cmd, exited)

	return s.awaitHealthy(ctx, cmd, exited)
}

// awaitHealthy polls the endpoint with backoff until it answers, the
// process exits, or the start deadline passes.
func (s *Supervisor) awaitHealthy(ctx context.Context, cmd *exec.Cmd, exited chan struct{}) error {
	deadline := time.Now().Add(s.cfg.StartDeadline)
	delay := healthPollInitialDelay

	for {
		select {
		case <-exited:
			return apperrors.Wrap(apperrors.CodeEngineStartFailed, s.failureDetail("engine exited during startup"), nil)
		case <-ctx.Done():
			s.terminate(cmd, exited)
			return ctx.Err()
		default:
		}

		if s.pinger != nil {
			probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
			err := s.pinger.Ping(probeCtx)
			cancel()
			if err == nil {
				s.mu.Lock()
				if s.cmd == cmd {
					s.state = StateRunning
				}
				s.mu.Unlock()
				s.watchInputs()
				log.Printf("engine ready on %s (pid %d)", s.cfg.Endpoint, cmd.Process.Pid)
				return nil
			}
		} else {
			// Without a pinger there is nothing to probe; report running
			// as soon as the process survived its first poll interval.
			s.mu.Lock()
			if s.cmd == cmd {
				s.state = StateRunning
			}
			s.mu.Unlock()
			s.watchInputs()
			return nil
		}

		if time.Now().After(deadline) {
			s.terminate(cmd, exited)
			return apperrors.New(apperrors.CodeEngineStartFailed, s.failureDetail("engine did not become ready before deadline"))
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-exited:
			timer.Stop()
			return apperrors.New(apperrors.CodeEngineStartFailed, s.failureDetail("engine exited during startup"))
		case <-ctx.Done():
			timer.Stop()
			s.terminate(cmd, exited)
			return ctx.Err()
		}
		if delay < healthPollMaxDelay {
			delay *= 2
			if delay > healthPollMaxDelay {
				delay = healthPollMaxDelay
			}
		}
	}
}

// failureDetail appends the engine log tail to a startup failure message.
func (s *Supervisor) failureDetail(message string) string {
	lines, err := s.TailLog(20)
	if err != nil || len(lines) == 0 {
		return message
	}
	return message + "; log tail:\n" + strings.Join(lines, "\n")
}

// reap waits for the process and records its exit.
func (s *Supervisor) reap(cmd *exec.Cmd, exited chan struct{}) {
	err := cmd.Wait()

	s.mu.Lock()
	if s.cmd == cmd {
		if err != nil {
			log.Printf("engine exited: %v", err)
		} else {
			log.Printf("engine exited cleanly")
		}
		s.cmd = nil
		s.exited = nil
		s.state = StateStopped
		removePIDFile(s.cfg.PIDPath)
	}
	s.mu.Unlock()
	close(exited)
}

// Stop terminates the engine: SIGTERM, bounded wait, then SIGKILL.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd := s.cmd
	exited := s.exited
	adopted := s.adoptedPID
	s.mu.Unlock()

	switch {
	case cmd != nil:
		return s.stopOwned(ctx, cmd, exited)
	case adopted != 0:
		return s.stopAdopted(ctx, adopted)
	default:
		return apperrors.New(apperrors.CodeEngineNotRunning, "engine is not running")
	}
}

// stopOwned terminates a process this supervisor started.
func (s *Supervisor) stopOwned(ctx context.Context, cmd *exec.Cmd, exited chan struct{}) error {
	_ = cmd.Process.Signal(syscall.SIGTERM)

	timer := time.NewTimer(timeouts.EngineStop)
	defer timer.Stop()
	select {
	case <-exited:
		return nil
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-exited
		return ctx.Err()
	case <-timer.C:
		log.Printf("engine ignored SIGTERM, killing pid %d", cmd.Process.Pid)
		_ = cmd.Process.Kill()
		<-exited
		return nil
	}
}

// stopAdopted terminates a process recovered from the PID file. It cannot
// be waited on, so liveness is polled.
func (s *Supervisor) stopAdopted(ctx context.Context, pid int) error {
	_ = syscall.Kill(pid, syscall.SIGTERM)

	deadline := time.Now().Add(timeouts.EngineStop)
	for processAlive(pid) {
		if time.Now().After(deadline) {
			log.Printf("adopted engine ignored SIGTERM, killing pid %d", pid)
			_ = syscall.Kill(pid, syscall.SIGKILL)
			break
		}
		timer := time.NewTimer(100 * time.Millisecond)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			_ = syscall.Kill(pid, syscall.SIGKILL)
			return ctx.Err()
		}
	}

	s.mu.Lock()
	s.adoptedPID = 0
	s.state = StateStopped
	removePIDFile(s.cfg.PIDPath)
	s.mu.Unlock()
	return nil
}

// terminate force-stops a starting process after a failed launch.
func (s *Supervisor) terminate(cmd *exec.Cmd, exited chan struct{}) {
	_ = cmd.Process.Signal(syscall.SIGTERM)
	timer := time.NewTimer(timeouts.EngineStop)
	defer timer.Stop()
	select {
	case <-exited:
	case <-timer.C:
		_ = cmd.Process.Kill()
		<-exited
	}
}

// Restart stops a running engine (tolerating one that is not running)
// and starts it again.
func (s *Supervisor) Restart(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		if apperrors.CodeOf(err) != apperrors.CodeEngineNotRunning {
			return err
		}
	}
	return s.Start(ctx)
}

// Status reports the current engine snapshot. Adopted processes are
// re-probed on each call since they cannot be reaped.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.adoptedPID != 0 {
		if !processAlive(s.adoptedPID) {
			s.adoptedPID = 0
			s.state = StateStopped
			removePIDFile(s.cfg.PIDPath)
		}
	}

	status := Status{State: s.state, Stale: s.stale}
	switch {
	case s.cmd != nil:
		status.PID = s.cmd.Process.Pid
		status.StartedAt = s.startedAt
	case s.adoptedPID != 0:
		status.PID = s.adoptedPID
	}
	return status
}

// runningLocked reports whether a process is currently supervised.
func (s *Supervisor) runningLocked() bool {
	if s.cmd != nil {
		return true
	}
	if s.adoptedPID != 0 && processAlive(s.adoptedPID) {
		return true
	}
	s.adoptedPID = 0
	return false
}

// watchInputs registers the engine input files with the change watcher.
func (s *Supervisor) watchInputs() {
	if s.watcher == nil {
		return
	}
	for _, path := range []string{s.cfg.MappingPath, s.cfg.OntologyPath, s.cfg.PropertiesPath} {
		if path == "" {
			continue
		}
		if err := s.watcher.Add(path); err != nil {
			log.Printf("engine watch %s: %v", path, err)
		}
	}
}

// watchLoop marks the engine stale when an input file changes.
func (s *Supervisor) watchLoop() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.markStale(event.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("engine watcher error: %v", err)
		}
	}
}

// markStale flags a running engine whose inputs changed.
func (s *Supervisor) markStale(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning && s.state != StateStarting {
		return
	}
	if !s.stale {
		log.Printf("engine input changed after start: %s", path)
	}
	s.stale = true
}

// Close releases the watcher. It does not stop a running engine.
func (s *Supervisor) Close() error {
	var err error
	s.closed.Do(func() {
		close(s.done)
		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}

// readPIDFile reads a recorded engine PID.
func readPIDFile(path string) (int, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// writePIDFile records the engine PID.
func writePIDFile(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644)
}

// removePIDFile drops the PID record, ignoring a missing file.
func removePIDFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("remove engine pid file: %v", err)
	}
}

// processAlive probes a PID with signal 0.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}
