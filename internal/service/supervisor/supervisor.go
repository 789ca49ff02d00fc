package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okarpov/serverkeeper/internal/logger"
)

// errNeverStarted is returned when restart is requested before any start.
var errNeverStarted = errors.New("server was never started")

// ProcessLaunchError reports a failed server launch.
type ProcessLaunchError struct {
	// Path is the executable that failed to launch.
	Path string
	// Err is the underlying launch error.
	Err error
}

// Error implements the error interface.
func (e *ProcessLaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *ProcessLaunchError) Unwrap() error {
	return e.Err
}

// Process is a launched server instance.
type Process interface {
	// Shutdown requests a graceful stop and blocks until the exit is
	// acknowledged, escalating if the process ignores the request.
	Shutdown(ctx context.Context) error
	// Done is closed when the process exits for any reason.
	Done() <-chan struct{}
	// Err returns the exit error; valid only after Done is closed.
	Err() error
}

// Launcher starts the executable at path and returns a handle to it.
type Launcher func(ctx context.Context, path string) (Process, error)

// Supervisor owns the lifecycle state machine of the server process and
// serializes start, stop, and restart requests. At most one process is in
// Starting or Running at any time for this logical server.
type Supervisor struct {
	// opMu serializes exported lifecycle operations so a restart's stop and
	// start never interleave with another caller's request.
	opMu sync.Mutex
	// mu protects the fields below.
	mu sync.Mutex
	// state is the current lifecycle phase.
	state State
	// path is the executable used by the last start, reused on restart.
	path string
	// proc is the live process handle, nil outside Starting..Stopping.
	proc Process
	// generation increments per launch so the exit watcher can tell whether
	// its process is still the current one.
	generation int
	// launch starts processes; replaceable for tests.
	launch Launcher
}

// New creates a supervisor that launches real server processes.
func New() *Supervisor {
	return NewWithLauncher(launchExecutable)
}

// NewWithLauncher creates a supervisor with a custom process launcher.
func NewWithLauncher(launch Launcher) *Supervisor {
	return &Supervisor{
		launch: launch,
	}
}

// State returns the current lifecycle phase.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Path returns the executable path of the last start.
func (s *Supervisor) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.path
}

// Start launches the server bound to the given path. It is a no-op when a
// launch is already in flight or the server is running.
func (s *Supervisor) Start(ctx context.Context, path string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.start(ctx, path)
}

// Stop gracefully shuts the server down. It is a no-op when already stopped,
// and only reports Stopped once the process exit is acknowledged — not
// merely requested — so a subsequent start never overlaps a terminating
// prior instance.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.stop(ctx)
}

// Restart stops the server and, only after the stop resolved, starts it
// again with the currently resolved path. Strictly sequential.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	path := func() string {
		s.mu.Lock()
		defer s.mu.Unlock()

		return s.path
	}()

	if path == "" {
		return errNeverStarted
	}

	if err := s.stop(ctx); err != nil {
		return err
	}

	return s.start(ctx, path)
}

// start runs the launch sequence. Callers hold opMu.
func (s *Supervisor) start(ctx context.Context, path string) error {
	s.mu.Lock()

	if s.state == StateStarting || s.state == StateRunning {
		s.mu.Unlock()
		logger.InfoKV(ctx, "Server already running, start ignored", "state", s.state.String())

		return nil
	}

	s.state = StateStarting
	s.path = path
	s.generation++
	generation := s.generation
	s.mu.Unlock()

	logger.InfoKV(ctx, "Starting server", "path", path)

	proc, err := s.launch(ctx, path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateFailed

		return &ProcessLaunchError{Path: path, Err: err}
	}

	s.proc = proc
	s.state = StateRunning

	go s.watch(generation, proc)

	logger.Info(ctx, "Server is running")

	return nil
}

// stop runs the shutdown sequence. Callers hold opMu.
func (s *Supervisor) stop(ctx context.Context) error {
	s.mu.Lock()

	if s.state == StateStopped {
		s.mu.Unlock()
		logger.Info(ctx, "Server already stopped, stop ignored")

		return nil
	}

	proc := s.proc
	if proc == nil {
		// Failed launch or never-launched process: nothing to shut down.
		s.state = StateStopped
		s.mu.Unlock()

		return nil
	}

	s.state = StateStopping
	s.mu.Unlock()

	logger.Info(ctx, "Stopping server")

	err := proc.Shutdown(ctx)

	s.mu.Lock()
	s.proc = nil
	s.state = StateStopped
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("shut down server: %w", err)
	}

	logger.Info(ctx, "Server stopped")

	return nil
}

// watch observes a launched process and records its unexpected exit.
// Expected exits are handled by stop, which has already moved the state
// past Running by the time the process goes away.
func (s *Supervisor) watch(generation int, proc Process) {
	<-proc.Done()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation || s.state != StateRunning {
		return
	}

	s.proc = nil

	if err := proc.Err(); err != nil {
		s.state = StateFailed
		logger.Logger().Errorw("Server exited unexpectedly", "error", err)

		return
	}

	s.state = StateStopped
	logger.Logger().Warnw("Server exited on its own")
}
