package supervisor

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/okarpov/serverkeeper/internal/logger"
)

// shutdownGrace is how long a process gets to honor each shutdown stage
// (stdin close, then SIGTERM) before escalation.
const shutdownGrace = 5 * time.Second

// execProcess supervises a real operating-system process.
type execProcess struct {
	// cmd is the running command.
	cmd *exec.Cmd
	// stdin is the write end of the server's standard input. The server
	// speaks its protocol over stdio; closing stdin requests shutdown.
	stdin io.WriteCloser
	// done is closed once Wait returns.
	done chan struct{}
	// err is the exit error, set before done is closed.
	err error
}

// launchExecutable starts the server executable with no arguments. Both
// run and debug launches use the same executable and argument list; the
// stdio channel belongs to the protocol client hosted by the caller.
func launchExecutable(ctx context.Context, path string) (Process, error) {
	// A leftover instance from a crashed host would violate the
	// single-instance invariant, so it is cleared before launching.
	terminateStaleInstances(ctx, filepath.Base(path))

	cmd := exec.Command(path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	if err = cmd.Start(); err != nil {
		return nil, err
	}

	proc := &execProcess{
		cmd:   cmd,
		stdin: stdin,
		done:  make(chan struct{}),
	}

	go func() {
		proc.err = cmd.Wait()
		close(proc.done)
	}()

	return proc, nil
}

// Shutdown closes the server's stdin to request a graceful exit, escalates
// to SIGTERM and then a kill if ignored, and returns once the exit is
// acknowledged by Wait.
func (p *execProcess) Shutdown(ctx context.Context) error {
	_ = p.stdin.Close()

	select {
	case <-p.done:
		return nil
	case <-time.After(shutdownGrace):
	}

	// Signal delivery can fail on platforms without SIGTERM support; the
	// kill below covers that case.
	_ = p.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-p.done:
		return nil
	case <-time.After(shutdownGrace):
	}

	_ = p.cmd.Process.Kill()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the process exits.
func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error recorded by Wait.
func (p *execProcess) Err() error {
	return p.err
}

// terminateStaleInstances kills processes with the provided executable name
// that do not belong to this host.
func terminateStaleInstances(ctx context.Context, processName string) {
	processList, err := ps.Processes()
	if err != nil {
		logger.WarnKV(ctx, "Unable to scan process table", "error", err)

		return
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID || process.PPid() == thisProcessID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		runningProcess, err := os.FindProcess(process.Pid())
		if err != nil {
			continue
		}

		logger.WarnKV(ctx, "Terminating stale server instance", "pid", process.Pid())

		if err = runningProcess.Kill(); err != nil {
			logger.WarnKV(ctx, "Unable to terminate stale server instance",
				"pid", process.Pid(), "error", err)
		}
	}
}
