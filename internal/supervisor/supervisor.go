// Package supervisor launches the wallet daemon as a child process, waits
// for its RPC port, and makes sure it is gone when the session ends.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/wallet-controller/internal/log"
)

// LogPrefix starts the name of every daemon output log.
const LogPrefix = "wallet_stderr_"

// killGrace bounds the wait for a killed process to be reaped.
const killGrace = 5 * time.Second

// LaunchError reports a daemon that could not be started or never became
// ready.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ShutdownTimeoutError reports a daemon that did not exit in time and was
// killed.
type ShutdownTimeoutError struct {
	PID     int
	Timeout time.Duration
}

func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("daemon pid %d did not exit within %s, killed", e.PID, e.Timeout)
}

// Spec describes a daemon launch.
type Spec struct {
	Path string
	Args []string
	// Dir is the working directory. Empty means the current one.
	Dir string
	// Env entries are appended to the controller's environment.
	Env []string
	// LogDir receives the daemon's output log.
	LogDir string
	// Name distinguishes the log file of this launch.
	Name string
	// Addr, when set, is the RPC address the daemon will listen on. It
	// must be free before the daemon is started.
	Addr string
}

// Process is a running daemon.
type Process struct {
	path    string
	cmd     *exec.Cmd
	logFile *os.File
	logPath string
	log     zerolog.Logger

	// done is closed once the process has been reaped; waitErr is valid
	// after that.
	done    chan struct{}
	waitErr error

	closeOnce sync.Once
	closeErr  error
}

// Launch starts the daemon with stdout and stderr appended to a log file in
// spec.LogDir. No stdin is attached.
func Launch(spec Spec) (*Process, error) {
	path, err := exec.LookPath(spec.Path)
	if err != nil {
		return nil, &LaunchError{Path: spec.Path, Err: err}
	}
	if spec.Addr != "" {
		if err := CheckAddrFree(spec.Addr); err != nil {
			return nil, &LaunchError{Path: path, Err: err}
		}
	}

	logDir := spec.LogDir
	if logDir == "" {
		logDir = os.TempDir()
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, &LaunchError{Path: path, Err: fmt.Errorf("create log dir: %w", err)}
	}
	logPath := filepath.Join(logDir, LogPrefix+spec.Name+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &LaunchError{Path: path, Err: fmt.Errorf("open daemon log: %w", err)}
	}

	cmd := exec.Command(path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, &LaunchError{Path: path, Err: err}
	}

	p := &Process{
		path:    path,
		cmd:     cmd,
		logFile: logFile,
		logPath: logPath,
		log:     klog.WithSession("supervisor", spec.Name),
		done:    make(chan struct{}),
	}

	// Reap the process in the background so that its exit can be
	// observed while waiting for the RPC port.
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
		p.log.Info().Int("pid", cmd.Process.Pid).Err(p.waitErr).Msg("Daemon exited")
	}()

	p.log.Info().
		Str("path", path).
		Strs("args", spec.Args).
		Int("pid", cmd.Process.Pid).
		Str("log", logPath).
		Msg("Daemon launched")
	return p, nil
}

// CheckAddrFree reports an error when addr cannot be bound, typically
// because another process already listens on it.
func CheckAddrFree(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc address %s already in use: %w", addr, err)
	}
	return l.Close()
}

// PID returns the process id.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// LogPath returns the path of the daemon's output log.
func (p *Process) LogPath() string { return p.logPath }

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited reports whether the process has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
	}
	return false
}

// ExitErr returns the result of waiting on the process. It is nil while the
// process runs and after a clean exit.
func (p *Process) ExitErr() error {
	if !p.Exited() {
		return nil
	}
	return p.waitErr
}

// WaitReady polls addr until it accepts a TCP connection. Polling starts at
// interval and backs off exponentially; it gives up after timeout, when ctx
// is done, or as soon as the process exits.
func (p *Process) WaitReady(ctx context.Context, addr string, timeout, interval time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = 10 * interval
	b.Multiplier = 1.5
	b.RandomizationFactor = 0
	b.MaxElapsedTime = timeout
	b.Reset()

	attempts := 0
	op := func() error {
		attempts++
		if p.Exited() {
			return backoff.Permanent(&LaunchError{
				Path: p.path,
				Err:  fmt.Errorf("daemon exited before accepting connections: %v", p.waitErr),
			})
		}
		conn, err := net.DialTimeout("tcp", addr, interval)
		if err != nil {
			return err
		}
		conn.Close()
		// Something else may own the port while the daemon dies.
		if p.Exited() {
			return backoff.Permanent(&LaunchError{
				Path: p.path,
				Err:  fmt.Errorf("daemon exited before accepting connections: %v", p.waitErr),
			})
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	if err == nil {
		p.log.Info().Str("addr", addr).Int("attempts", attempts).Msg("Daemon ready")
		return nil
	}
	var le *LaunchError
	if errors.As(err, &le) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return &LaunchError{Path: p.path, Err: fmt.Errorf("rpc port %s not ready after %s: %w", addr, timeout, err)}
}

// Wait blocks until the process exits or timeout elapses. On timeout the
// process is killed and a ShutdownTimeoutError is returned.
func (p *Process) Wait(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
	}

	p.log.Warn().Int("pid", p.PID()).Dur("timeout", timeout).Msg("Daemon did not exit, killing")
	if err := p.Kill(); err != nil {
		return errors.Join(&ShutdownTimeoutError{PID: p.PID(), Timeout: timeout}, err)
	}
	return &ShutdownTimeoutError{PID: p.PID(), Timeout: timeout}
}

// Kill terminates the process if it is still running and waits for it to
// be reaped.
func (p *Process) Kill() error {
	if p.Exited() {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill daemon: %w", err)
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(killGrace):
		return fmt.Errorf("daemon pid %d not reaped after kill", p.PID())
	}
}

// Close kills the process if needed and closes the output log. It is safe
// to call more than once.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		killErr := p.Kill()
		closeErr := p.logFile.Close()
		if closeErr != nil {
			closeErr = fmt.Errorf("close daemon log: %w", closeErr)
		}
		p.closeErr = errors.Join(killErr, closeErr)
	})
	return p.closeErr
}
