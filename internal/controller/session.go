// Package controller drives a wallet RPC daemon for integration tests.
//
// A Session owns one daemon process, one RPC connection and the session's
// diagnostic sinks (the daemon's output log and the RPC transcript). Its
// methods form a typed facade over the daemon's JSON-RPC methods; every
// account-scoped call carries the account selected with SelectAccount.
//
// Calls on one session are serialised. Independent sessions share nothing
// and may run concurrently.
package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/wallet-controller/config"
	klog "github.com/Klingon-tech/wallet-controller/internal/log"
	"github.com/Klingon-tech/wallet-controller/internal/rpcclient"
	"github.com/Klingon-tech/wallet-controller/internal/storage"
	"github.com/Klingon-tech/wallet-controller/internal/supervisor"
	"github.com/Klingon-tech/wallet-controller/internal/transcript"
)

var (
	// ErrSessionClosed is returned by calls made after Close.
	ErrSessionClosed = errors.New("controller session closed")
	// ErrNotReady is returned by calls made before the daemon is ready.
	ErrNotReady = errors.New("controller session not ready")
)

// SessionError wraps a failure inside WithSession with the paths needed to
// diagnose it.
type SessionError struct {
	Err        error
	Transcript string
	DaemonLog  string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%v (transcript: %s, daemon log: %s)", e.Err, e.Transcript, e.DaemonLog)
}

func (e *SessionError) Unwrap() error { return e.Err }

// State is the lifecycle state of a session.
type State int

const (
	StateCreated State = iota
	StateStarting
	StateReady
	StateShuttingDown
	StateTerminated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting down"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Option configures Start.
type Option func(*options)

type options struct {
	id string
	db storage.DB
}

// WithSessionID sets the session id used in sink file names. The default is
// a random UUID.
func WithSessionID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithTranscriptDB indexes the transcript in db instead of in memory. The
// caller keeps ownership of db.
func WithTranscriptDB(db storage.DB) Option {
	return func(o *options) { o.db = db }
}

// Session is one running wallet daemon and the connection to it.
type Session struct {
	id  string
	cfg *config.Config
	log zerolog.Logger

	mu    sync.Mutex
	state State

	proc    *supervisor.Process
	client  *rpcclient.Client
	tr      *transcript.Transcript
	ownedDB storage.DB
	account AccountContext

	closeOnce sync.Once
	closeErr  error
}

// Start launches the daemon described by cfg, waits until its RPC port
// accepts connections and returns a ready session. On failure nothing is
// left running and every sink is closed.
func Start(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	cfg = cfg.Clone()
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}

	s := &Session{
		id:    o.id,
		cfg:   cfg,
		log:   klog.WithSession("controller", o.id),
		state: StateCreated,
	}
	defer klog.Benchmark("session start " + o.id)()

	s.setState(StateStarting)
	if err := os.MkdirAll(cfg.Node.DataDir, 0o755); err != nil {
		return s.fail(fmt.Errorf("create node data dir: %w", err))
	}

	proc, err := supervisor.Launch(supervisor.Spec{
		Path:   cfg.Daemon.Path,
		Args:   cfg.DaemonArgs(),
		Dir:    cfg.Node.DataDir,
		Env:    cfg.Daemon.Env,
		LogDir: cfg.SinkDir(),
		Name:   o.id,
		Addr:   cfg.RPCHostPort(),
	})
	if err != nil {
		return s.fail(err)
	}
	s.proc = proc

	db := o.db
	if db == nil && cfg.Transcript.DBPath != "" {
		bdb, err := storage.NewBadger(cfg.Transcript.DBPath)
		if err != nil {
			return s.fail(fmt.Errorf("open transcript db: %w", err))
		}
		s.ownedDB = bdb
		db = bdb
	}
	tr, err := transcript.Open(cfg.SinkDir(), o.id, db)
	if err != nil {
		return s.fail(err)
	}
	s.tr = tr

	err = proc.WaitReady(ctx, cfg.RPCHostPort(), cfg.Startup.ReadyTimeout, cfg.Startup.PollInterval)
	if err != nil {
		s.log.Error().Err(err).Str("daemon_log", proc.LogPath()).Msg("Daemon did not become ready")
		return s.fail(err)
	}

	s.client = rpcclient.New(cfg.RPCURL(),
		rpcclient.WithTimeout(cfg.RPC.Timeout),
		rpcclient.WithRecorder(tr),
	)
	s.setState(StateReady)
	s.log.Info().
		Str("rpc", cfg.RPCURL()).
		Int("pid", proc.PID()).
		Str("transcript", tr.Path()).
		Msg("Session ready")
	return s, nil
}

// fail releases whatever a failed Start had acquired.
func (s *Session) fail(err error) (*Session, error) {
	s.setState(StateFailed)
	errs := []error{err}
	if s.proc != nil {
		errs = append(errs, s.proc.Close())
	}
	if s.tr != nil {
		errs = append(errs, s.tr.Close())
	}
	if s.ownedDB != nil {
		errs = append(errs, s.ownedDB.Close())
	}
	return nil, errors.Join(errs...)
}

// WithSession starts a session, runs fn and always closes the session,
// also when fn fails or panics. A daemon that had to be killed at shutdown
// is only logged when fn succeeded. Failures are returned as *SessionError.
func WithSession(ctx context.Context, cfg *config.Config, fn func(*Session) error, opts ...Option) (err error) {
	s, err := Start(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := s.Close()
		if err == nil && closeErr != nil && onlyShutdownTimeouts(closeErr) {
			s.log.Warn().Err(closeErr).Msg("Daemon was killed at shutdown")
			closeErr = nil
		}
		if err == nil && closeErr == nil {
			return
		}
		err = &SessionError{
			Err:        errors.Join(err, closeErr),
			Transcript: s.TranscriptPath(),
			DaemonLog:  s.DaemonLogPath(),
		}
	}()
	return fn(s)
}

func onlyShutdownTimeouts(err error) bool {
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range multi.Unwrap() {
			if !onlyShutdownTimeouts(e) {
				return false
			}
		}
		return true
	}
	var ste *supervisor.ShutdownTimeoutError
	return errors.As(err, &ste)
}

// Close asks the daemon to shut down, waits for it to exit (killing it
// after the shutdown timeout) and closes the connection and every sink.
// Only the first call does anything; later calls return its result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.close()
	})
	return s.closeErr
}

func (s *Session) close() error {
	if s.State() != StateReady {
		return nil
	}
	s.setState(StateShuttingDown)

	var errs []error
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RPC.Timeout)
	if err := s.client.Call(ctx, "shutdown", nil, nil); err != nil {
		s.log.Warn().Err(err).Msg("Shutdown call failed")
		errs = append(errs, fmt.Errorf("shutdown call: %w", err))
	}
	cancel()

	if err := s.proc.Wait(s.cfg.Shutdown.Timeout); err != nil {
		s.log.Warn().Err(err).Msg("Daemon shutdown timed out")
		errs = append(errs, err)
	}
	s.client.CloseIdleConnections()
	if err := s.proc.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.tr.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.ownedDB != nil {
		if err := s.ownedDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transcript db: %w", err))
		}
	}

	s.setState(StateTerminated)
	s.log.Info().Int("errors", len(errs)).Msg("Session closed")
	return errors.Join(errs...)
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	s.log.Debug().Stringer("from", prev).Stringer("to", st).Msg("Session state")
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Config returns the validated session config. It must not be modified.
func (s *Session) Config() *config.Config { return s.cfg }

// TranscriptPath returns the path of the RPC transcript file.
func (s *Session) TranscriptPath() string { return s.tr.Path() }

// DaemonLogPath returns the path of the daemon's output log.
func (s *Session) DaemonLogPath() string { return s.proc.LogPath() }

// Transcript returns the session transcript. Its query methods fail after
// Close.
func (s *Session) Transcript() *transcript.Transcript { return s.tr }

// PID returns the daemon's process id.
func (s *Session) PID() int { return s.proc.PID() }

// SelectAccount scopes subsequent calls to account idx.
func (s *Session) SelectAccount(idx uint32) string { return s.account.Select(idx) }

// CurrentAccount returns the selected account index.
func (s *Session) CurrentAccount() uint32 { return s.account.Index() }

// call invokes a daemon method on a ready session.
func (s *Session) call(ctx context.Context, method string, params []any, result any) error {
	switch st := s.State(); st {
	case StateReady:
	case StateShuttingDown, StateTerminated:
		return fmt.Errorf("%s: %w", method, ErrSessionClosed)
	default:
		return fmt.Errorf("%s: %w (state %s)", method, ErrNotReady, st)
	}
	return s.client.Call(ctx, method, params, result)
}

// acct is the account parameter of the current call.
func (s *Session) acct() AccountParam { return s.account.Current() }

func (s *Session) fee() feePolicy { return feePolicy{InTopXMB: s.cfg.Fee.InTopXMB} }
