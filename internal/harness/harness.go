// Package harness runs several isolated wallet sessions side by side, one
// per simulated wallet, each with its own daemon, port, data directory and
// transcript.
package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/wallet-controller/config"
	"github.com/Klingon-tech/wallet-controller/internal/controller"
	klog "github.com/Klingon-tech/wallet-controller/internal/log"
	"github.com/Klingon-tech/wallet-controller/internal/port"
	"github.com/Klingon-tech/wallet-controller/internal/storage"
)

// Config describes a set of wallets.
type Config struct {
	// Base is copied for every wallet. Its RPC port and node data
	// directory are replaced.
	Base *config.Config

	// Names of the wallets. Each gets <Dir>/<name>/node as data directory.
	Names []string
	Dir   string

	// TranscriptDB, when set, is a Badger directory shared by the
	// transcript indexes of all sessions.
	TranscriptDB string

	// Ports hands out RPC ports. Nil uses the machine-wide sequence.
	Ports *port.Allocator
}

// Harness owns the sessions of one run.
type Harness struct {
	names    []string
	sessions map[string]*controller.Session
	db       storage.DB
	log      zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Start launches every wallet concurrently. If any of them fails, the ones
// already started are closed and the first error is returned.
func Start(ctx context.Context, cfg Config) (*Harness, error) {
	if cfg.Base == nil {
		return nil, errors.New("harness: base config is required")
	}
	if len(cfg.Names) == 0 {
		return nil, errors.New("harness: no wallets")
	}
	seen := make(map[string]bool, len(cfg.Names))
	for _, name := range cfg.Names {
		if name == "" || seen[name] {
			return nil, fmt.Errorf("harness: wallet names must be unique and non-empty: %q", name)
		}
		seen[name] = true
	}
	defer klog.Benchmark(fmt.Sprintf("harness start %d wallets", len(cfg.Names)))()

	h := &Harness{
		names:    append([]string(nil), cfg.Names...),
		sessions: make(map[string]*controller.Session, len(cfg.Names)),
		log:      klog.Harness,
	}
	if cfg.TranscriptDB != "" {
		db, err := storage.NewBadger(cfg.TranscriptDB)
		if err != nil {
			return nil, fmt.Errorf("harness: open transcript db: %w", err)
		}
		h.db = db
	}

	// Ports are assigned before launching so that no two daemons race for
	// the same one.
	cfgs := make(map[string]*config.Config, len(cfg.Names))
	for _, name := range cfg.Names {
		c := cfg.Base.Clone()
		p, err := nextPort(cfg.Ports)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("harness: port for %s: %w", name, err)
		}
		c.RPC.Port = p
		c.Node.DataDir = filepath.Join(cfg.Dir, name, "node")
		c.Transcript.DBPath = ""
		cfgs[name] = c
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range cfg.Names {
		g.Go(func() error {
			opts := []controller.Option{controller.WithSessionID(name)}
			if h.db != nil {
				opts = append(opts, controller.WithTranscriptDB(h.db))
			}
			s, err := controller.Start(gctx, cfgs[name], opts...)
			if err != nil {
				return fmt.Errorf("wallet %s: %w", name, err)
			}
			mu.Lock()
			h.sessions[name] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.log.Error().Err(err).Msg("Harness start failed")
		return nil, errors.Join(err, h.Close())
	}

	h.log.Info().Strs("wallets", h.names).Msg("Harness ready")
	return h, nil
}

func nextPort(a *port.Allocator) (int, error) {
	if a != nil {
		return a.Next()
	}
	return port.NextAvailablePort()
}

// Run starts a harness, runs fn and always closes the harness.
func Run(ctx context.Context, cfg Config, fn func(*Harness) error) (err error) {
	h, err := Start(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, h.Close())
	}()
	return fn(h)
}

// Session returns the session of a wallet, or nil.
func (h *Harness) Session(name string) *controller.Session {
	return h.sessions[name]
}

// Sessions returns the sessions in the order the wallets were named.
func (h *Harness) Sessions() []*controller.Session {
	out := make([]*controller.Session, 0, len(h.names))
	for _, name := range h.names {
		if s := h.sessions[name]; s != nil {
			out = append(out, s)
		}
	}
	return out
}

// TranscriptDB returns the shared transcript index, or nil.
func (h *Harness) TranscriptDB() storage.DB { return h.db }

// Each runs fn on every session concurrently and returns the first error.
func (h *Harness) Each(ctx context.Context, fn func(ctx context.Context, name string, s *controller.Session) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range h.names {
		s := h.sessions[name]
		g.Go(func() error {
			if err := fn(gctx, name, s); err != nil {
				return fmt.Errorf("wallet %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close shuts every session down concurrently and closes the shared
// transcript index. It is safe to call more than once.
func (h *Harness) Close() error {
	h.closeOnce.Do(func() {
		var (
			mu   sync.Mutex
			errs []error
			wg   sync.WaitGroup
		)
		for name, s := range h.sessions {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.Close(); err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("wallet %s: %w", name, err))
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if h.db != nil {
			if err := h.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close transcript db: %w", err))
			}
		}
		h.closeErr = errors.Join(errs...)
		h.log.Info().Int("wallets", len(h.sessions)).Err(h.closeErr).Msg("Harness closed")
	})
	return h.closeErr
}
