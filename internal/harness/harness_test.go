package harness

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/wallet-controller/config"
	"github.com/Klingon-tech/wallet-controller/internal/controller"
	klog "github.com/Klingon-tech/wallet-controller/internal/log"
	"github.com/Klingon-tech/wallet-controller/internal/mockd"
	"github.com/Klingon-tech/wallet-controller/internal/port"
	"github.com/Klingon-tech/wallet-controller/internal/storage"
	"github.com/Klingon-tech/wallet-controller/internal/transcript"
)

const daemonEnv = "HARNESS_TEST_DAEMON"

func TestMain(m *testing.M) {
	if os.Getenv(daemonEnv) != "" {
		os.Exit(mockd.RunDaemon(os.Args[1:]))
	}
	klog.Init("error", false, "")
	os.Exit(m.Run())
}

func baseConfig(args ...string) *config.Config {
	cfg := config.DefaultRegtest()
	cfg.Daemon.Path = os.Args[0]
	cfg.Daemon.Env = []string{daemonEnv + "=1"}
	cfg.Daemon.Args = append([]string{"--mock-initial-balance", "100", "--log-level", "warn"}, args...)
	cfg.Node.RPCAddr = "127.0.0.1:13030"
	cfg.RPC.Timeout = 5 * time.Second
	cfg.Startup.ReadyTimeout = 20 * time.Second
	cfg.Startup.PollInterval = 20 * time.Millisecond
	cfg.Shutdown.Timeout = 10 * time.Second
	return cfg
}

func TestHarness_ConcurrentSessions(t *testing.T) {
	dir := t.TempDir()
	h, err := Start(context.Background(), Config{
		Base:  baseConfig(),
		Names: []string{"alice", "bob", "carol"},
		Dir:   dir,
		Ports: &port.Allocator{Dir: t.TempDir()},
	})
	require.NoError(t, err)
	defer h.Close()

	sessions := h.Sessions()
	require.Len(t, sessions, 3)

	ports := map[int]bool{}
	paths := map[string]bool{}
	for _, s := range sessions {
		require.Equal(t, controller.StateReady, s.State())
		ports[s.Config().RPC.Port] = true
		paths[s.TranscriptPath()] = true
		require.Equal(t, filepath.Join(dir, s.ID(), "node"), s.Config().Node.DataDir)
	}
	require.Len(t, ports, 3, "ports must be distinct")
	require.Len(t, paths, 3, "transcripts must be distinct")

	var mu sync.Mutex
	addrs := map[string]string{}
	err = h.Each(context.Background(), func(ctx context.Context, name string, s *controller.Session) error {
		if _, err := s.CreateWallet(ctx, ""); err != nil {
			return err
		}
		addr, err := s.NewAddress(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		addrs[name] = addr
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	require.Len(t, addrs, 3)

	// Each transcript only holds its own wallet's calls.
	for _, s := range sessions {
		n, err := s.Transcript().Count("address_new")
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	}

	require.NoError(t, h.Close())
	for _, s := range sessions {
		require.Equal(t, controller.StateTerminated, s.State())
	}
	require.NoError(t, h.Close())
}

func TestHarness_SharedTranscriptDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "transcripts")
	err := Run(context.Background(), Config{
		Base:         baseConfig(),
		Names:        []string{"a", "b"},
		Dir:          dir,
		TranscriptDB: dbPath,
	}, func(h *Harness) error {
		require.NotNil(t, h.TranscriptDB())
		_, err := h.Session("a").CreateWallet(context.Background(), "")
		return err
	})
	require.NoError(t, err)

	db, err := storage.NewBadger(dbPath)
	require.NoError(t, err)
	defer db.Close()

	ids, err := transcript.Sessions(db)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, ids)

	entries, err := transcript.ReadSession(db, "a")
	require.NoError(t, err)
	require.Equal(t, "wallet_create", entries[0].Method)
	require.Equal(t, "shutdown", entries[len(entries)-1].Method)
}

func TestHarness_StartFailureClosesOthers(t *testing.T) {
	cfg := baseConfig("--mock-exit-code", "4")
	_, err := Start(context.Background(), Config{
		Base:  cfg,
		Names: []string{"x", "y"},
		Dir:   t.TempDir(),
	})
	require.Error(t, err)
}

func TestHarness_InvalidNames(t *testing.T) {
	tests := []struct {
		name  string
		names []string
	}{
		{"none", nil},
		{"empty", []string{""}},
		{"duplicate", []string{"a", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Start(context.Background(), Config{Base: baseConfig(), Names: tt.names, Dir: t.TempDir()})
			require.Error(t, err)
		})
	}
}

func TestHarness_RunClosesOnError(t *testing.T) {
	var started []*controller.Session
	err := Run(context.Background(), Config{
		Base:  baseConfig(),
		Names: []string{"solo"},
		Dir:   t.TempDir(),
	}, func(h *Harness) error {
		started = h.Sessions()
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, started, 1)
	require.Equal(t, controller.StateTerminated, started[0].State())
}
