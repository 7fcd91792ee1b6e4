package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Flags holds command-line flag values bound to a flag set.
type Flags struct {
	Config string

	// Daemon
	DaemonPath string
	ChainType  string
	DaemonArgs []string
	ChainArgs  []string

	// Node
	NodeRPC     string
	NodeDataDir string
	NodeCookie  string

	// RPC
	RPCAddr    string
	RPCPort    int
	RPCTimeout time.Duration
	RPCNoAuth  bool

	// Lifecycle
	ReadyTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Transcript
	TranscriptDir string
	TranscriptDB  string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	fs *pflag.FlagSet
}

// BindFlags registers the session flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}

	fs.StringVarP(&f.Config, "config", "c", "", "Config file path")

	fs.StringVar(&f.DaemonPath, "daemon", "", "Wallet RPC daemon executable")
	fs.StringVar(&f.ChainType, "chain-type", "", "Chain type (mainnet, testnet, regtest, signet)")
	fs.StringSliceVar(&f.DaemonArgs, "daemon-arg", nil, "Extra daemon argument (repeatable)")
	fs.StringSliceVar(&f.ChainArgs, "chain-arg", nil, "Chain configuration argument (repeatable)")

	fs.StringVar(&f.NodeRPC, "node-rpc", "", "Node RPC address (host:port or multiaddr)")
	fs.StringVar(&f.NodeDataDir, "node-datadir", "", "Node data directory")
	fs.StringVar(&f.NodeCookie, "node-cookie", "", "Node auth cookie file")

	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "Daemon RPC bind address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "Daemon RPC port")
	fs.DurationVar(&f.RPCTimeout, "rpc-timeout", 0, "Per-call RPC timeout")
	fs.BoolVar(&f.RPCNoAuth, "rpc-no-auth", true, "Run the daemon without RPC authentication")

	fs.DurationVar(&f.ReadyTimeout, "startup-timeout", 0, "How long to wait for the daemon RPC port")
	fs.DurationVar(&f.ShutdownTimeout, "shutdown-timeout", 0, "How long to wait for the daemon to exit")

	fs.StringVar(&f.TranscriptDir, "transcript-dir", "", "Directory for the daemon log and RPC transcript")
	fs.StringVar(&f.TranscriptDB, "transcript-db", "", "Badger directory for a persistent transcript index")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	return f
}

// changed reports whether a flag was explicitly set.
func (f *Flags) changed(name string) bool {
	return f.fs != nil && f.fs.Changed(name)
}

// ApplyFlags applies explicitly-set flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	if f.DaemonPath != "" {
		cfg.Daemon.Path = f.DaemonPath
	}
	if f.ChainType != "" {
		cfg.Daemon.ChainType = ChainType(f.ChainType)
	}
	if len(f.DaemonArgs) > 0 {
		cfg.Daemon.Args = append([]string(nil), f.DaemonArgs...)
	}
	if len(f.ChainArgs) > 0 {
		cfg.Daemon.ChainArgs = append([]string(nil), f.ChainArgs...)
	}

	if f.NodeRPC != "" {
		cfg.Node.RPCAddr = f.NodeRPC
	}
	if f.NodeDataDir != "" {
		cfg.Node.DataDir = f.NodeDataDir
	}
	if f.NodeCookie != "" {
		cfg.Node.CookieFile = f.NodeCookie
	}

	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.RPCPort != 0 {
		cfg.RPC.Port = f.RPCPort
	}
	if f.RPCTimeout != 0 {
		cfg.RPC.Timeout = f.RPCTimeout
	}
	if f.changed("rpc-no-auth") {
		cfg.RPC.NoAuth = f.RPCNoAuth
	}

	if f.ReadyTimeout != 0 {
		cfg.Startup.ReadyTimeout = f.ReadyTimeout
	}
	if f.ShutdownTimeout != 0 {
		cfg.Shutdown.Timeout = f.ShutdownTimeout
	}

	if f.TranscriptDir != "" {
		cfg.Transcript.Dir = f.TranscriptDir
	}
	if f.TranscriptDB != "" {
		cfg.Transcript.DBPath = f.TranscriptDB
	}

	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.changed("log-json") {
		cfg.Log.JSON = f.LogJSON
	}
}

// Load builds a configuration with the following precedence:
// 1. Default values
// 2. Config file (if --config was given)
// 3. Command-line flags
func Load(f *Flags) (*Config, error) {
	chain := Regtest
	if f.ChainType != "" {
		chain = ChainType(f.ChainType)
	}
	cfg := Default(chain)

	if f.Config != "" {
		values, err := LoadFile(f.Config)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		if err := ApplyFileConfig(cfg, values); err != nil {
			return nil, fmt.Errorf("applying config file: %w", err)
		}
	}

	ApplyFlags(cfg, f)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
