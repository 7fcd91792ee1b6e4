// Package config handles wallet controller configuration.
//
// A Config describes one controller session: which daemon binary to launch
// and with which arguments, which node it talks to, where the daemon's RPC
// endpoint listens, and the timeouts that bound startup, calls and shutdown.
package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"
)

// ChainType selects the chain the wallet daemon runs against.
type ChainType string

const (
	Mainnet ChainType = "mainnet"
	Testnet ChainType = "testnet"
	Regtest ChainType = "regtest"
	Signet  ChainType = "signet"
)

// Config holds the settings of a single controller session.
type Config struct {
	Daemon     DaemonConfig
	Node       NodeConfig
	RPC        RPCConfig
	Startup    StartupConfig
	Shutdown   ShutdownConfig
	Fee        FeeConfig
	Transcript TranscriptConfig
	Log        LogConfig
}

// DaemonConfig describes the wallet daemon executable and its arguments.
type DaemonConfig struct {
	Path      string    `conf:"daemon.path"`
	ChainType ChainType `conf:"daemon.chain_type"`
	// Extra arguments appended after the derived ones.
	Args []string `conf:"daemon.args"`
	// Chain configuration arguments appended last.
	ChainArgs []string `conf:"daemon.chain_args"`
	// Extra environment entries (KEY=VALUE) for the daemon process.
	Env []string `conf:"daemon.env"`
}

// NodeConfig describes the blockchain node the daemon connects to.
type NodeConfig struct {
	RPCAddr    string `conf:"node.rpc"`
	DataDir    string `conf:"node.datadir"`
	CookieFile string `conf:"node.cookie"`
}

// RPCConfig holds the daemon's RPC endpoint settings.
type RPCConfig struct {
	Addr    string        `conf:"rpc.addr"`
	Port    int           `conf:"rpc.port"`
	Timeout time.Duration `conf:"rpc.timeout"`
	// NoAuth passes the daemon's no-authentication flag.
	NoAuth bool `conf:"rpc.noauth"`
}

// StartupConfig bounds the readiness poll after the daemon is spawned.
type StartupConfig struct {
	ReadyTimeout time.Duration `conf:"startup.timeout"`
	PollInterval time.Duration `conf:"startup.poll"`
}

// ShutdownConfig bounds the wait for the daemon to exit.
type ShutdownConfig struct {
	Timeout time.Duration `conf:"shutdown.timeout"`
}

// FeeConfig is the fee policy sent with every fee-paying call. The value is
// opaque to the controller.
type FeeConfig struct {
	InTopXMB int `conf:"fee.in_top_x_mb"`
}

// TranscriptConfig controls where session sinks are written.
type TranscriptConfig struct {
	// Dir holds the stderr log and the transcript. Empty means the parent of
	// the node data directory.
	Dir string `conf:"transcript.dir"`
	// DBPath enables a persistent Badger index of transcript entries.
	DBPath string `conf:"transcript.db"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	out := *c
	out.Daemon.Args = append([]string(nil), c.Daemon.Args...)
	out.Daemon.ChainArgs = append([]string(nil), c.Daemon.ChainArgs...)
	out.Daemon.Env = append([]string(nil), c.Daemon.Env...)
	return &out
}

// RPCHostPort returns the daemon's RPC listen address as host:port.
func (c *Config) RPCHostPort() string {
	return net.JoinHostPort(c.RPC.Addr, strconv.Itoa(c.RPC.Port))
}

// RPCURL returns the URL requests are posted to.
func (c *Config) RPCURL() string {
	return fmt.Sprintf("http://%s/", c.RPCHostPort())
}

// WalletFile returns the path of a wallet file inside the node data directory.
func (c *Config) WalletFile(name string) string {
	return filepath.Join(c.Node.DataDir, name)
}

// CookiePath returns the node auth cookie path.
func (c *Config) CookiePath() string {
	if c.Node.CookieFile != "" {
		return c.Node.CookieFile
	}
	return filepath.Join(c.Node.DataDir, ".cookie")
}

// SinkDir returns the directory for the daemon log and the transcript.
func (c *Config) SinkDir() string {
	if c.Transcript.Dir != "" {
		return c.Transcript.Dir
	}
	return filepath.Dir(c.Node.DataDir)
}

// DaemonArgs derives the daemon's argument vector.
func (c *Config) DaemonArgs() []string {
	args := []string{
		"--chain-type", string(c.Daemon.ChainType),
		"--node-rpc-address", c.Node.RPCAddr,
		"--node-cookie-file", c.CookiePath(),
		"--rpc-bind-address", c.RPCHostPort(),
	}
	if c.RPC.NoAuth {
		args = append(args, "--rpc-no-authentication")
	}
	args = append(args, c.Daemon.Args...)
	args = append(args, c.Daemon.ChainArgs...)
	return args
}
