package config

import "time"

// Defaults mirror what the wallet RPC daemon expects in a regtest run.
const (
	DefaultRPCAddr         = "127.0.0.1"
	DefaultRPCPort         = 23034
	DefaultCallTimeout     = 30 * time.Second
	DefaultReadyTimeout    = 30 * time.Second
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultShutdownTimeout = 30 * time.Second
	DefaultInTopXMB        = 5
)

// DefaultRegtest returns the default session configuration for regtest.
func DefaultRegtest() *Config {
	return &Config{
		Daemon: DaemonConfig{
			Path:      "wallet-rpc-daemon",
			ChainType: Regtest,
		},
		RPC: RPCConfig{
			Addr:    DefaultRPCAddr,
			Port:    DefaultRPCPort,
			Timeout: DefaultCallTimeout,
			NoAuth:  true,
		},
		Startup: StartupConfig{
			ReadyTimeout: DefaultReadyTimeout,
			PollInterval: DefaultPollInterval,
		},
		Shutdown: ShutdownConfig{
			Timeout: DefaultShutdownTimeout,
		},
		Fee: FeeConfig{
			InTopXMB: DefaultInTopXMB,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Default returns the default configuration for the given chain type.
func Default(chain ChainType) *Config {
	cfg := DefaultRegtest()
	if chain != "" {
		cfg.Daemon.ChainType = chain
	}
	return cfg
}
