package config

import (
	"fmt"
	"net"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

// Validate checks a session config for obvious operator mistakes. It also
// normalizes the node RPC address to host:port.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Daemon.Path) == "" {
		return fmt.Errorf("daemon.path is required")
	}
	switch cfg.Daemon.ChainType {
	case Mainnet, Testnet, Regtest, Signet:
	default:
		return fmt.Errorf("daemon.chain_type must be one of mainnet, testnet, regtest, signet")
	}
	if cfg.RPC.Port <= 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [1, 65535]")
	}
	if cfg.RPC.Addr == "" {
		return fmt.Errorf("rpc.addr is required")
	}
	if cfg.RPC.Timeout <= 0 {
		return fmt.Errorf("rpc.timeout must be positive")
	}
	if cfg.Startup.ReadyTimeout <= 0 {
		return fmt.Errorf("startup.timeout must be positive")
	}
	if cfg.Startup.PollInterval <= 0 || cfg.Startup.PollInterval > cfg.Startup.ReadyTimeout {
		return fmt.Errorf("startup.poll must be positive and not exceed startup.timeout")
	}
	if cfg.Shutdown.Timeout <= 0 {
		return fmt.Errorf("shutdown.timeout must be positive")
	}
	if cfg.Fee.InTopXMB <= 0 {
		return fmt.Errorf("fee.in_top_x_mb must be positive")
	}
	if cfg.Node.DataDir == "" {
		return fmt.Errorf("node.datadir is required")
	}

	addr, err := NormalizeNodeAddr(cfg.Node.RPCAddr)
	if err != nil {
		return fmt.Errorf("node.rpc: %w", err)
	}
	cfg.Node.RPCAddr = addr
	return nil
}

// NormalizeNodeAddr accepts host:port or a TCP multiaddr such as
// /ip4/127.0.0.1/tcp/13030 and returns host:port.
func NormalizeNodeAddr(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("address is empty")
	}
	// Strip user:pass@ as found in node URLs.
	if i := strings.LastIndex(s, "@"); i >= 0 && !strings.HasPrefix(s, "/") {
		s = s[i+1:]
	}
	if strings.HasPrefix(s, "/") {
		maddr, err := ma.NewMultiaddr(s)
		if err != nil {
			return "", fmt.Errorf("parse multiaddr: %w", err)
		}
		naddr, err := manet.ToNetAddr(maddr)
		if err != nil {
			return "", fmt.Errorf("multiaddr to net addr: %w", err)
		}
		tcp, ok := naddr.(*net.TCPAddr)
		if !ok {
			return "", fmt.Errorf("multiaddr %s is not a TCP address", s)
		}
		return tcp.String(), nil
	}
	if _, _, err := net.SplitHostPort(s); err != nil {
		return "", fmt.Errorf("expected host:port: %w", err)
	}
	return s, nil
}
