package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads session configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Daemon
	case "daemon.path", "daemon":
		cfg.Daemon.Path = value
	case "daemon.chain_type", "chain":
		cfg.Daemon.ChainType = ChainType(strings.ToLower(value))
	case "daemon.args":
		cfg.Daemon.Args = parseArgList(value)
	case "daemon.chain_args":
		cfg.Daemon.ChainArgs = parseArgList(value)
	case "daemon.env":
		cfg.Daemon.Env = parseStringList(value)

	// Node
	case "node.rpc":
		cfg.Node.RPCAddr = value
	case "node.datadir":
		cfg.Node.DataDir = value
	case "node.cookie":
		cfg.Node.CookieFile = value

	// RPC
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.RPC.Port = port
	case "rpc.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.RPC.Timeout = d
	case "rpc.noauth":
		cfg.RPC.NoAuth = parseBool(value)

	// Startup / shutdown
	case "startup.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Startup.ReadyTimeout = d
	case "startup.poll":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Startup.PollInterval = d
	case "shutdown.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Shutdown.Timeout = d

	// Fee policy
	case "fee.in_top_x_mb":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Fee.InTopXMB = n

	// Transcript
	case "transcript.dir":
		cfg.Transcript.Dir = value
	case "transcript.db":
		cfg.Transcript.DBPath = value

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// parseArgList splits a daemon argument list on whitespace.
func parseArgList(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// WriteDefaultConfig writes a default session configuration file.
func WriteDefaultConfig(path string) error {
	content := `# Wallet controller session configuration

# ============================================================================
# Wallet daemon
# ============================================================================

daemon.path = wallet-rpc-daemon
daemon.chain_type = regtest
# Extra daemon arguments (whitespace separated)
# daemon.args =
# Chain configuration arguments (whitespace separated)
# daemon.chain_args =

# ============================================================================
# Node
# ============================================================================

# Node RPC address, host:port or multiaddr (/ip4/127.0.0.1/tcp/13030)
node.rpc = 127.0.0.1:13030
# node.datadir =
# node.cookie = <node.datadir>/.cookie

# ============================================================================
# Wallet daemon RPC
# ============================================================================

rpc.addr = 127.0.0.1
rpc.port = ` + strconv.Itoa(DefaultRPCPort) + `
rpc.timeout = ` + DefaultCallTimeout.String() + `
rpc.noauth = true

# ============================================================================
# Lifecycle
# ============================================================================

startup.timeout = ` + DefaultReadyTimeout.String() + `
startup.poll = ` + DefaultPollInterval.String() + `
shutdown.timeout = ` + DefaultShutdownTimeout.String() + `

# ============================================================================
# Fee policy
# ============================================================================

fee.in_top_x_mb = ` + strconv.Itoa(DefaultInTopXMB) + `

# ============================================================================
# Transcript
# ============================================================================

# transcript.dir =
# transcript.db =

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
