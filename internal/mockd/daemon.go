package mockd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	klog "github.com/Klingon-tech/wallet-controller/internal/log"
)

// DaemonOptions are the command-line options of the fake daemon. The first
// group mirrors the real daemon; the mock-* options control the simulation.
type DaemonOptions struct {
	ChainType    string
	NodeRPCAddr  string
	NodeCookie   string
	RPCBindAddr  string
	RPCNoAuth    bool
	LogLevel     string
	LogJSON      bool
	InitialFunds string
	BlockReward  string
	IgnoreStop   bool
	ExitCode     int
	StartDelay   time.Duration
}

// BindDaemonFlags registers the daemon flags on fs.
func BindDaemonFlags(fs *pflag.FlagSet) *DaemonOptions {
	o := &DaemonOptions{}
	fs.StringVar(&o.ChainType, "chain-type", "regtest", "Chain type (mainnet, testnet, regtest, signet)")
	fs.StringVar(&o.NodeRPCAddr, "node-rpc-address", "", "Node RPC address (accepted, not contacted)")
	fs.StringVar(&o.NodeCookie, "node-cookie-file", "", "Node RPC cookie file (accepted, not read)")
	fs.StringVar(&o.RPCBindAddr, "rpc-bind-address", "127.0.0.1:23034", "Wallet RPC listen address")
	fs.BoolVar(&o.RPCNoAuth, "rpc-no-authentication", false, "Disable wallet RPC authentication")
	fs.StringVar(&o.LogLevel, "log-level", "info", "Log level")
	fs.BoolVar(&o.LogJSON, "log-json", false, "Log as JSON")
	fs.StringVar(&o.InitialFunds, "mock-initial-balance", "0", "Coins credited to account 0 of every created or opened wallet")
	fs.StringVar(&o.BlockReward, "mock-block-reward", "2", "Coins credited to the staking pool of each produced block")
	fs.BoolVar(&o.IgnoreStop, "mock-ignore-shutdown", false, "Answer shutdown without exiting")
	fs.IntVar(&o.ExitCode, "mock-exit-code", 0, "Exit immediately with this code when non-zero")
	fs.DurationVar(&o.StartDelay, "mock-start-delay", 0, "Wait before binding the RPC port")
	return o
}

// RunDaemon runs the fake daemon until a shutdown call or a signal and
// returns the process exit code. Flags it does not know, such as chain
// configuration options, are ignored.
func RunDaemon(args []string) int {
	fs := pflag.NewFlagSet("mock-walletd", pflag.ContinueOnError)
	opts := BindDaemonFlags(fs)
	known, ignored := splitArgs(fs, args)
	if err := fs.Parse(known); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	return Run(opts, ignored)
}

// Run runs the fake daemon with parsed options.
func Run(opts *DaemonOptions, ignored []string) int {
	klog.InitWriter(os.Stderr, opts.LogLevel, opts.LogJSON)
	logger := klog.Mockd

	if len(ignored) > 0 {
		logger.Debug().Strs("args", ignored).Msg("Ignoring unknown arguments")
	}
	if opts.ExitCode != 0 {
		logger.Error().Int("code", opts.ExitCode).Msg("Exiting on request")
		return opts.ExitCode
	}
	if !opts.RPCNoAuth {
		logger.Warn().Msg("RPC authentication is not simulated")
	}
	if opts.StartDelay > 0 {
		time.Sleep(opts.StartDelay)
	}

	srv, err := New(Config{
		Addr:           opts.RPCBindAddr,
		Chain:          opts.ChainType,
		InitialBalance: opts.InitialFunds,
		BlockReward:    opts.BlockReward,
		IgnoreShutdown: opts.IgnoreStop,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		return 2
	}
	if err := srv.Start(); err != nil {
		logger.Error().Err(err).Msg("Failed to start RPC server")
		return 1
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-srv.ShutdownRequested():
		logger.Info().Msg("Shutdown requested")
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("Signal received")
	}
	if err := srv.Stop(); err != nil {
		logger.Error().Err(err).Msg("RPC server shutdown")
		return 1
	}
	logger.Info().Msg("Stopped")
	return 0
}

// splitArgs separates the arguments fs knows from the rest. A value that
// follows an unknown flag is dropped with it.
func splitArgs(fs *pflag.FlagSet, args []string) (known, ignored []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			ignored = append(ignored, arg)
			continue
		}
		if arg == "--" {
			ignored = append(ignored, args[i:]...)
			break
		}
		name, _, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		var f *pflag.Flag
		if strings.HasPrefix(arg, "--") {
			f = fs.Lookup(name)
		} else if len(name) == 1 {
			f = fs.ShorthandLookup(name)
		}
		if name == "help" || name == "h" {
			known = append(known, arg)
			continue
		}

		takesValue := !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-")
		if f == nil {
			ignored = append(ignored, arg)
			if takesValue {
				i++
				ignored = append(ignored, args[i])
			}
			continue
		}
		known = append(known, arg)
		if !hasValue && f.Value.Type() != "bool" && i+1 < len(args) {
			i++
			known = append(known, args[i])
		}
	}
	return known, ignored
}
