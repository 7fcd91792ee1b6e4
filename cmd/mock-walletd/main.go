// mock-walletd runs the simulated wallet RPC daemon used by the controller
// tests as a standalone process.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/wallet-controller/internal/mockd"
)

func main() {
	code := 0
	cmd := &cobra.Command{
		Use:   "mock-walletd [flags]",
		Short: "Simulated wallet RPC daemon",
		Long: `mock-walletd answers the wallet RPC methods from an in-memory chain.
It accepts the real daemon's flags and ignores the ones it does not model.`,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		Run: func(cmd *cobra.Command, args []string) {
			code = mockd.RunDaemon(args)
		},
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(code)
}
