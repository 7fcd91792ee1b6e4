package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/wallet-controller/config"
	"github.com/Klingon-tech/wallet-controller/internal/controller"
	klog "github.com/Klingon-tech/wallet-controller/internal/log"
)

// commandContext carries the global flags to the subcommands.
type commandContext struct {
	flags   *config.Flags
	wallet  string
	create  bool
	account uint32
	json    bool

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "walletctl",
		Short:         "Drive a wallet RPC daemon from the shell",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipSession(cmd) {
				return nil
			}
			cfg, err := config.Load(cc.flags)
			if err != nil {
				return err
			}
			// Logs go to stderr so that stdout only carries command output.
			if cfg.Log.File == "" {
				klog.InitWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.JSON)
			} else if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			cc.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	cc.flags = config.BindFlags(pf)
	pf.StringVar(&cc.wallet, "wallet", controller.DefaultWalletName, "Wallet file name inside the node data directory")
	pf.BoolVar(&cc.create, "create", false, "Create the wallet instead of opening it")
	pf.Uint32Var(&cc.account, "account", 0, "Account index every call is scoped to")
	pf.BoolVar(&cc.json, "json", false, "Print JSON instead of a table")

	rootCmd.AddCommand(newWalletCommands(cc)...)
	rootCmd.AddCommand(newTranscriptCommand())
	rootCmd.AddCommand(newInitConfigCommand())

	return rootCmd
}

// skipSession reports commands that work without a daemon config.
func skipSession(cmd *cobra.Command) bool {
	if cmd == cmd.Root() || cmd.Name() == "help" || cmd.Name() == "completion" {
		return true
	}
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["session"] == "none" {
			return true
		}
	}
	return false
}
