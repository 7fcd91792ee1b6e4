package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/wallet-controller/internal/controller"
)

func newWalletCommands(cc *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newAddressCommand(cc),
		newBalanceCommand(cc),
		newUtxosCommand(cc),
		newSendCommand(cc),
		newPendingCommand(cc),
		newPoolsCommand(cc),
		newDelegationsCommand(cc),
		newBlocksCommand(cc),
		newStakingStatusCommand(cc),
		newBestBlockCommand(cc),
		newAccountCreateCommand(cc),
		newSeedPhraseCommand(cc),
		newEncryptKeysCommand(cc),
	}
}

func newAddressCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "new-address",
		Short: "Generate a receive address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cc.runWallet(cmd, func(ctx context.Context, s *controller.Session) error {
				addr, err := s.NewAddress(ctx)
				if err != nil {
					return err
				}
				return cc.print(cmd, map[string]string{"address": addr},
					[]string{"Address"}, [][]string{{addr}}, nil)
			})
		},
	}
}

// lockFilter holds the --locked and --state flags shared by balance queries.
type lockFilter struct {
	locked string
	states []string
}

func (f *lockFilter) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.locked, "locked", string(controller.Unlocked), "Lock filter (unlocked, locked, any)")
	cmd.Flags().StringSliceVar(&f.states, "state", nil, "UTXO state filter (repeatable)")
}

func (f *lockFilter) parse() (controller.WithLocked, []controller.UtxoState, error) {
	w := controller.WithLocked(f.locked)
	switch w {
	case controller.Unlocked, controller.Locked, controller.AnyLocked:
	default:
		return "", nil, fmt.Errorf("--locked must be unlocked, locked or any, got %q", f.locked)
	}
	states := make([]controller.UtxoState, 0, len(f.states))
	for _, st := range f.states {
		states = append(states, controller.UtxoState(st))
	}
	return w, states, nil
}

func newBalanceCommand(cc *commandContext) *cobra.Command {
	var filter lockFilter
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show coin and token balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			locked, states, err := filter.parse()
			if err != nil {
				return err
			}
			return cc.runWallet(cmd, func(ctx context.Context, s *controller.Session) error {
				b, err := s.Balances(ctx, locked, states)
				if err != nil {
					return err
				}
				rows := [][]string{{"coins", b.Coins.String()}}
				for _, id := range sortedKeys(b.Tokens) {
					rows = append(rows, []string{id, b.Tokens[id].String()})
				}
				return cc.print(cmd, b, []string{"Asset", "Amount"}, rows,
					[]columnAlignment{alignLeft, alignRight})
			})
		},
	}
	filter.bind(cmd)
	return cmd
}

func newUtxosCommand(cc *commandContext) *cobra.Command {
	var (
		filter    lockFilter
		utxoTypes string
	)
	cmd := &cobra.Command{
		Use:   "utxos",
		Short: "List unspent outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			locked, states, err := filter.parse()
			if err != nil {
				return err
			}
			if len(states) == 0 {
				states = controller.DefaultUtxoStates
			}
			return cc.runWallet(cmd, func(ctx context.Context, s *controller.Session) error {
				utxos, err := s.ListUtxos(ctx, utxoTypes, locked, states)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(utxos))
				for _, u := range utxos {
					rows = append(rows, []string{u.ID, strconv.FormatUint(uint64(u.Index), 10)})
				}
				return cc.print(cmd, utxos, []string{"Transaction", "Index"}, rows,
					[]columnAlignment{alignLeft, alignRight})
			})
		},
	}
	filter.bind(cmd)
	cmd.Flags().StringVar(&utxoTypes, "type", "Transfer", "UTXO type filter")
	return cmd
}

func newSendCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "send <address> <amount>",
		Short: "Send coins to an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := controller.ParseAmount(args[1])
			if err != nil {
				return err
			}
			return cc.runWallet(cmd, func(ctx context.Context, s *controller.Session) error {
				tx, err := s.Send(ctx, args[0], amount, nil)
				if err != nil {
					return err
				}
				return cc.print(cmd, tx, []string{"Transaction"}, [][]string{{tx.TxID}}, nil)
			})
		},
	}
}

func newPendingCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List transactions not yet in a block",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cc.runWallet(cmd, func(ctx context.Context, s *controller.Session) error {
				txs, err := s.ListPendingTransactions(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(txs))
				for _, id := range txs {
					rows = append(rows, []string{id})
				}
				return cc.print(cmd, txs, []string{"Transaction"}, rows, nil)
			})
		},
	}
}

func newPoolsCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pools",
		Short: "List stake pools owned by the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cc.runWallet(cmd, func(ctx context.Context, s *controller.Session) error {
				pools, err := s.ListPoolIDs(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(pools))
				for _, p := range pools {
					rows = append(rows, []string{p.PoolID, p.Balance.String()})
				}
				return cc.print(cmd, pools, []string{"Pool", "Balance"}, rows,
					[]columnAlignment{alignLeft, alignRight})
			})
		},
	}
}

func newDelegationsCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delegations",
		Short: "List delegations owned by the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cc.runWallet(cmd, func(ctx context.Context, s *controller.Session) error {
				ds, err := s.ListDelegationIDs(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(ds))
				for _, d := range ds {
					rows = append(rows, []string{d.DelegationID, d.Balance.String()})
				}
				return cc.print(cmd, ds, []string{"Delegation", "Balance"}, rows,
					[]columnAlignment{alignLeft, alignRight})
			})
		},
	}
}

func newBlocksCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "blocks",
		Short: "List blocks created by the account's pools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cc.runWallet(cmd, func(ctx context.Context, s *controller.Session) error {
				blocks, err := s.ListCreatedBlockIDs(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(blocks))
				for _, b := range blocks {
					rows = append(rows, []string{b.BlockID, b.BlockHeight.String()})
				}
				return cc.print(cmd, blocks, []string{"Block", "Height"}, rows,
					[]columnAlignment{alignLeft, alignRight})
			})
		},
	}
}

func newStakingStatusCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "staking-status",
		Short: "Show whether the account is staking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cc.runWallet(cmd, func(ctx context.Context, s *controller.Session) error {
				st, err := s.StakingStatus(ctx)
				if err != nil {
					return err
				}
				return cc.print(cmd, map[string]string{"status": st.String()},
					[]string{"Status"}, [][]string{{st.String()}}, nil)
			})
		},
	}
}

func newBestBlockCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "best-block",
		Short: "Show the wallet's best block",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cc.runWallet(cmd, func(ctx context.Context, s *controller.Session) error {
				b, err := s.BestBlock(ctx)
				if err != nil {
					return err
				}
				return cc.print(cmd, b, []string{"Block", "Height"},
					[][]string{{b.ID, b.Height.String()}}, []columnAlignment{alignLeft, alignRight})
			})
		},
	}
}

func newAccountCreateCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "account-create [name]",
		Short: "Create a new account in the wallet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name *string
			if len(args) == 1 {
				name = &args[0]
			}
			return cc.runWallet(cmd, func(ctx context.Context, s *controller.Session) error {
				acc, err := s.CreateNewAccount(ctx, name)
				if err != nil {
					return err
				}
				label := ""
				if acc.Name != nil {
					label = *acc.Name
				}
				return cc.print(cmd, acc, []string{"Account", "Name"},
					[][]string{{strconv.FormatUint(uint64(acc.Account), 10), label}}, nil)
			})
		},
	}
}

func newSeedPhraseCommand(cc *commandContext) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "seed-phrase",
		Short: "Show the stored seed phrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cc.runWallet(cmd, func(ctx context.Context, s *controller.Session) error {
				show := s.ShowSeedPhrase
				if purge {
					show = s.PurgeSeedPhrase
				}
				seed, err := show(ctx)
				if err != nil {
					return err
				}
				if seed == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No seed phrase stored")
					return nil
				}
				rows := make([][]string, 0, len(seed.Words))
				for i, w := range seed.Words {
					rows = append(rows, []string{strconv.Itoa(i + 1), w})
				}
				return cc.print(cmd, seed, []string{"#", "Word"}, rows,
					[]columnAlignment{alignRight, alignLeft})
			})
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "Remove the seed phrase from the wallet after showing it")
	return cmd
}

func newEncryptKeysCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt-keys",
		Short: "Encrypt the wallet's private keys with a password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := readPassword(cmd, "New password: ")
			if err != nil {
				return err
			}
			if pw == "" {
				return fmt.Errorf("empty password")
			}
			return cc.runWallet(cmd, func(ctx context.Context, s *controller.Session) error {
				res, err := s.EncryptPrivateKeys(ctx, pw)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}
