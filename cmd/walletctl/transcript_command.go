package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/wallet-controller/config"
	"github.com/Klingon-tech/wallet-controller/internal/storage"
	"github.com/Klingon-tech/wallet-controller/internal/transcript"
)

var noSession = map[string]string{"session": "none"}

func newTranscriptCommand() *cobra.Command {
	var (
		dbPath  string
		asJSON  bool
		session string
	)
	cmd := &cobra.Command{
		Use:         "transcript",
		Short:       "Inspect a persistent transcript index",
		Annotations: noSession,
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			db, err := storage.NewBadger(dbPath)
			if err != nil {
				return fmt.Errorf("open transcript db: %w", err)
			}
			defer db.Close()

			if session == "" {
				ids, err := transcript.Sessions(db)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, ids)
				}
				rows := make([][]string, 0, len(ids))
				for _, id := range ids {
					entries, err := transcript.ReadSession(db, id)
					if err != nil {
						return err
					}
					rows = append(rows, []string{id, strconv.Itoa(len(entries))})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Session", "Calls"}, rows,
					[]columnAlignment{alignLeft, alignRight}))
				return nil
			}

			entries, err := transcript.ReadSession(db, session)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, entries)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				result := e.Digest
				if e.Error != "" {
					result = e.Error
				}
				rows = append(rows, []string{
					strconv.FormatUint(e.Seq, 10),
					strconv.FormatUint(e.ID, 10),
					e.Method,
					string(e.Params),
					e.Elapsed.String(),
					result,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Seq", "ID", "Method", "Params", "Elapsed", "Result"}, rows,
				[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Badger transcript directory")
	cmd.Flags().StringVar(&session, "session", "", "Show the calls of one session")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newInitConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "init-config <path>",
		Short:       "Write a commented default config file",
		Annotations: noSession,
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefaultConfig(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[0])
			return nil
		},
	}
}
