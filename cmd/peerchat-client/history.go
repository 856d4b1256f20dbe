package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coregx/peerchat/client"
)

func newHistoryCmd(flags *connFlags) *cobra.Command {
	var (
		peer  string
		since time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the conversation with a peer",
		Long:  "Fetches the full two-way conversation with a peer, oldest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}

			var after *time.Time
			if since > 0 {
				t := time.Now().Add(-since).UTC()
				after = &t
			}

			transport := client.NewHTTPTransport(flags.server, flags.token, nil)
			msgs, err := transport.History(cmd.Context(), peer, after)
			if err != nil {
				return err
			}

			if len(msgs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No messages.")
				return nil
			}
			return writeMessages(cmd.OutOrStdout(), msgs)
		},
	}

	cmd.Flags().StringVar(&peer, "peer", "", "peer user ID (required)")
	cmd.Flags().DurationVar(&since, "since", 0, "only show messages newer than this (e.g. 1h)")
	_ = cmd.MarkFlagRequired("peer")
	return cmd
}
