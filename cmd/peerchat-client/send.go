package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coregx/peerchat/client"
)

func newSendCmd(flags *connFlags) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "send [text...]",
		Short: "Send a message",
		Long:  "Sends one message over the REST API and prints the persisted record.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}

			transport := client.NewHTTPTransport(flags.server, flags.token, nil)
			msg, err := transport.Send(cmd.Context(), to, strings.Join(args, " "))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sent message %d to %s at %s\n", msg.ID, msg.ToUserID, formatTime(msg.CreatedAt))
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "recipient user ID (required)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
