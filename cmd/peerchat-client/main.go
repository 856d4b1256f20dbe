// Package main provides the peerchat command-line client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// connFlags are shared by every command that talks to a server.
type connFlags struct {
	server string
	token  string
}

func (f *connFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&f.server, "server", "s", envOr("PEERCHAT_SERVER", "http://localhost:8080"), "peerchat server base URL")
	cmd.PersistentFlags().StringVarP(&f.token, "token", "t", os.Getenv("PEERCHAT_TOKEN"), "bearer token (default $PEERCHAT_TOKEN)")
}

func (f *connFlags) validate() error {
	if f.token == "" {
		return fmt.Errorf("a bearer token is required (--token or PEERCHAT_TOKEN)")
	}
	return nil
}

func newRootCmd() *cobra.Command {
	flags := &connFlags{}

	cmd := &cobra.Command{
		Use:           "peerchat",
		Short:         "peerchat - one-to-one chat client",
		Long:          "peerchat sends messages, reads history and opens live conversations against a peerchat server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.register(cmd)

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newSendCmd(flags))
	cmd.AddCommand(newHistoryCmd(flags))
	cmd.AddCommand(newChatCmd(flags))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "peerchat %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func execute(cmd *cobra.Command) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
