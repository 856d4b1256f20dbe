package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coregx/peerchat/adapters/logging"
	"github.com/coregx/peerchat/client"
	"github.com/coregx/peerchat/model"
)

func newChatCmd(flags *connFlags) *cobra.Command {
	var (
		self    string
		peer    string
		poll    time.Duration
		noLive  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive conversation",
		Long: "Opens a conversation with a peer. Each input line is sent as a message; " +
			"incoming messages are printed as they arrive. Type /quit to leave.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			var err error
			if self, err = resolveSelf(flags.token, self); err != nil {
				return err
			}

			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			logger := logging.NewZerolog(logging.New(cmd.ErrOrStderr(), true).Level(level))

			tr := newTranscript(cmd.OutOrStdout(), self)
			opts := []client.Option{
				client.WithPollInterval(poll),
				client.WithLogger(logger),
			}
			if !noLive {
				dialer, err := client.NewWebSocketDialer(flags.server, flags.token)
				if err != nil {
					return err
				}
				opts = append(opts, client.WithDialer(dialer))
			}

			var conv *client.Conversation
			opts = append(opts, client.WithOnChange(func() { tr.render(conv) }))

			conv, err = client.New(self, peer, client.NewHTTPTransport(flags.server, flags.token, nil), opts...)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := conv.Open(ctx); err != nil {
				return err
			}
			defer conv.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Chatting with %s as %s. Type /quit to leave.\n", peer, self)
			return runInput(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), conv)
		},
	}

	cmd.Flags().StringVar(&self, "self", "", "your user ID (default: read from the token)")
	cmd.Flags().StringVar(&peer, "peer", "", "peer user ID (required)")
	cmd.Flags().DurationVar(&poll, "poll", 5*time.Second, "history poll interval while the live channel is down")
	cmd.Flags().BoolVar(&noLive, "no-live", false, "disable the WebSocket live channel and rely on polling")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log connection events")
	_ = cmd.MarkFlagRequired("peer")
	return cmd
}

// sender is the part of a Conversation the input loop needs.
type sender interface {
	Send(ctx context.Context, text string) (model.Message, error)
}

// runInput sends each non-empty line until /quit, EOF or ctx ends.
func runInput(ctx context.Context, in io.Reader, errOut io.Writer, conv sender) error {
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "/quit" {
				return nil
			}
			if _, err := conv.Send(ctx, line); err != nil {
				fmt.Fprintf(errOut, "not sent: %v\n", err)
			}
		}
	}
}

// transcript prints confirmed messages once each, plus live channel state changes.
type transcript struct {
	mu      sync.Mutex
	out     io.Writer
	self    string
	printed map[int64]bool
	state   client.State
}

func newTranscript(out io.Writer, self string) *transcript {
	return &transcript{
		out:     out,
		self:    self,
		printed: make(map[int64]bool),
		state:   client.StateDisconnected,
	}
}

type entrySource interface {
	Entries() []client.Entry
	State() client.State
}

func (t *transcript) render(src entrySource) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s := src.State(); s != t.state {
		t.state = s
		fmt.Fprintf(t.out, "-- %s --\n", s)
	}

	for _, e := range src.Entries() {
		if e.Pending() || t.printed[e.Message.ID] {
			continue
		}
		t.printed[e.Message.ID] = true

		who := e.Message.FromUserID
		if who == t.self {
			who = "you"
		}
		fmt.Fprintf(t.out, "[%s] %s: %s\n", e.Message.CreatedAt.Local().Format("15:04:05"), who, e.Message.Text)
	}
}
