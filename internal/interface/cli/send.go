package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/neilberkman/ragchat/internal/core/session"
)

var (
	sendSession string
	sendNew     bool
)

var sendCmd = &cobra.Command{
	Use:   "send <message...>",
	Short: "Send a message and stream the reply",
	Long: `Send a message to the assistant and print the reply as it streams in.

Without --session the first chat in the list is used (one is created when
there are none). Use - as the message to read it from stdin.

Examples:
  ragchat send "What does the onboarding guide say about VPN access?"
  ragchat send --session 2 "and for contractors?"
  ragchat send --new "Summarise the Q3 report"
  cat question.txt | ragchat send -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendSession, "session", "s", "", "Session id, id prefix or list index")
	sendCmd.Flags().BoolVar(&sendNew, "new", false, "Start a new chat")
}

func runSend(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if text == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("message is empty")
	}

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	switch {
	case sendNew:
		if _, err := a.coord.CreateSession(); report(err) != nil {
			return err
		}
	case sendSession != "":
		id, err := a.resolve(sendSession)
		if err != nil {
			return err
		}
		if err := a.coord.Select(id); err != nil {
			return err
		}
	default:
		if _, err := a.coord.Open(ctx, ""); report(err) != nil {
			return err
		}
	}
	id := a.coord.ActiveID()

	out := cmd.OutOrStdout()
	spin := newSpinner(os.Stderr, "Waiting for response...")
	spin.Start()
	defer spin.Stop()

	var printed int
	settled := false
	unsubscribe := a.coord.Subscribe(func(ev session.Event) {
		if ev.SessionID != id {
			return
		}
		switch ev.Kind {
		case session.EventStreamDelta:
			spin.Stop()
			if len(ev.Content) > printed {
				fmt.Fprint(out, ev.Content[printed:])
				printed = len(ev.Content)
			}
		case session.EventStreamSettled:
			spin.Stop()
			settled = true
			if ev.Failed {
				if printed > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintln(os.Stderr, color.RedString(ev.Content))
				return
			}
			if len(ev.Content) > printed {
				fmt.Fprint(out, ev.Content[printed:])
			}
			fmt.Fprintln(out)
		}
	})
	defer unsubscribe()

	err = a.coord.SendUserMessage(ctx, text)
	spin.Stop()
	if !settled && ctx.Err() != nil {
		fmt.Fprintln(os.Stderr)
		warn("Interrupted; the reply was not saved")
		return nil
	}
	if err = report(err); err != nil {
		return err
	}

	if s, ok := a.repo.Get(id); ok {
		fmt.Fprintln(os.Stderr, color.New(color.Faint).Sprintf("[%s] %s", truncate(s.DisplayTitle(), 40), id))
	}
	return nil
}
