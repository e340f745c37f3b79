package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"retroquiz-service/internal/poller"
	"retroquiz-service/internal/session"
)

// NewJoinCmd joins an existing session by code and plays it from the
// terminal.
func NewJoinCmd(configPath *string) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "join CODE",
		Short: "Join a session by code and play from the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			return runJoin(cmd.Context(), *configPath, args[0], name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "your player name")
	return cmd
}

func runJoin(ctx context.Context, configPath, sessionCode, name string) error {
	log := newLogger()
	log.SetLevel(logrus.WarnLevel) // keep the terminal clean for gameplay

	if !session.ValidCode(session.NormalizeCode(sessionCode)) {
		return fmt.Errorf("%q is not a valid session code", sessionCode)
	}

	backend, err := newGameBackend(ctx, configPath, log)
	if err != nil {
		return err
	}
	defer backend.close()

	sess, player, err := backend.sessions.Join(ctx, sessionCode, name)
	if err != nil {
		return err
	}
	fmt.Printf("Joined session %s. Waiting for the host to start...\n", sess.Code)

	poll := poller.New(backend.sessions, sess.ID, backend.pollInterval, lobbyPrinter{out: os.Stdout}, log)
	answerer := newTerminalAnswerer()

	if err := poll.PollLobby(ctx); err != nil {
		return err
	}

	return playGame(ctx, backend, poll, answerer, sess, player, log)
}
