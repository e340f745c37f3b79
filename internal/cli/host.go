package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"retroquiz-service/internal/poller"
)

// NewHostCmd creates a session and plays it from the terminal.
func NewHostCmd(configPath *string) *cobra.Command {
	var (
		name          string
		questionCount int
		timerSeconds  int
	)
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Create a session and play from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			return runHost(cmd.Context(), *configPath, name, questionCount, timerSeconds)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "your player name")
	cmd.Flags().IntVar(&questionCount, "questions", 0, "number of questions (default from config)")
	cmd.Flags().IntVar(&timerSeconds, "timer", 0, "seconds per question (default from config)")
	return cmd
}

func runHost(ctx context.Context, configPath, name string, questionCount, timerSeconds int) error {
	log := newLogger()
	log.SetLevel(logrus.WarnLevel) // keep the terminal clean for gameplay

	backend, err := newGameBackend(ctx, configPath, log)
	if err != nil {
		return err
	}
	defer backend.close()

	sess, err := backend.sessions.Create(ctx, name, questionCount,
		time.Duration(timerSeconds)*time.Second)
	if err != nil {
		return err
	}
	// Joining our own session hands back the player record; the membership
	// insert is a no-op since Create already added the host.
	sess, player, err := backend.sessions.Join(ctx, sess.Code, name)
	if err != nil {
		return err
	}

	fmt.Printf("Session code: %s\n", sess.Code)
	fmt.Println("Share it with the other players, then press Enter to start.")

	answerer := newTerminalAnswerer()
	poll := poller.New(backend.sessions, sess.ID, backend.pollInterval, lobbyPrinter{out: os.Stdout}, log)

	lobbyCtx, cancelLobby := context.WithCancel(ctx)
	defer cancelLobby()
	go func() {
		// Narrates joins until the session starts; errors already retry
		// inside the poller.
		_ = poll.PollLobby(lobbyCtx)
	}()

	if _, err := answerer.ReadLine(ctx); err != nil {
		return err
	}
	cancelLobby()

	if err := backend.sessions.Start(ctx, sess.ID, player.ID); err != nil {
		return err
	}
	poll.BeginPlaying()

	return playGame(ctx, backend, poll, answerer, sess, player, log)
}
