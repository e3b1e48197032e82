// Command rehab runs the speech rehabilitation modes: free dialogue, live
// subtitles, the character quiz, direction training and the report tools.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type app struct {
	cfg      Config
	shutdown func(context.Context) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	// Flush telemetry even when the command failed.
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rehab",
		Short:         "Half-duplex speech rehabilitation trainer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg

			shutdown, err := setupTelemetry(cmd.Context(), cfg.TelemetryStdout)
			if err != nil {
				return err
			}
			a.shutdown = shutdown
			return nil
		},
	}

	cmd.AddCommand(
		newChatCmd(a),
		newSubtitlesCmd(a),
		newQuizCmd(a),
		newDirectionCmd(a),
		newReportsCmd(a),
	)
	return cmd
}

func (a *app) close() {
	if a.shutdown == nil {
		return
	}
	shutdown := a.shutdown
	a.shutdown = nil
	if err := shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush telemetry: %v\n", err)
	}
}
