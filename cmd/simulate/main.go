package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"statushub/internal/types"
	"statushub/pkg/logger"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	url    string
	secret string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "simulate",
		Short:         "Publish synthetic operation and recovery events to a running hub",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.url, "url", "http://localhost:8288", "hub base url")
	root.PersistentFlags().StringVar(&opts.secret, "secret", os.Getenv("CONTROL_JWT_SECRET"), "HS256 secret for control routes")

	publisher := func() Publisher {
		return NewHTTPPublisher(opts.url, opts.secret)
	}

	root.AddCommand(
		newProgressCommand(publisher),
		newRecoveryCommand(publisher),
		newMessageCommand(publisher),
	)

	return root
}

func newProgressCommand(publisher func() Publisher) *cobra.Command {
	scenario := ProgressScenario{}

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Run one operation through its progress updates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunProgress(cmd.Context(), publisher(), scenario)
		},
	}

	cmd.Flags().StringVar(&scenario.Operation, "operation", types.OpDownload, "operation id")
	cmd.Flags().IntVar(&scenario.Steps, "steps", 10, "number of progress updates")
	cmd.Flags().Int64Var(&scenario.Total, "total", 100, "total units of work")
	cmd.Flags().DurationVar(&scenario.Interval, "interval", 250*time.Millisecond, "delay between updates")
	cmd.Flags().IntVar(&scenario.FailAt, "fail-at", 0, "fail the operation at this step")

	return cmd
}

func newRecoveryCommand(publisher func() Publisher) *cobra.Command {
	scenario := RecoveryScenario{}

	cmd := &cobra.Command{
		Use:   "recovery",
		Short: "Play an external recovery session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessionID, err := RunRecovery(cmd.Context(), publisher(), scenario)
			if err != nil {
				return err
			}
			cmd.Printf("session %s finished\n", sessionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&scenario.Dir, "dir", "/data/simulated", "directory reported for recovered files")
	cmd.Flags().IntVar(&scenario.Files, "files", 5, "number of files in the session")
	cmd.Flags().Uint64Var(&scenario.FileSize, "file-size", 1<<20, "bytes per recovered file")
	cmd.Flags().IntVar(&scenario.FailEvery, "fail-every", 0, "fail every nth file")
	cmd.Flags().DurationVar(&scenario.Interval, "interval", 250*time.Millisecond, "delay between files")
	cmd.Flags().BoolVar(&scenario.Fatal, "fatal", false, "fail the session half way through")

	return cmd
}

func newMessageCommand(publisher func() Publisher) *cobra.Command {
	var messageType string

	cmd := &cobra.Command{
		Use:   "message [text]",
		Short: "Post a status message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunMessage(cmd.Context(), publisher(), args[0], types.MessageType(messageType))
		},
	}

	cmd.Flags().StringVar(&messageType, "type", string(types.MessageInfo), "info, success, warning, error or progress")

	return cmd
}

func main() {
	log := logger.New("simulate").Function("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Er("simulation failed", err)
		stop()
		os.Exit(1)
	}
}
