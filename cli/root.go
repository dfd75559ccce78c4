// Package cli holds the cobra commands behind the beacon binary.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"beacon/config"
	"beacon/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCommand creates the root command for the beacon CLI.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "beacon",
		Short: "Beacon - notification delivery engine",
		Long: `Beacon records notifications for users and delivers them in-app, by web push and by
email according to each user's delivery preferences.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadConfig()
			utils.InitializeLogger()
		},
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewWorkerCommand())
	cmd.AddCommand(NewAgentCommand())
	cmd.AddCommand(NewVAPIDKeysCommand())

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	err := NewRootCommand().Execute()
	if err != nil && utils.Logger != nil {
		utils.Logger.Error("command failed", zap.Error(err))
	}
	utils.SyncLogger()
	if err != nil {
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
