package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// watchCmd runs the refresh loop without a terminal UI
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh periodically and log every change",
	Long: `Run the same refresh loop as the dashboard without a terminal UI.
Machine additions, removals, state and CPU changes are logged, and
streamed to the configured gRPC collector when export.grpc_addr is set.

Examples:
  kvm-dashboard watch
  KVMDASH_EXPORT_GRPC_ADDR=collector:7443 kvm-dashboard watch --log-level debug`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchCommand(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func watchCommand(ctx context.Context) error {
	s, err := newSession(false)
	if err != nil {
		return err
	}
	defer s.closeLog()
	return s.RunWatch(ctx)
}
