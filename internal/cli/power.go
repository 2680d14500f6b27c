package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// startCmd starts a defined machine
var startCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Start a virtual machine",
	Long: `Start a defined but inactive machine.

Examples:
  kvm-dashboard start web1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return powerCommand(cmd.Context(), cmd.OutOrStdout(), args[0], true)
	},
}

// stopCmd shuts a machine down and waits until it is off
var stopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Shut down a virtual machine",
	Long: `Send an ACPI shutdown to a running machine and wait until it is off.
The shutdown request is repeated while the guest keeps running. Interrupt
with Ctrl+C to stop waiting.

Examples:
  kvm-dashboard stop web1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return powerCommand(cmd.Context(), cmd.OutOrStdout(), args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
}

func powerCommand(ctx context.Context, w io.Writer, name string, start bool) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	s, err := newSession(false)
	if err != nil {
		return err
	}
	defer s.close(context.WithoutCancel(ctx))

	return changePower(ctx, w, s, name, start)
}

// powerSwitch starts and stops machines by name.
type powerSwitch interface {
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
}

// changePower runs the action and reports the result on w. Errors from the
// hypervisor client already name the machine and are returned unchanged.
func changePower(ctx context.Context, w io.Writer, ps powerSwitch, name string, start bool) error {
	if start {
		if err := ps.Start(ctx, name); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "%s started\n", name)
		return err
	}
	if err := ps.Stop(ctx, name); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s is off\n", name)
	return err
}
