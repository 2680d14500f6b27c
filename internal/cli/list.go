package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"kvm-dashboard/internal/model"
)

// Output formats accepted by list --output.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

var listOutputFlag string

// listCmd prints every machine once
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List virtual machines once",
	Long: `Query the hypervisor once and print every machine with its power state
and vCPU count, sorted by name.

Examples:
  kvm-dashboard list
  kvm-dashboard list --output json
  kvm-dashboard list --output yaml --uri qemu:///session`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listCommand(cmd.Context(), cmd.OutOrStdout(), listOutputFlag)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listOutputFlag, "output", "o", outputTable, "output format: table, json or yaml")
}

// machineRecord is the serialised form of one machine.
type machineRecord struct {
	Name    string `json:"name" yaml:"name"`
	State   string `json:"state" yaml:"state"`
	VCPUs   uint32 `json:"vcpus" yaml:"vcpus"`
	CPUTime string `json:"cpu_time" yaml:"cpu_time"`
	Action  string `json:"action,omitempty" yaml:"action,omitempty"`
}

func listCommand(ctx context.Context, w io.Writer, format string) error {
	format = strings.ToLower(strings.TrimSpace(format))
	if err := validateOutput(format); err != nil {
		return err
	}

	ctx, stop := signalContext(ctx)
	defer stop()

	s, err := newSession(false)
	if err != nil {
		return err
	}
	defer s.close(context.WithoutCancel(ctx))

	machines, err := s.ListMachines(ctx)
	if err != nil {
		return fmt.Errorf("list machines: %w", err)
	}
	return writeMachines(w, machines, format)
}

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
}

func toRecords(machines []model.MachineInfo) []machineRecord {
	sorted := make([]model.MachineInfo, len(machines))
	copy(sorted, machines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	records := make([]machineRecord, 0, len(sorted))
	for _, m := range sorted {
		records = append(records, machineRecord{
			Name:    m.Name,
			State:   m.State.Label(),
			VCPUs:   m.VCPUCount,
			CPUTime: (time.Duration(m.CPUTimeNs) * time.Nanosecond).Round(time.Millisecond).String(),
			Action:  m.State.Affordance().String(),
		})
	}
	return records
}

// writeMachines renders machines in the given format.
func writeMachines(w io.Writer, machines []model.MachineInfo, format string) error {
	records := toRecords(machines)

	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	case outputTable:
		if len(records) == 0 {
			_, err := fmt.Fprintln(w, "No machines defined.")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSTATE\tVCPUS\tCPU TIME")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Name, r.State, r.VCPUs, r.CPUTime)
		}
		return tw.Flush()
	}
	return validateOutput(format)
}
