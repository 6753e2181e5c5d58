//go:build windows
// +build windows

package chronos

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func createListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List physical disks and their partitions",
		RunE:  runList,
	}
	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	disks, err := enum.ListDisks()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "DISK\tMODEL\tSIZE\tSTYLE\tSYSTEM\tBOOT")
	for _, d := range disks {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%v\t%v\n", d.Index, d.Model, d.SizeBytes, d.PartitionStyle, d.IsSystem, d.IsBoot)

		partitions, err := enum.ListPartitions(d.Index)
		if err != nil {
			fmt.Fprintf(w, "  (could not enumerate partitions: %v)\n", err)
			continue
		}
		for _, p := range partitions {
			fmt.Fprintf(w, "  %d\t%s\t%d\t%s\t\t\n", p.PartitionNumber, p.DriveLetter, p.SizeBytes, p.Filesystem)
		}
	}
	return nil
}
