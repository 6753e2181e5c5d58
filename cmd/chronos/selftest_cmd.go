//go:build windows
// +build windows

package chronos

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chronos-imaging/chronos/config"
	"github.com/chronos-imaging/chronos/selftest"
)

var (
	selftestIncludeLive bool
	selftestReportPath  string
)

func createSelftestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run the headless self-test battery and exit with the failure count",
		RunE:  runSelftest,
	}
	cmd.Flags().BoolVar(&selftestIncludeLive, "include-live", false, "also enumerate live disks and partitions")
	cmd.Flags().StringVar(&selftestReportPath, "report-path", "", "also write the report text to this path")
	return cmd
}

func runSelftest(cmd *cobra.Command, args []string) error {
	var opts config.SelftestOptions
	input := map[string]interface{}{
		"include-live": selftestIncludeLive,
		"report-path":  selftestReportPath,
	}
	if err := config.Decode(input, &opts); err != nil {
		return err
	}

	report, err := selftest.Run(opts)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), report.String())

	exitCode = report.FailureCount()
	if exitCode > 0 {
		return fmt.Errorf("%d check(s) failed", exitCode)
	}
	return nil
}
