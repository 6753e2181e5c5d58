//go:build windows
// +build windows

// Package chronos assembles the cobra command tree for the chronos CLI:
// backup, restore, clone, and selftest. main.go only calls Execute.
package chronos

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chronos-imaging/chronos/backupengine"
	"github.com/chronos-imaging/chronos/diskenum"
	"github.com/chronos-imaging/chronos/restoreengine"
)

var (
	enum           = diskenum.New()
	backupEngine   = backupengine.New(enum)
	restoreEngine  = restoreengine.New(enum)

	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "chronos",
	Short: "Disk and partition imaging for Windows",
	Long: `chronos creates and restores disk/partition images, with
optional shadow-copy snapshotting and zstd compression, and supports
cloning directly between physical disks.`,
}

func init() {
	selftestFlag := rootCmd.Flags().Bool("selftest", false, "run the headless self-test battery (same as the selftest subcommand)")
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if !*selftestFlag {
			return cmd.Help()
		}
		return runSelftest(cmd, args)
	}
	rootCmd.AddCommand(createBackupCommand())
	rootCmd.AddCommand(createRestoreCommand())
	rootCmd.AddCommand(createCloneCommand())
	rootCmd.AddCommand(createSelftestCommand())
	rootCmd.AddCommand(createListCommand())
}

// Execute runs the CLI and returns the process exit code: 0 on success, the
// failed-check count for a --selftest run, or 1 for any other failure.
func Execute() int {
	exitCode = 0
	if err := rootCmd.Execute(); err != nil {
		if exitCode == 0 {
			exitCode = 1
		}
	}
	return exitCode
}

// newJobID mints a correlation ID for one CLI invocation's log lines,
// distinct from the satori GUIDs the platform layer uses for on-disk GPT
// partition identifiers.
func newJobID() string {
	return uuid.New().String()
}
