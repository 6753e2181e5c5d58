//go:build windows
// +build windows

package chronos

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chronos-imaging/chronos/codec"
	"github.com/chronos-imaging/chronos/job"
	log "github.com/chronos-imaging/chronos/logger"
	"github.com/chronos-imaging/chronos/model"
	"github.com/chronos-imaging/chronos/progress"
)

var (
	backupDiskIndex        uint32
	backupPartitionNumber  uint32
	backupDestination      string
	backupCompressionLevel int
	backupSnapshot         bool
	backupVerify           bool
)

func createBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a disk or partition image",
	}
	cmd.AddCommand(createBackupDiskCommand())
	cmd.AddCommand(createBackupPartitionCommand())
	return cmd
}

func createBackupDiskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disk",
		Short: "Back up an entire physical disk to a container file",
		RunE:  runBackupDisk,
	}
	addBackupFlags(cmd)
	cmd.Flags().Uint32Var(&backupDiskIndex, "disk", 0, "physical disk index")
	return cmd
}

func createBackupPartitionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partition",
		Short: "Back up a single partition to a container file",
		RunE:  runBackupPartition,
	}
	addBackupFlags(cmd)
	cmd.Flags().Uint32Var(&backupDiskIndex, "disk", 0, "physical disk index")
	cmd.Flags().Uint32Var(&backupPartitionNumber, "partition", 1, "partition number")
	return cmd
}

func addBackupFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&backupDestination, "dest", "", "destination container path (required)")
	cmd.Flags().IntVar(&backupCompressionLevel, "compression", 3, "zstd compression level (1-22)")
	cmd.Flags().BoolVar(&backupSnapshot, "snapshot", true, "take a shadow-copy snapshot before reading")
	cmd.Flags().BoolVar(&backupVerify, "verify", false, "re-read and hash-verify the container after writing")
	cmd.MarkFlagRequired("dest")
}

func runBackupDisk(cmd *cobra.Command, args []string) error {
	j := job.NewFullDisk(job.FullDisk{
		DiskIndex:        backupDiskIndex,
		DestinationPath:  backupDestination,
		CompressionLevel: codec.ClampLevel(backupCompressionLevel),
		UseSnapshot:      backupSnapshot,
		VerifyAfter:      backupVerify,
	}, fmt.Sprintf("full-disk backup of disk %d", backupDiskIndex))
	return runBackupJob(cmd, j)
}

func runBackupPartition(cmd *cobra.Command, args []string) error {
	j := job.NewPartition(job.Partition{
		DiskIndex:        backupDiskIndex,
		PartitionNumber:  backupPartitionNumber,
		DestinationPath:  backupDestination,
		CompressionLevel: codec.ClampLevel(backupCompressionLevel),
		UseSnapshot:      backupSnapshot,
		VerifyAfter:      backupVerify,
	}, fmt.Sprintf("partition backup of disk %d partition %d", backupDiskIndex, backupPartitionNumber))
	return runBackupJob(cmd, j)
}

func runBackupJob(cmd *cobra.Command, j job.Job) error {
	jobID := newJobID()
	log.WithField("jobId", jobID).Infof("starting %s", j.Description)

	reporter := progress.NewConsoleReporter(cmd.OutOrStdout(), 0, j.Description)
	report := func(ev model.OperationProgress) {
		reporter.Report(ev)
		log.WithField("jobId", jobID).Debugf("%s: %.1f%% (%s)", ev.Phase, ev.Percent, ev.StatusMessage)
	}

	err := backupEngine.Run(j, report, nil)
	reporter.Finish()
	if err != nil {
		log.WithField("jobId", jobID).Errorf("backup failed: %v", err)
		return err
	}
	log.WithField("jobId", jobID).Info("backup complete")
	return nil
}
