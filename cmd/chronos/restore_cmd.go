//go:build windows
// +build windows

package chronos

import (
	"fmt"

	"github.com/spf13/cobra"

	log "github.com/chronos-imaging/chronos/logger"
	"github.com/chronos-imaging/chronos/model"
	"github.com/chronos-imaging/chronos/progress"
)

var (
	restoreImage              string
	restoreTarget             string
	restoreVerifyDuring       bool
	restoreForce              bool
	restoreSourcePartition    uint32
	restoreUseSourcePartition bool
	restoreUnallocatedOffset  uint64
	restoreUnallocatedSize    uint64
	restoreIntoUnallocated    bool
)

func createRestoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a container image onto a physical disk or partition",
		RunE:  runRestore,
	}
	cmd.Flags().StringVar(&restoreImage, "image", "", "source container path (required)")
	cmd.Flags().StringVar(&restoreTarget, "target", "", `target device path, e.g. \\.\PhysicalDrive0 or \\.\Harddisk0Partition2 (required)`)
	cmd.Flags().BoolVar(&restoreVerifyDuring, "verify", false, "read back and compare each range immediately after writing it")
	cmd.Flags().BoolVar(&restoreForce, "force", false, "allow overwriting a disk that already carries a partition table")
	cmd.Flags().BoolVar(&restoreUseSourcePartition, "source-partition", false, "restore a partition image onto a partition; every range in the image is written at its recorded offset, with no selection by partition number")
	cmd.Flags().Uint32Var(&restoreSourcePartition, "source-partition-number", 1, "partition number within the source image (with --source-partition)")
	cmd.Flags().BoolVar(&restoreIntoUnallocated, "into-unallocated", false, "create a new partition over unallocated space instead of targeting an existing one")
	cmd.Flags().Uint64Var(&restoreUnallocatedOffset, "unallocated-offset", 0, "byte offset of the unallocated region (with --into-unallocated)")
	cmd.Flags().Uint64Var(&restoreUnallocatedSize, "unallocated-size", 0, "byte size of the unallocated region (with --into-unallocated)")
	cmd.MarkFlagRequired("image")
	cmd.MarkFlagRequired("target")
	return cmd
}

func runRestore(cmd *cobra.Command, args []string) error {
	j := model.RestoreJob{
		SourceImage:    restoreImage,
		TargetPath:     restoreTarget,
		VerifyDuring:   restoreVerifyDuring,
		ForceOverwrite: restoreForce,
	}
	if restoreUseSourcePartition {
		j.SourcePartitionNumber = &restoreSourcePartition
	}
	if restoreIntoUnallocated {
		j.TargetUnallocatedOffset = &restoreUnallocatedOffset
		j.TargetUnallocatedSize = &restoreUnallocatedSize
	}

	jobID := newJobID()
	description := fmt.Sprintf("restore of %s onto %s", restoreImage, restoreTarget)
	log.WithField("jobId", jobID).Infof("starting %s", description)

	reporter := progress.NewConsoleReporter(cmd.OutOrStdout(), 0, description)
	report := func(ev model.OperationProgress) {
		reporter.Report(ev)
		log.WithField("jobId", jobID).Debugf("%s: %.1f%% (%s)", ev.Phase, ev.Percent, ev.StatusMessage)
	}

	err := restoreEngine.Run(j, report, nil)
	reporter.Finish()
	if err != nil {
		log.WithField("jobId", jobID).Errorf("restore failed: %v", err)
		return err
	}
	log.WithField("jobId", jobID).Info("restore complete")
	return nil
}
