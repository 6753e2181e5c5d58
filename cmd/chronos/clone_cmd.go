//go:build windows
// +build windows

package chronos

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chronos-imaging/chronos/job"
)

var (
	cloneSourceDisk            uint32
	cloneTargetDisk            uint32
	cloneSnapshot              bool
	cloneSourcePartitionNumber uint32
	cloneTargetPartitionNumber uint32
	cloneTargetExisting        bool
	cloneTargetOffset          uint64
	cloneTargetSize            uint64
)

func createCloneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clone",
		Short: "Copy a disk or partition directly onto another, with no container file",
	}
	cmd.AddCommand(createCloneDiskCommand())
	cmd.AddCommand(createClonePartitionCommand())
	return cmd
}

func createCloneDiskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disk",
		Short: "Clone one physical disk onto another",
		RunE:  runCloneDisk,
	}
	cmd.Flags().Uint32Var(&cloneSourceDisk, "source-disk", 0, "source physical disk index")
	cmd.Flags().Uint32Var(&cloneTargetDisk, "target-disk", 1, "target physical disk index")
	cmd.Flags().BoolVar(&cloneSnapshot, "snapshot", true, "take a shadow-copy snapshot before reading")
	return cmd
}

func createClonePartitionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partition",
		Short: "Clone one partition's content onto an existing partition or unallocated space",
		RunE:  runClonePartition,
	}
	cmd.Flags().Uint32Var(&cloneSourceDisk, "source-disk", 0, "source physical disk index")
	cmd.Flags().Uint32Var(&cloneSourcePartitionNumber, "source-partition", 1, "source partition number")
	cmd.Flags().Uint32Var(&cloneTargetDisk, "target-disk", 0, "target physical disk index")
	cmd.Flags().BoolVar(&cloneTargetExisting, "target-partition-exists", true, "clone onto an existing partition rather than unallocated space")
	cmd.Flags().Uint32Var(&cloneTargetPartitionNumber, "target-partition", 1, "target partition number (with --target-partition-exists)")
	cmd.Flags().Uint64Var(&cloneTargetOffset, "target-offset", 0, "byte offset of the unallocated region (without --target-partition-exists)")
	cmd.Flags().Uint64Var(&cloneTargetSize, "target-size", 0, "byte size of the unallocated region (without --target-partition-exists)")
	cmd.Flags().BoolVar(&cloneSnapshot, "snapshot", true, "take a shadow-copy snapshot before reading")
	return cmd
}

func runCloneDisk(cmd *cobra.Command, args []string) error {
	j := job.NewDiskClone(job.DiskClone{
		SourceDiskIndex: cloneSourceDisk,
		TargetDiskIndex: cloneTargetDisk,
		UseSnapshot:     cloneSnapshot,
	}, fmt.Sprintf("disk clone of disk %d onto disk %d", cloneSourceDisk, cloneTargetDisk))
	return runBackupJob(cmd, j)
}

func runClonePartition(cmd *cobra.Command, args []string) error {
	v := job.PartitionClone{
		SourceDiskIndex:       cloneSourceDisk,
		SourcePartitionNumber: cloneSourcePartitionNumber,
		TargetDiskIndex:       cloneTargetDisk,
		UseSnapshot:           cloneSnapshot,
	}
	if cloneTargetExisting {
		v.TargetPartitionNumber = &cloneTargetPartitionNumber
	} else {
		v.TargetUnallocatedOffset = &cloneTargetOffset
		v.TargetUnallocatedSize = &cloneTargetSize
	}
	j := job.NewPartitionClone(v, fmt.Sprintf("partition clone of disk %d partition %d onto disk %d",
		cloneSourceDisk, cloneSourcePartitionNumber, cloneTargetDisk))
	return runBackupJob(cmd, j)
}
