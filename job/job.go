// Package job replaces the inherited BackupJob/RestoreJob flag-style
// records with a tagged variant: each job carries exactly the fields its
// kind needs, instead of a flat struct with fields meaningful for only one
// variant.
package job

import "github.com/chronos-imaging/chronos/model"

// Kind discriminates which variant a Job holds.
type Kind string

const (
	KindFullDisk        Kind = "FullDisk"
	KindPartition       Kind = "Partition"
	KindDiskClone       Kind = "DiskClone"
	KindPartitionClone  Kind = "PartitionClone"
)

// FullDisk backs up an entire physical disk into a container file.
type FullDisk struct {
	DiskIndex        uint32
	DestinationPath  string
	CompressionLevel int
	UseSnapshot      bool
	VerifyAfter      bool
}

// Partition backs up a single partition's content into a container file.
type Partition struct {
	DiskIndex        uint32
	PartitionNumber  uint32
	DestinationPath  string
	CompressionLevel int
	UseSnapshot      bool
	VerifyAfter      bool
}

// DiskClone copies one physical disk directly onto another, with no
// intermediate container file.
type DiskClone struct {
	SourceDiskIndex uint32
	TargetDiskIndex uint32
	UseSnapshot     bool
}

// PartitionClone copies one partition's content directly onto a region of
// a target disk, either an existing partition or unallocated space.
type PartitionClone struct {
	SourceDiskIndex        uint32
	SourcePartitionNumber  uint32
	TargetDiskIndex        uint32
	TargetPartitionNumber  *uint32
	TargetUnallocatedOffset *uint64
	TargetUnallocatedSize   *uint64
	UseSnapshot            bool
}

// Job is a closed, tagged union over the four job kinds. Exactly one of
// the variant fields is non-nil, matching Kind; constructing through the
// New* functions keeps that invariant.
type Job struct {
	Kind Kind

	FullDisk       *FullDisk
	Partition      *Partition
	DiskClone      *DiskClone
	PartitionClone *PartitionClone

	Description string
}

// NewFullDisk builds a FullDisk-kind Job.
func NewFullDisk(v FullDisk, description string) Job {
	return Job{Kind: KindFullDisk, FullDisk: &v, Description: description}
}

// NewPartition builds a Partition-kind Job.
func NewPartition(v Partition, description string) Job {
	return Job{Kind: KindPartition, Partition: &v, Description: description}
}

// NewDiskClone builds a DiskClone-kind Job.
func NewDiskClone(v DiskClone, description string) Job {
	return Job{Kind: KindDiskClone, DiskClone: &v, Description: description}
}

// NewPartitionClone builds a PartitionClone-kind Job.
func NewPartitionClone(v PartitionClone, description string) Job {
	return Job{Kind: KindPartitionClone, PartitionClone: &v, Description: description}
}

// CompressionLevel returns the job's configured compression level (clamped
// by the caller via codec.ClampLevel), or 0 for variants that don't carry
// one (the clone kinds write sector-for-sector with no container format).
func (j Job) CompressionLevel() int {
	switch j.Kind {
	case KindFullDisk:
		return j.FullDisk.CompressionLevel
	case KindPartition:
		return j.Partition.CompressionLevel
	default:
		return 0
	}
}

// UseSnapshot reports whether this job should attempt a shadow-copy
// snapshot before reading its source.
func (j Job) UseSnapshot() bool {
	switch j.Kind {
	case KindFullDisk:
		return j.FullDisk.UseSnapshot
	case KindPartition:
		return j.Partition.UseSnapshot
	case KindDiskClone:
		return j.DiskClone.UseSnapshot
	case KindPartitionClone:
		return j.PartitionClone.UseSnapshot
	default:
		return false
	}
}

// SourceDiskIndex returns the disk index this job reads from.
func (j Job) SourceDiskIndex() uint32 {
	switch j.Kind {
	case KindFullDisk:
		return j.FullDisk.DiskIndex
	case KindPartition:
		return j.Partition.DiskIndex
	case KindDiskClone:
		return j.DiskClone.SourceDiskIndex
	case KindPartitionClone:
		return j.PartitionClone.SourceDiskIndex
	default:
		return 0
	}
}

// ToModelKind maps a Job's Kind onto the legacy model.JobKind value, used
// only where a sidecar or log message needs the string form.
func (j Job) ToModelKind() model.JobKind {
	return model.JobKind(j.Kind)
}
