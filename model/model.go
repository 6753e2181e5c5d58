// Package model defines the data types shared across every CHRONOS
// component: disks, partitions, allocated ranges, snapshot sets, virtual-disk
// containers, the image sidecar, job descriptions, and progress events.
package model

import "time"

// PartitionStyle identifies a disk's partitioning scheme.
type PartitionStyle string

const (
	PartitionStyleMBR     PartitionStyle = "MBR"
	PartitionStyleGPT     PartitionStyle = "GPT"
	PartitionStyleUnknown PartitionStyle = "Unknown"
)

// PhysicalDiskKind distinguishes ordinary entries from UI-selection
// sentinels, matching the source model's "Refresh"/"Separator" list items.
type PhysicalDiskKind string

const (
	PhysicalDiskKindNormal    PhysicalDiskKind = "Normal"
	PhysicalDiskKindRefresh   PhysicalDiskKind = "Refresh"
	PhysicalDiskKindSeparator PhysicalDiskKind = "Separator"
)

// PhysicalDisk is an immutable snapshot of one enumerated disk. Re-running
// enumeration produces a new value rather than mutating an existing one.
type PhysicalDisk struct {
	Kind PhysicalDiskKind

	Index        uint32
	Model        string
	Serial       string
	Manufacturer string

	SizeBytes      uint64
	PartitionStyle PartitionStyle

	IsSystem bool
	IsBoot   bool
}

// UnallocatedPartitionNumberBase is the first partition number reserved for
// synthetic unallocated-space entries.
const UnallocatedPartitionNumberBase = 10000

// Partition describes one region of a disk: a real partition, or (when
// IsUnallocated is true) a computed gap between partitions.
type Partition struct {
	DiskIndex       uint32
	PartitionNumber uint32
	OffsetBytes     uint64
	SizeBytes       uint64

	VolumePath         string
	DriveLetter        string
	VolumeLabel        string
	Filesystem         string
	PartitionTypeLabel string
	GPTTypeGUID        string

	UsedBytes *uint64
	FreeBytes *uint64

	IsUnallocated bool
}

// End returns the exclusive end offset of the partition's region.
func (p Partition) End() uint64 {
	return p.OffsetBytes + p.SizeBytes
}

// HasVolume reports whether the partition has a resolved volume path.
func (p Partition) HasVolume() bool {
	return p.VolumePath != ""
}

// AllocatedRange is a sector-aligned, occupied byte interval within a volume.
type AllocatedRange struct {
	OffsetBytes uint64
	LengthBytes uint64
}

// End returns the exclusive end offset of the range.
func (r AllocatedRange) End() uint64 {
	return r.OffsetBytes + r.LengthBytes
}

// AdjacentOrOverlapping reports whether next immediately follows or overlaps r.
func (r AllocatedRange) AdjacentOrOverlapping(next AllocatedRange) bool {
	return next.OffsetBytes <= r.End()
}

// SnapshotSet is a scoped shadow-copy resource: a mapping from every
// canonical spelling of an original volume key to its snapshot device path,
// plus an identity used to request deletion of the whole set on release.
type SnapshotSet struct {
	ID string

	// mappings holds every canonical key (trailing-slash form,
	// \\.\ device form, bare drive-letter form) pointing at the same
	// snapshot device path.
	mappings map[string]string
}

// NewSnapshotSet creates an empty SnapshotSet with the given identity.
func NewSnapshotSet(id string) *SnapshotSet {
	return &SnapshotSet{ID: id, mappings: make(map[string]string)}
}

// Register associates every canonical form in keys with snapshotPath.
func (s *SnapshotSet) Register(keys []string, snapshotPath string) {
	for _, k := range keys {
		s.mappings[k] = snapshotPath
	}
}

// GetSnapshotPath returns the snapshot device path registered under any
// spelling of original, or "" with ok=false when none is registered.
func (s *SnapshotSet) GetSnapshotPath(original string) (string, bool) {
	path, ok := s.mappings[original]
	return path, ok
}

// VirtualDiskContainer is the core's view of a persisted sparse virtual-disk
// file: everything the core needs to know, independent of the delegated
// on-disk format.
type VirtualDiskContainer struct {
	Path               string
	LogicalSectorSize  uint32
	PhysicalSectorSize uint32
	MaxSize            uint64
}

// AttachedContainer pairs an open handle to a VirtualDiskContainer with the
// OS-assigned raw device path used for sector I/O. Dropping the attachment
// (calling Detach) releases the handle.
type AttachedContainer struct {
	Container  VirtualDiskContainer
	DevicePath string

	detach func() error
}

// NewAttachedContainer wraps container/devicePath with the function that
// performs the actual detach when Detach is called.
func NewAttachedContainer(container VirtualDiskContainer, devicePath string, detach func() error) *AttachedContainer {
	return &AttachedContainer{Container: container, DevicePath: devicePath, detach: detach}
}

// Detach releases the attachment. It is safe to call more than once.
func (a *AttachedContainer) Detach() error {
	if a.detach == nil {
		return nil
	}
	d := a.detach
	a.detach = nil
	return d()
}

// SidecarPartition is one partition entry in an ImageSidecar.
type SidecarPartition struct {
	PartitionNumber uint32 `json:"partitionNumber"`
	Size            uint64 `json:"size"`
	Offset          uint64 `json:"offset"`

	DriveLetter   string `json:"driveLetter,omitempty"`
	VolumeLabel   string `json:"volumeLabel,omitempty"`
	FileSystem    string `json:"fileSystem,omitempty"`
	PartitionType string `json:"partitionType,omitempty"`

	UsedSpace *uint64 `json:"usedSpace,omitempty"`
	FreeSpace *uint64 `json:"freeSpace,omitempty"`
}

// SidecarRange records where one compressed transfer range landed inside the
// container, so restore can find the compressed frame boundary without
// re-scanning the whole device (DESIGN.md open-question decision 5: the
// container stores independently compressed per-range frames, padded to the
// source's logical sector size, rather than one continuous compressed
// stream).
type SidecarRange struct {
	Offset             uint64 `json:"offset"`
	UncompressedLength uint64 `json:"uncompressedLength"`
	CompressedLength   uint64 `json:"compressedLength"`
}

// ImageSidecar is the JSON descriptor written next to a container at backup
// time. Path convention: "<image_path>.chronos.json".
type ImageSidecar struct {
	ChronosVersion string    `json:"chronosVersion"`
	CreatedAtUTC   time.Time `json:"createdAtUtc"`

	PartitionStyle PartitionStyle `json:"partitionStyle"`

	DiskModel  string `json:"diskModel,omitempty"`
	DiskSerial string `json:"diskSerial,omitempty"`

	DiskSizeBytes     uint64 `json:"diskSizeBytes"`
	SourceDiskNumber  uint32 `json:"sourceDiskNumber"`
	LogicalSectorSize uint32 `json:"logicalSectorSize"`

	Partitions []SidecarPartition `json:"partitions"`

	// UsedSnapshot records whether a shadow-copy snapshot backed this
	// backup, or the engine fell back to a live read.
	UsedSnapshot bool `json:"usedSnapshot"`

	// Ranges records every compressed extent written into the container,
	// in the order they were transferred; empty for an uncompressed clone
	// job. Omitted entirely when the image holds no compressed content.
	Ranges []SidecarRange `json:"ranges,omitempty"`

	// ImageHash and ImageHashVerify are optional and populated only when
	// verify_after was requested (DESIGN.md open-question decision 4).
	ImageHash       string `json:"imageHash,omitempty"`
	ImageHashVerify bool   `json:"imageHashVerify,omitempty"`
}

// SidecarFileSuffix is appended to an image's path to form its sidecar path.
const SidecarFileSuffix = ".chronos.json"

// JobKind enumerates the kinds of backup job; see also the Job sum type in
// package job, which replaces these flags with a tagged-variant record.
type JobKind string

const (
	JobKindFullDisk        JobKind = "FullDisk"
	JobKindPartition       JobKind = "Partition"
	JobKindDiskClone       JobKind = "DiskClone"
	JobKindPartitionClone  JobKind = "PartitionClone"
)

// MinCompressionLevel and MaxCompressionLevel bound BackupJob.CompressionLevel.
const (
	MinCompressionLevel     = 1
	MaxCompressionLevel     = 22
	DefaultCompressionLevel = 3
)

// BackupJob is an immutable request to back up a disk or partition.
type BackupJob struct {
	SourcePath      string
	DestinationPath string
	JobKind         JobKind
	CompressionLevel int
	UseSnapshot     bool
	VerifyAfter     bool
	Description     string
}

// RestoreJob is an immutable request to restore an image to physical media.
type RestoreJob struct {
	SourceImage   string
	TargetPath    string
	VerifyDuring  bool
	ForceOverwrite bool

	SourcePartitionNumber  *uint32
	TargetUnallocatedOffset *uint64
	TargetUnallocatedSize   *uint64
}

// Phase names the current stage of a backup or restore pipeline.
type Phase string

const (
	PhaseIdle         Phase = "Idle"
	PhasePlanning     Phase = "Planning"
	PhaseSnapshotting Phase = "Snapshotting"
	PhaseTransferring Phase = "Transferring"
	PhaseFinalizing   Phase = "Finalizing"
	PhaseVerifying    Phase = "Verifying"
	PhaseDone         Phase = "Done"
	PhaseCancelled    Phase = "Cancelled"
	PhaseFailed       Phase = "Failed"
)

// OperationProgress is one progress event streamed monotonically forward
// over the lifetime of a backup or restore job.
type OperationProgress struct {
	Percent        float64
	BytesProcessed uint64
	TotalBytes     uint64
	BytesPerSecond float64
	TimeRemaining  *time.Duration
	Phase          Phase
	StatusMessage  string
}
