//go:build windows
// +build windows

// Package vdisk wraps the host's virtual-disk service (virtdisk.dll): the
// CreateVirtualDisk/OpenVirtualDisk/AttachVirtualDisk/GetVirtualDiskPhysicalPath
// family used to back a sparse VHDX container file with a raw device the
// platform I/O façade can read and write sector-aligned data against.
package vdisk

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	log "github.com/chronos-imaging/chronos/logger"
)

var (
	virtDiskDLL = windows.NewLazySystemDLL("virtdisk.dll")

	procCreateVirtualDisk            = virtDiskDLL.NewProc("CreateVirtualDisk")
	procOpenVirtualDisk              = virtDiskDLL.NewProc("OpenVirtualDisk")
	procAttachVirtualDisk            = virtDiskDLL.NewProc("AttachVirtualDisk")
	procDetachVirtualDisk            = virtDiskDLL.NewProc("DetachVirtualDisk")
	procGetVirtualDiskPhysicalPath   = virtDiskDLL.NewProc("GetVirtualDiskPhysicalPath")
)

// VIRTUAL_STORAGE_TYPE identifies the container's on-disk format; this tree
// only ever asks for VHDX.
type virtualStorageType struct {
	DeviceID uint32
	VendorID [16]byte
}

const (
	virtualStorageTypeDeviceVHDX = 0x00000003
)

// vendorMicrosoft is VIRTUAL_STORAGE_TYPE_VENDOR_MICROSOFT.
var vendorMicrosoft = [16]byte{0xEC, 0x98, 0x4A, 0xEC, 0x97, 0xE6, 0xD0, 0x11, 0xAF, 0xB5, 0x00, 0x00, 0x0F, 0x8A, 0xBF, 0xC5}

func vhdxStorageType() virtualStorageType {
	return virtualStorageType{DeviceID: virtualStorageTypeDeviceVHDX, VendorID: vendorMicrosoft}
}

// createVirtualDiskParameters mirrors CREATE_VIRTUAL_DISK_PARAMETERS version
// 2's fields up through the ones this tree sets. Later optional fields in
// the real struct are omitted, matching the version-1-compatible prefix
// contract the API documents; zero-initializing the rest is correct because
// every omitted field's zero value is its documented default.
type createVirtualDiskParameters struct {
	Version uint32
	_       uint32 // padding to 8-byte align the GUID that follows

	UniqueID           [16]byte
	MaximumSize        uint64
	BlockSizeInBytes   uint32
	SectorSizeInBytes  uint32
	PhysicalSectorSizeInBytes uint32
	ParentPath         uintptr
	SourcePath         uintptr
}

const createVirtualDiskVersion2 = 2

const (
	virtualDiskAccessNone       = 0
	virtualDiskAccessAttachRO   = 0x00010000
	virtualDiskAccessAttachRW   = 0x00020000
	virtualDiskAccessAll        = 0x003f0000
)

// openVirtualDiskParameters mirrors OPEN_VIRTUAL_DISK_PARAMETERS version 2.
type openVirtualDiskParameters struct {
	Version               uint32
	GetInfoOnly           int32
	ReadOnly              int32
	ResiliencyGUID        [16]byte
}

const openVirtualDiskVersion2 = 2

// attachVirtualDiskParameters mirrors ATTACH_VIRTUAL_DISK_PARAMETERS version 1.
type attachVirtualDiskParameters struct {
	Version uint32
	_       uint32
}

const attachVirtualDiskVersion1 = 1

const (
	attachVirtualDiskFlagNone       = 0
	attachVirtualDiskFlagReadOnly   = 0x00000001
	attachVirtualDiskFlagNoDriveLetter = 0x00000002
)

// BlockSizeBytes is the fixed block size every container created by this
// tree uses for its sparse allocation granularity.
const BlockSizeBytes = 32 * 1024 * 1024

// Create lays down a new sparse VHDX container file at path, sized
// maxSizeBytes, with the given logical/physical sector size (the two are
// always equal here; GPT compatibility requires it). It does not attach the
// result — callers needing read/write access immediately afterward should
// use CreateAndAttach instead, since closing the creation handle before
// attaching can surface as an invalid-parameter failure from the service.
func Create(path string, maxSizeBytes uint64, sectorSizeBytes uint32) error {
	log.Tracef(">>>>> Create, path=%v, maxSizeBytes=%v, sectorSizeBytes=%v", path, maxSizeBytes, sectorSizeBytes)
	defer log.Trace("<<<<< Create")

	handle, err := createHandle(path, maxSizeBytes, sectorSizeBytes)
	if err != nil {
		return err
	}
	return syscall.CloseHandle(handle)
}

// createHandle performs the CreateVirtualDisk call and returns the open
// handle to the new container without closing it, so CreateAndAttach can
// proceed straight to AttachVirtualDisk on the same handle.
func createHandle(path string, maxSizeBytes uint64, sectorSizeBytes uint32) (syscall.Handle, error) {
	storageType := vhdxStorageType()
	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return syscall.InvalidHandle, err
	}

	params := createVirtualDiskParameters{
		Version:           createVirtualDiskVersion2,
		MaximumSize:       maxSizeBytes,
		BlockSizeInBytes:  BlockSizeBytes,
		SectorSizeInBytes: sectorSizeBytes,
		PhysicalSectorSizeInBytes: sectorSizeBytes,
	}

	var handle syscall.Handle
	ret, _, _ := procCreateVirtualDisk.Call(
		uintptr(unsafe.Pointer(&storageType)),
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(virtualDiskAccessNone),
		0, // security descriptor
		0, // flags
		0, // provider-specific flags
		uintptr(unsafe.Pointer(&params)),
		0, // overlapped
		uintptr(unsafe.Pointer(&handle)),
	)
	if ret != 0 {
		return syscall.InvalidHandle, syscall.Errno(ret)
	}
	return handle, nil
}

// openHandle opens an existing container file for read-only or read-write
// access, returning its handle without attaching it.
func openHandle(path string, readOnly bool) (syscall.Handle, error) {
	storageType := vhdxStorageType()
	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return syscall.InvalidHandle, err
	}

	var ro int32
	if readOnly {
		ro = 1
	}
	params := openVirtualDiskParameters{Version: openVirtualDiskVersion2, ReadOnly: ro}

	access := uintptr(virtualDiskAccessAttachRW)
	if readOnly {
		access = uintptr(virtualDiskAccessAttachRO)
	}

	var handle syscall.Handle
	ret, _, _ := procOpenVirtualDisk.Call(
		uintptr(unsafe.Pointer(&storageType)),
		uintptr(unsafe.Pointer(pathPtr)),
		access,
		0, // flags
		uintptr(unsafe.Pointer(&params)),
		uintptr(unsafe.Pointer(&handle)),
	)
	if ret != 0 {
		return syscall.InvalidHandle, syscall.Errno(ret)
	}
	return handle, nil
}

// attach issues AttachVirtualDisk on an already-open container handle and
// returns the OS-assigned raw device path backing it.
func attach(handle syscall.Handle, readOnly bool) (string, error) {
	params := attachVirtualDiskParameters{Version: attachVirtualDiskVersion1}

	flags := uint32(attachVirtualDiskFlagNoDriveLetter)
	if readOnly {
		flags |= attachVirtualDiskFlagReadOnly
	}

	ret, _, _ := procAttachVirtualDisk.Call(
		uintptr(handle),
		0, // security descriptor
		uintptr(flags),
		0, // provider-specific flags
		uintptr(unsafe.Pointer(&params)),
		0, // overlapped
	)
	if ret != 0 {
		return "", syscall.Errno(ret)
	}
	return physicalPath(handle)
}

func physicalPath(handle syscall.Handle) (string, error) {
	buf := make([]uint16, 1024)
	size := uint32(len(buf) * 2)

	ret, _, _ := procGetVirtualDiskPhysicalPath.Call(
		uintptr(handle),
		uintptr(unsafe.Pointer(&size)),
		uintptr(unsafe.Pointer(&buf[0])),
	)
	if ret != 0 {
		return "", syscall.Errno(ret)
	}
	return syscall.UTF16ToString(buf), nil
}

// Attached pairs an open virtual-disk handle with its raw device path.
type Attached struct {
	Handle     syscall.Handle
	DevicePath string
}

// Close detaches the container and closes its handle.
func (a Attached) Close() error {
	ret, _, _ := procDetachVirtualDisk.Call(uintptr(a.Handle), 0, 0)
	closeErr := syscall.CloseHandle(a.Handle)
	if ret != 0 {
		return syscall.Errno(ret)
	}
	return closeErr
}

// AttachReadWrite opens an existing container and attaches it for
// read/write sector access.
func AttachReadWrite(path string) (Attached, error) {
	log.Tracef(">>>>> AttachReadWrite, path=%v", path)
	defer log.Trace("<<<<< AttachReadWrite")
	return attachExisting(path, false)
}

// AttachReadOnly opens an existing container and attaches it read-only.
func AttachReadOnly(path string) (Attached, error) {
	log.Tracef(">>>>> AttachReadOnly, path=%v", path)
	defer log.Trace("<<<<< AttachReadOnly")
	return attachExisting(path, true)
}

func attachExisting(path string, readOnly bool) (Attached, error) {
	handle, err := openHandle(path, readOnly)
	if err != nil {
		return Attached{}, err
	}
	devicePath, err := attach(handle, readOnly)
	if err != nil {
		syscall.CloseHandle(handle)
		return Attached{}, err
	}
	return Attached{Handle: handle, DevicePath: devicePath}, nil
}

// CreateAndAttach creates a new sparse container and attaches it for
// read/write access in one operation, on the same handle throughout —
// closing between creation and attach is documented to fail with an
// invalid-parameter error from the service.
func CreateAndAttach(path string, maxSizeBytes uint64, sectorSizeBytes uint32) (Attached, error) {
	log.Tracef(">>>>> CreateAndAttach, path=%v, maxSizeBytes=%v, sectorSizeBytes=%v", path, maxSizeBytes, sectorSizeBytes)
	defer log.Trace("<<<<< CreateAndAttach")

	handle, err := createHandle(path, maxSizeBytes, sectorSizeBytes)
	if err != nil {
		return Attached{}, err
	}
	devicePath, err := attach(handle, false)
	if err != nil {
		syscall.CloseHandle(handle)
		return Attached{}, err
	}
	return Attached{Handle: handle, DevicePath: devicePath}, nil
}
