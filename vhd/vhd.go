//go:build windows
// +build windows

// Package vhd is the virtual-disk service (§4.F): creating and attaching
// sparse container files, and tracking attachments in the process-wide
// mount registry so a shutdown can tear every one of them down.
package vhd

import (
	"syscall"
	"unsafe"

	"github.com/hectane/go-acl/api"
	"golang.org/x/sys/windows"

	log "github.com/chronos-imaging/chronos/logger"
	"github.com/chronos-imaging/chronos/model"
	"github.com/chronos-imaging/chronos/registry"
	"github.com/chronos-imaging/chronos/windows/advapi32"
	"github.com/chronos-imaging/chronos/windows/vdisk"
)

// CreateDynamic lays down a new sparse container file without attaching
// it. Most callers want CreateAndAttachReadWrite instead; this exists for
// the rare case where attachment should happen later, in a separate step.
func CreateDynamic(path string, maxSizeBytes uint64, logicalSectorSize uint32) (model.VirtualDiskContainer, error) {
	log.Tracef(">>>>> CreateDynamic, path=%v, maxSizeBytes=%v, logicalSectorSize=%v", path, maxSizeBytes, logicalSectorSize)
	defer log.Trace("<<<<< CreateDynamic")

	if err := vdisk.Create(path, maxSizeBytes, logicalSectorSize); err != nil {
		return model.VirtualDiskContainer{}, err
	}
	if err := restrictToAdministrators(path); err != nil {
		log.Warnf("could not restrict container ACLs for %v: %v", path, err)
	}
	return model.VirtualDiskContainer{
		Path:               path,
		LogicalSectorSize:  logicalSectorSize,
		PhysicalSectorSize: logicalSectorSize,
		MaxSize:            maxSizeBytes,
	}, nil
}

// AttachReadWrite attaches an existing container for read/write sector
// access and registers it in the process-wide mount registry under its
// device path.
func AttachReadWrite(path string) (*model.AttachedContainer, error) {
	log.Tracef(">>>>> AttachReadWrite, path=%v", path)
	defer log.Trace("<<<<< AttachReadWrite")
	return attach(path, false)
}

// AttachReadOnly attaches an existing container read-only, for restore
// verification or inspection without risk of writing into the source.
func AttachReadOnly(path string) (*model.AttachedContainer, error) {
	log.Tracef(">>>>> AttachReadOnly, path=%v", path)
	defer log.Trace("<<<<< AttachReadOnly")
	return attach(path, true)
}

func attach(path string, readOnly bool) (*model.AttachedContainer, error) {
	var attached vdisk.Attached
	var err error
	if readOnly {
		attached, err = vdisk.AttachReadOnly(path)
	} else {
		attached, err = vdisk.AttachReadWrite(path)
	}
	if err != nil {
		return nil, err
	}

	container := model.VirtualDiskContainer{Path: path}
	ac := model.NewAttachedContainer(container, attached.DevicePath, func() error {
		registry.DefaultMountRegistry().Unregister(attached.DevicePath)
		return attached.Close()
	})
	registry.DefaultMountRegistry().Register(attached.DevicePath, mountCloser{ac})
	return ac, nil
}

// mountCloser adapts AttachedContainer.Detach to the registry.Mount
// interface without creating an import cycle between vhd and registry.
type mountCloser struct {
	ac *model.AttachedContainer
}

func (m mountCloser) Close() error {
	return m.ac.Detach()
}

// CreateAndAttachReadWrite creates a new sparse container sized maxSizeBytes
// with logicalSectorSize and attaches it for read/write access in a single
// operation — the two steps must not be separated by closing the creation
// handle, which the service rejects with an invalid-parameter error.
func CreateAndAttachReadWrite(path string, maxSizeBytes uint64, logicalSectorSize uint32) (*model.AttachedContainer, error) {
	log.Tracef(">>>>> CreateAndAttachReadWrite, path=%v, maxSizeBytes=%v, logicalSectorSize=%v", path, maxSizeBytes, logicalSectorSize)
	defer log.Trace("<<<<< CreateAndAttachReadWrite")

	attached, err := vdisk.CreateAndAttach(path, maxSizeBytes, logicalSectorSize)
	if err != nil {
		return nil, err
	}
	if err := restrictToAdministrators(path); err != nil {
		log.Warnf("could not restrict container ACLs for %v: %v", path, err)
	}

	container := model.VirtualDiskContainer{
		Path:               path,
		LogicalSectorSize:  logicalSectorSize,
		PhysicalSectorSize: logicalSectorSize,
		MaxSize:            maxSizeBytes,
	}
	ac := model.NewAttachedContainer(container, attached.DevicePath, func() error {
		registry.DefaultMountRegistry().Unregister(attached.DevicePath)
		return attached.Close()
	})
	registry.DefaultMountRegistry().Register(attached.DevicePath, mountCloser{ac})
	return ac, nil
}

// SizeForSource rounds a source's byte size up to the nearest multiple of
// sectorSize, the minimum a container must reserve to hold it.
func SizeForSource(sourceSizeBytes uint64, sectorSize uint32) uint64 {
	s := uint64(sectorSize)
	if s == 0 {
		return sourceSizeBytes
	}
	remainder := sourceSizeBytes % s
	if remainder == 0 {
		return sourceSizeBytes
	}
	return sourceSizeBytes + (s - remainder)
}

// restrictToAdministrators sets the container file's ACL so that only
// processes running with Administrator privileges can read or write it;
// a disk image is at least as sensitive as the volumes it was taken from.
func restrictToAdministrators(path string) error {
	log.Tracef(">>>>> restrictToAdministrators, path=%v", path)
	defer log.Trace("<<<<< restrictToAdministrators")

	identAuth := windows.SECURITY_NT_AUTHORITY
	var sid *windows.SID
	if err := windows.AllocateAndInitializeSid(&identAuth, 2,
		windows.SECURITY_BUILTIN_DOMAIN_RID, windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0, &sid); err != nil {
		return err
	}
	defer windows.FreeSid(sid)

	var ea [1]api.ExplicitAccess
	ea[0].AccessPermissions = syscall.GENERIC_ALL
	ea[0].AccessMode = api.SET_ACCESS
	ea[0].Inheritance = api.NO_INHERITANCE
	ea[0].Trustee.TrusteeForm = api.TRUSTEE_IS_SID
	ea[0].Trustee.TrusteeType = api.TRUSTEE_IS_GROUP
	ea[0].Trustee.Name = (*uint16)(unsafe.Pointer(sid))

	var acl windows.Handle
	if err := advapi32.SetEntriesInAcl(ea[:], 0, &acl); err != nil {
		return err
	}
	defer windows.LocalFree(acl)

	const secInfo = api.DACL_SECURITY_INFORMATION + api.PROTECTED_DACL_SECURITY_INFORMATION
	return advapi32.SetNamedSecurityInfo(path, api.SE_FILE_OBJECT, secInfo, nil, nil, acl, 0)
}
