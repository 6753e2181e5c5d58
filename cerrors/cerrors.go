// Package cerrors defines the typed error taxonomy shared by every CHRONOS
// component, modeled on the CHAPI error-code object used elsewhere in the
// corpus: a small closed set of kinds, a human message, and an optional
// wrapped cause so platform error codes survive unmodified up the stack.
package cerrors

import (
	"fmt"
	"strconv"
)

// Kind is a closed taxonomy of error categories a caller can switch on.
type Kind uint32

const (
	Unknown Kind = iota

	// Device errors.
	AccessDenied
	Locked
	WriteProtected
	NotFound
	Sharing
	InvalidParameter
	IoFailed

	// Shadow-copy (VSS) errors.
	SnapshotUnavailable
	SnapshotFailed

	// Virtual-disk errors.
	ContainerCreateFailed
	AttachFailed
	PathQueryFailed

	// Data errors.
	UnsupportedFilesystem
	SectorMismatch
	VerifyFailed
	ImageCorrupt

	// Lifecycle errors.
	Cancelled
	Busy
	PreconditionFailed

	// Configuration errors.
	InvalidJob

	_maxKind
)

func (k Kind) String() string {
	switch k {
	case Unknown:
		return "Unknown"
	case AccessDenied:
		return "AccessDenied"
	case Locked:
		return "Locked"
	case WriteProtected:
		return "WriteProtected"
	case NotFound:
		return "NotFound"
	case Sharing:
		return "Sharing"
	case InvalidParameter:
		return "InvalidParameter"
	case IoFailed:
		return "IoFailed"
	case SnapshotUnavailable:
		return "SnapshotUnavailable"
	case SnapshotFailed:
		return "SnapshotFailed"
	case ContainerCreateFailed:
		return "ContainerCreateFailed"
	case AttachFailed:
		return "AttachFailed"
	case PathQueryFailed:
		return "PathQueryFailed"
	case UnsupportedFilesystem:
		return "UnsupportedFilesystem"
	case SectorMismatch:
		return "SectorMismatch"
	case VerifyFailed:
		return "VerifyFailed"
	case ImageCorrupt:
		return "ImageCorrupt"
	case Cancelled:
		return "Cancelled"
	case Busy:
		return "Busy"
	case PreconditionFailed:
		return "PreconditionFailed"
	case InvalidJob:
		return "InvalidJob"
	default:
		return "Kind(" + strconv.FormatUint(uint64(k), 10) + ")"
	}
}

// remediation maps each kind to a short user-visible remediation hint.
var remediation = map[Kind]string{
	AccessDenied:           "run as an account with access to the target device",
	Locked:                 "close any application holding the volume open and retry",
	WriteProtected:         "clear the write-protect flag on the target device",
	NotFound:               "verify the device or volume path and retry",
	Sharing:                "close other handles to the device and retry",
	InvalidParameter:       "check the job parameters and retry",
	IoFailed:               "check physical media and cabling, then retry",
	SnapshotUnavailable:    "the shadow-copy provider is unavailable on this host",
	SnapshotFailed:         "shadow-copy creation failed; check Volume Shadow Copy service state",
	ContainerCreateFailed:  "check available disk space at the destination path",
	AttachFailed:           "check that the virtual-disk container is not already attached",
	PathQueryFailed:        "the attached container did not expose a device path in time",
	UnsupportedFilesystem:  "the source volume's filesystem is not supported",
	SectorMismatch:         "source and destination geometries differ; re-create the job",
	VerifyFailed:           "verification found mismatched data; the image may be corrupt",
	ImageCorrupt:           "the image container or sidecar failed integrity checks",
	Cancelled:              "the operation was cancelled by the caller",
	Busy:                   "the resource is in use by another job",
	PreconditionFailed:     "a precondition for the operation was not met",
	InvalidJob:             "the job description is missing or has an invalid field",
}

// ChronosError is the error type every CHRONOS component returns for
// anticipated failure modes. Cause, when set, is usually a syscall.Errno or
// an HRESULT wrapped as an error; it is preserved verbatim for %v/Unwrap.
type ChronosError struct {
	Kind    Kind
	Message string
	Cause   error
}

// NewChronosError builds a ChronosError for kind, defaulting Message to the
// kind's remediation text.
func NewChronosError(kind Kind) *ChronosError {
	return &ChronosError{Kind: kind, Message: remediation[kind]}
}

// NewChronosErrorf builds a ChronosError for kind with a formatted message.
func NewChronosErrorf(kind Kind, format string, args ...interface{}) *ChronosError {
	return &ChronosError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a ChronosError for kind that preserves cause for Unwrap.
func Wrap(kind Kind, cause error) *ChronosError {
	msg := remediation[kind]
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &ChronosError{Kind: kind, Message: msg, Cause: cause}
}

func (e *ChronosError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes Cause to errors.Is/errors.As.
func (e *ChronosError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Remediation returns the user-visible remediation hint for kind.
func Remediation(kind Kind) string {
	return remediation[kind]
}

// Is reports whether err is a *ChronosError of the given kind.
func Is(err error, kind Kind) bool {
	ce, ok := err.(*ChronosError)
	return ok && ce != nil && ce.Kind == kind
}
