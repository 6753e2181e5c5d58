package cerrors

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewChronosError(t *testing.T) {
	err := NewChronosError(NotFound)
	assert.Equal(t, NotFound, err.Kind)
	assert.NotEmpty(t, err.Message)
	assert.Contains(t, err.Error(), "NotFound")
}

func TestNewChronosErrorf(t *testing.T) {
	err := NewChronosErrorf(InvalidJob, "field %q is required", "diskNumber")
	assert.Equal(t, InvalidJob, err.Kind)
	assert.Equal(t, `field "diskNumber" is required`, err.Message)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := syscall.Errno(5) // ERROR_ACCESS_DENIED
	err := Wrap(AccessDenied, cause)
	assert.Equal(t, AccessDenied, err.Kind)
	assert.True(t, errors.Is(err, cause))
}

func TestIs(t *testing.T) {
	err := NewChronosError(Busy)
	assert.True(t, Is(err, Busy))
	assert.False(t, Is(err, Cancelled))
	assert.False(t, Is(errors.New("plain"), Busy))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "SnapshotFailed", SnapshotFailed.String())
	assert.Contains(t, Kind(9999).String(), "Kind(")
}
