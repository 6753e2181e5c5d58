//go:build windows
// +build windows

package diskprep

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiskPathFromIndex(t *testing.T) {
	assert.Equal(t, `\\.\PhysicalDrive2`, diskPathFromIndex(2))
}

func TestPreparedReleaseNilIsNoop(t *testing.T) {
	var p *Prepared
	assert.NoError(t, p.Release())
}
