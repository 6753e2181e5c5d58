//go:build windows
// +build windows

package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectIsCachedAcrossCalls(t *testing.T) {
	first := Detect()
	second := Detect()
	assert.Equal(t, first, second)
}

func TestAppDataDirectoryResolves(t *testing.T) {
	dir, err := AppDataDirectory()
	assert.NoError(t, err)
	assert.NotEmpty(t, dir)
}
